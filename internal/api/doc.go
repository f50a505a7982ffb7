// Package api содержит операционный HTTP API движка.
//
// Структура:
//   - handler.go            — Handler с зависимостями (планировщик, enrollments, журнал напоминаний)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — logging, recovery, проверка X-Cron-Secret
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — запросы и ответы, валидация через validator/v10
//   - engine_handler.go     — /engine: статус, старт, стоп, настройки, ручной запуск
//   - enrollment_handler.go — /enrollments и /sequences/{id}/enrollments
//   - reminder_handler.go   — /reminders/stats
//   - health.go             — /healthz (база и RabbitMQ)
//
// Все маршруты /api/v1 требуют заголовок X-Cron-Secret. Без настроенного
// секрета они отвечают 401.
// /healthz (Health) и /metrics регистрируются в cmd/engage-engine без авторизации.
package api
