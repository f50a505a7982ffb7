// Package telemetry обеспечивает наблюдаемость движка.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (шаги, напоминания, задачи планировщика)
//   - sentry.go — отправка ошибок задач планировщика в Sentry
//
// Метрики экспортируются на /metrics endpoint.
package telemetry
