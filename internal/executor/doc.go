// Package executor выполняет один шаг последовательности.
//
// # Обзор
//
// Executor получает enrollment, его последовательность и текущий шаг,
// делает ровно одно внешнее действие через канал доставки и возвращает
// единообразный Result:
//
//	res := exec.Execute(ctx, &executor.Input{
//	    Enrollment: e,
//	    Sequence:   seq,
//	    Step:       step,
//	})
//	if !res.Success {
//	    // шаг будет повторён на следующем тике
//	}
//
// Execute никогда не возвращает error и не паникует: неизвестный тип
// действия, не настроенный канал, отсутствующий получатель и ошибка
// доставки превращаются в Result{Success: false, Error: ...}.
//
// # Action
//
// Каждый тип шага обрабатывается своим Action:
//   - EmailAction — письмо контакту (формат адреса проверяется checkmail)
//   - SMSAction — SMS контакту
//   - NotificationAction — in-app уведомление пользователю контакта
//   - TaskAction — задача владельцу последовательности
//   - WebhookAction — POST JSON-конверта на URL шага
//
// # Переменные
//
// Тексты шага рендерятся через пакет render: {first_name}, {name},
// {email}, {phone}, {business_name}, {website_url} и статические
// переменные шага. Неизвестные плейсхолдеры остаются как есть.
package executor
