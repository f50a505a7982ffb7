// Package channel описывает каналы доставки и их реализации.
//
// Интерфейсы:
//   - Email — отправка письма
//   - SMS — отправка SMS
//   - Notification — уведомление внутри приложения
//   - Webhook — POST JSON на внешний URL
//   - Tasks — внутренние задачи для владельца последовательности
//
// Реализации:
//   - SMTPEmail — SMTP через gomail
//   - TwilioSMS — REST API Twilio
//   - HTTPWebhook — net/http с опциональной HMAC-подписью
//
// Notification и Tasks реализованы в пакете repo (запись в БД).
// Любой канал можно обернуть ограничителем скорости (Throttle*).
//
// Это единственное место, где движок делает внешние вызовы.
// В тестах подменяются именно эти интерфейсы.
package channel
