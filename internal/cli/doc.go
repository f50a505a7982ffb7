// Package cli реализует engagectl, операционный CLI движка Engage.
//
// # Обзор
//
// CLI работает через HTTP с операционным API (internal/api) и не
// импортирует внутренние пакеты системы. Секрет передаётся в
// заголовке X-Cron-Secret.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент API. Разбирает конверты DataResponse, ListResponse и
// ErrorResponse.
//
//	client := cli.NewClient("http://localhost:8090", os.Getenv("CRON_SECRET"))
//	st, err := client.Status()
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения в stderr:
//
//	engagectl enrollment list SEQ_ID --json | jq .
//
// ## Commands
//
//   - status, start, stop, run JOB, config — планировщик
//   - enrollment: enroll, get, list, pause, resume, cancel
//   - reminders stats
//
// Команды получают clientFn и outputFn: Client и Output создаются
// лениво, после разбора PersistentFlags.
package cli
