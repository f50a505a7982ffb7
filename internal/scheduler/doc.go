// Package scheduler запускает обработчики движка по расписанию.
//
// Два независимых триггера robfig/cron:
//   - appointments — напоминания о встречах (по умолчанию каждые 15 минут)
//   - full — enrollments, лиды и просроченные счета (каждые 30 минут)
//
// Start ждёт StartDelay, включает триггеры и сразу выполняет appointments,
// а через FullStagger и full. Ошибки и паники задач попадают в Status
// (последние 10), Sentry и метрики; следующий тик выполняется как обычно.
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Settings:    scheduler.DefaultSettings(),
//	    Enrollments: enrollmentProcessor,
//	    Reminders:   reminderProcessor,
//	    Logger:      logger,
//	})
//	if err := sched.Start(ctx); err != nil { ... }
//	defer sched.Stop()
//
// Scheduler не координирует несколько экземпляров: каждый процесс
// запускает свои триггеры.
package scheduler
