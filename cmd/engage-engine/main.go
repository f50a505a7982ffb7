// engage-engine — процесс движка: планировщик, enrollments, напоминания
// и операционный HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Engage/internal/api"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/config"
	"github.com/shaiso/Engage/internal/dedup"
	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/executor"
	"github.com/shaiso/Engage/internal/mq"
	"github.com/shaiso/Engage/internal/reminder"
	"github.com/shaiso/Engage/internal/repo"
	"github.com/shaiso/Engage/internal/scheduler"
	"github.com/shaiso/Engage/internal/telemetry"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting engage-engine", "env", cfg.Environment, "release", cfg.Release)

	flush, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
	if err != nil {
		logger.Error("failed to init sentry", "error", err)
		os.Exit(1)
	}
	defer flush()

	if err := run(cfg, logger); err != nil {
		logger.Error("engine stopped with error", "error", err)
		telemetry.CaptureError(err, map[string]string{"component": "engine"})
		flush()
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	enrollmentRepo := repo.NewEnrollmentRepo(pool)
	sequenceRepo := repo.NewSequenceRepo(pool)
	templateRepo := repo.NewTemplateRepo(pool)
	reminderLogRepo := repo.NewReminderLogRepo(pool)
	targetRepo := repo.NewTargetRepo(pool)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	channels := buildChannels(cfg, pool, logger)

	// RabbitMQ опционален: без него события не публикуются,
	// а записи приходят только через HTTP API.
	var (
		enrollEvents   enrollment.EventPublisher
		reminderEvents reminder.EventPublisher
		mqConn         *mq.Connection
	)
	if cfg.RabbitMQURL != "" {
		mqConn, err = mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("rabbitmq connect: %w", err)
		}
		defer mqConn.Close()

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			return fmt.Errorf("rabbitmq topology: %w", err)
		}
		publisher := mq.NewPublisher(mqConn, logger)
		enrollEvents = publisher
		reminderEvents = publisher
		logger.Info("connected to rabbitmq")
	}

	exec := executor.New(executor.Config{
		Channels:  channels,
		Templates: templateRepo,
		Users:     targetRepo,
		Business:  cfg.Business,
		Logger:    logger,
	})

	processor := enrollment.NewProcessor(enrollment.ProcessorConfig{
		Enrollments: enrollmentRepo,
		Sequences:   sequenceRepo,
		Executor:    exec,
		Events:      enrollEvents,
		Metrics:     metrics,
		BatchSize:   cfg.Scheduler.BatchSize,
		Logger:      logger,
	})

	service := enrollment.NewService(enrollment.ServiceConfig{
		Enrollments: enrollmentRepo,
		Sequences:   sequenceRepo,
		Contacts:    targetRepo,
		Events:      enrollEvents,
		Logger:      logger,
	})

	reminders := reminder.New(reminder.Config{
		Targets: targetRepo,
		Dedup: dedup.New(dedup.Config{
			Log:      reminderLogRepo,
			Lookback: cfg.Reminders.Lookback,
			Logger:   logger,
		}),
		Channels:       channels,
		Events:         reminderEvents,
		Metrics:        metrics,
		Business:       cfg.Business,
		LeadStaleAfter: cfg.Reminders.LeadStaleAfter,
		LeadLimit:      cfg.Reminders.LeadLimit,
		InvoiceLimit:   cfg.Reminders.InvoiceLimit,
		Location:       loc,
		Logger:         logger,
	})

	sched := scheduler.New(scheduler.Config{
		Settings:    cfg.Scheduler,
		Enrollments: processor,
		Reminders:   reminders,
		Metrics:     metrics,
		Logger:      logger,
	})

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, mq.ConsumerConfig{
			Queue:    mq.QueueEnrollments,
			Handler:  mq.NewEnrollHandler(service, logger),
			Prefetch: 10,
			Logger:   logger,
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("enrollment consumer stopped", "error", err)
				telemetry.CaptureError(err, map[string]string{"component": "consumer"})
			}
		}()
	}

	if cfg.ConfigFile != "" {
		watcher := config.NewWatcher(config.WatcherConfig{
			Path: cfg.ConfigFile,
			OnChange: func(fc *config.FileConfig) {
				settings, err := sched.UpdateConfig(fc.Scheduler.Patch())
				if err != nil {
					logger.Error("failed to apply config file", "path", cfg.ConfigFile, "error", err)
					return
				}
				logger.Info("scheduler settings reloaded",
					"enabled", settings.Enabled,
					"appointment_interval", settings.AppointmentInterval,
					"full_interval", settings.FullInterval,
				)
			},
			Logger: logger,
		}, cfg.File)
		go func() {
			_ = watcher.Watch(ctx)
		}()
	}

	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, ops api rejects all requests")
	}

	handler := api.NewHandler(api.Config{
		Engine:      sched,
		Enrollments: service,
		Reminders:   reminderLogRepo,
		CronSecret:  cfg.CronSecret,
		BaseContext: ctx,
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	health := api.HealthConfig{DB: pool.Ping, Started: startTime}
	if mqConn != nil {
		health.Broker = mqConn.IsConnected
	}
	mux.Handle("/healthz", api.Health(health))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		sched.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sched.Stop()
	return nil
}

// buildChannels собирает каналы доставки. Не настроенный канал
// остаётся nil, и шаги через него завершаются ошибкой конфигурации.
func buildChannels(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) channel.Set {
	var set channel.Set

	if cfg.SMTP.Host != "" {
		set.Email = channel.ThrottleEmail(channel.NewSMTPEmail(cfg.SMTP), channel.NewLimiter(cfg.EmailRate, 1))
	} else {
		logger.Warn("SMTP_HOST not set, email channel disabled")
	}

	if cfg.Twilio.AccountSID != "" {
		set.SMS = channel.ThrottleSMS(channel.NewTwilioSMS(cfg.Twilio), channel.NewLimiter(cfg.SMSRate, 1))
	} else {
		logger.Warn("TWILIO_ACCOUNT_SID not set, sms channel disabled")
	}

	set.Notification = channel.ThrottleNotification(repo.NewNotificationRepo(pool), channel.NewLimiter(cfg.NotificationRate, 1))
	set.Webhook = channel.NewHTTPWebhook(channel.HTTPWebhookConfig{SigningSecret: cfg.WebhookSecret})
	set.Tasks = repo.NewFollowUpRepo(pool)
	return set
}
