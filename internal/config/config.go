// Package config собирает конфигурацию движка.
//
// Порядок: файл .env (если есть), переменные окружения, затем YAML-файл
// из ENGAGE_CONFIG. YAML задаёт только настройки планировщика и
// напоминаний; изменения файла применяются на лету (см. Watcher).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/render"
	"github.com/shaiso/Engage/internal/repo"
	"github.com/shaiso/Engage/internal/scheduler"
)

// Config — конфигурация процесса engage-engine.
type Config struct {
	LogLevel  string
	LogFormat string

	DatabaseURL string
	DBMaxConns  int32

	// RabbitMQURL — пусто: события не публикуются, очередь не читается.
	RabbitMQURL string

	HTTPAddr   string
	CronSecret string

	SentryDSN   string
	Environment string
	Release     string

	SMTP          channel.SMTPConfig
	Twilio        channel.TwilioConfig
	WebhookSecret string

	// Лимиты исходящих сообщений в секунду по каналам (0 — без лимита).
	EmailRate        float64
	SMSRate          float64
	NotificationRate float64

	Business render.Business
	Timezone string

	// ConfigFile — путь к YAML с настройками (ENGAGE_CONFIG).
	ConfigFile string
	// File — разобранный ConfigFile, nil если файл не задан.
	File *FileConfig

	Scheduler scheduler.Settings
	Reminders ReminderSettings
}

// ReminderSettings — настройки процессора напоминаний.
// Применяются только при старте.
type ReminderSettings struct {
	LeadStaleAfter time.Duration `yaml:"lead_stale_after"`
	LeadLimit      int           `yaml:"lead_limit"`
	InvoiceLimit   int           `yaml:"invoice_limit"`
	Lookback       time.Duration `yaml:"lookback"`
}

// Load читает .env, окружение и YAML-файл.
// Отсутствие .env не ошибка; envFiles переопределяет список файлов.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		f, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		f.ApplyTo(cfg)
		cfg.File = f
	}

	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv собирает Config только из переменных окружения.
func FromEnv() (*Config, error) {
	p := &envParser{}

	cfg := &Config{
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		DatabaseURL: getenv("DATABASE_URL", repo.DefaultDSN),
		DBMaxConns:  int32(p.int("DB_MAX_CONNS", 10)),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		HTTPAddr:   getenv("ENGAGE_HTTP_ADDR", ":8090"),
		CronSecret: os.Getenv("CRON_SECRET"),

		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: getenv("ENGAGE_ENV", "development"),
		Release:     os.Getenv("ENGAGE_RELEASE"),

		SMTP: channel.SMTPConfig{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      p.int("SMTP_PORT", 587),
			Username:  os.Getenv("SMTP_USERNAME"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			FromEmail: os.Getenv("SMTP_FROM_EMAIL"),
			FromName:  os.Getenv("SMTP_FROM_NAME"),
		},
		Twilio: channel.TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		},
		WebhookSecret: os.Getenv("WEBHOOK_SIGNING_SECRET"),

		EmailRate:        p.float("EMAIL_RATE_PER_SEC", 0),
		SMSRate:          p.float("SMS_RATE_PER_SEC", 0),
		NotificationRate: p.float("NOTIFICATION_RATE_PER_SEC", 0),

		Business: render.Business{
			Name:       getenv("BUSINESS_NAME", "Engage"),
			WebsiteURL: os.Getenv("BUSINESS_WEBSITE_URL"),
		},
		Timezone: getenv("ENGAGE_TIMEZONE", "UTC"),

		ConfigFile: os.Getenv("ENGAGE_CONFIG"),

		Scheduler: scheduler.Settings{
			Enabled:             p.bool("SCHEDULER_ENABLED", true),
			AppointmentInterval: p.duration("APPOINTMENT_REMINDER_INTERVAL", scheduler.DefaultAppointmentInterval),
			FullInterval:        p.duration("REMINDER_INTERVAL", scheduler.DefaultFullInterval),
			AppointmentCron:     os.Getenv("APPOINTMENT_REMINDER_CRON"),
			FullCron:            os.Getenv("REMINDER_CRON"),
			StartDelay:          p.duration("SCHEDULER_START_DELAY", scheduler.DefaultStartDelay),
			FullStagger:         scheduler.DefaultFullStagger,
			BatchSize:           p.int("ENROLLMENT_BATCH_SIZE", scheduler.DefaultBatchSize),
		},
		Reminders: ReminderSettings{
			LeadStaleAfter: p.duration("LEAD_FOLLOW_UP_AFTER", 48*time.Hour),
			LeadLimit:      p.int("LEAD_FOLLOW_UP_LIMIT", 50),
			InvoiceLimit:   p.int("PAYMENT_REMINDER_LIMIT", 50),
			Lookback:       p.duration("REMINDER_DEDUP_LOOKBACK", 7*24*time.Hour),
		},
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location возвращает часовой пояс для текстов напоминаний.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envParser копит ошибки разбора, чтобы сообщить обо всех сразу.
type envParser struct {
	errs []error
}

func (p *envParser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}

func (p *envParser) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *envParser) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
