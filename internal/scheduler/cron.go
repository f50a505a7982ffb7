package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей или дескриптор вроде @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// triggerSchedule возвращает расписание триггера: cron-выражение,
// если оно задано, иначе @every interval.
func triggerSchedule(cronExpr string, interval time.Duration) (cron.Schedule, error) {
	if cronExpr != "" {
		schedule, err := cronParser.Parse(cronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
		}
		return schedule, nil
	}
	return cron.Every(interval), nil
}

// describe — человекочитаемое описание триггера для Status.
func describe(cronExpr string, interval time.Duration) string {
	if cronExpr != "" {
		return cronExpr
	}
	return "@every " + interval.String()
}

// cronLogger передаёт сообщения robfig/cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
