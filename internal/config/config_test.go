package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Engage/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// replaceFile пишет файл через rename, как это делают редакторы.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	writeFile(t, tmp, content)
	require.NoError(t, os.Rename(tmp, path))
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTPAddr)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, scheduler.DefaultAppointmentInterval, cfg.Scheduler.AppointmentInterval)
	assert.Equal(t, scheduler.DefaultFullInterval, cfg.Scheduler.FullInterval)
	assert.Equal(t, scheduler.DefaultBatchSize, cfg.Scheduler.BatchSize)
	assert.Equal(t, 48*time.Hour, cfg.Reminders.LeadStaleAfter)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("APPOINTMENT_REMINDER_INTERVAL", "5m")
	t.Setenv("ENROLLMENT_BATCH_SIZE", "20")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("EMAIL_RATE_PER_SEC", "2.5")
	t.Setenv("NOTIFICATION_RATE_PER_SEC", "10")
	t.Setenv("BUSINESS_NAME", "Acme Builders")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.AppointmentInterval)
	assert.Equal(t, 20, cfg.Scheduler.BatchSize)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, 2.5, cfg.EmailRate)
	assert.Equal(t, 10.0, cfg.NotificationRate)
	assert.Equal(t, "Acme Builders", cfg.Business.Name)
}

func TestFromEnv_ReportsAllBadValues(t *testing.T) {
	t.Setenv("REMINDER_INTERVAL", "soon")
	t.Setenv("DB_MAX_CONNS", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMINDER_INTERVAL")
	assert.Contains(t, err.Error(), "DB_MAX_CONNS")
}

func TestLoad_AppliesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engage.yaml")
	writeFile(t, path, `
scheduler:
  full_interval: 1h
  full_cron: "*/30 8-20 * * *"
reminders:
  lead_limit: 5
  timezone: Europe/Berlin
`)
	t.Setenv("ENGAGE_CONFIG", path)

	cfg, err := Load(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Scheduler.FullInterval)
	assert.Equal(t, "*/30 8-20 * * *", cfg.Scheduler.FullCron)
	assert.Equal(t, scheduler.DefaultAppointmentInterval, cfg.Scheduler.AppointmentInterval)
	assert.Equal(t, 5, cfg.Reminders.LeadLimit)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	require.NotNil(t, cfg.File)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	writeFile(t, envPath, "ENGAGE_HTTP_ADDR=:9999\n")
	// godotenv не перезаписывает уже заданные переменные
	t.Setenv("ENGAGE_HTTP_ADDR", "")
	require.NoError(t, os.Unsetenv("ENGAGE_HTTP_ADDR"))

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}

func TestParseFile(t *testing.T) {
	fc, err := ParseFile(nil)
	require.NoError(t, err)
	assert.True(t, fc.Scheduler.Patch().IsEmpty())

	_, err = ParseFile([]byte("scheduler:\n  intervall: 5m\n"))
	assert.Error(t, err)

	_, err = ParseFile([]byte("scheduler:\n  full_cron: \"every day\"\n"))
	assert.ErrorIs(t, err, scheduler.ErrInvalidConfig)

	a, err := ParseFile([]byte("scheduler:\n  batch_size: 10\n"))
	require.NoError(t, err)
	b, err := ParseFile([]byte("scheduler:\n  batch_size: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())
	require.NotNil(t, a.Scheduler.BatchSize)
	assert.Equal(t, 10, *a.Scheduler.BatchSize)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engage.yaml")
	writeFile(t, path, "scheduler:\n  batch_size: 10\n")

	initial, err := LoadFile(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []*FileConfig
	w := NewWatcher(WatcherConfig{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnChange: func(fc *FileConfig) {
			mu.Lock()
			got = append(got, fc)
			mu.Unlock()
		},
	}, initial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Watch(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// даём наблюдателю подписаться на каталог
	time.Sleep(100 * time.Millisecond)
	replaceFile(t, path, "scheduler:\n  batch_size: 25\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.NotNil(t, got[0].Scheduler.BatchSize)
	assert.Equal(t, 25, *got[0].Scheduler.BatchSize)
	mu.Unlock()

	// невалидный файл не доходит до OnChange
	replaceFile(t, path, "scheduler:\n  full_cron: nope\n")
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
}
