package config

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shaiso/Engage/internal/scheduler"
	yaml "go.yaml.in/yaml/v3"
)

// FileConfig — содержимое YAML-файла настроек.
//
//	scheduler:
//	  enabled: true
//	  appointment_interval: 15m
//	  full_interval: 30m
//	  full_cron: "*/30 8-20 * * *"
//	  batch_size: 50
//	reminders:
//	  lead_stale_after: 48h
//	  timezone: Europe/Berlin
//
// Отсутствующие ключи не меняют текущие значения.
type FileConfig struct {
	Scheduler SchedulerSection `yaml:"scheduler"`
	Reminders RemindersSection `yaml:"reminders"`

	hash [sha256.Size]byte
}

// SchedulerSection — секция scheduler.
type SchedulerSection struct {
	Enabled             *bool          `yaml:"enabled"`
	AppointmentInterval *time.Duration `yaml:"appointment_interval"`
	FullInterval        *time.Duration `yaml:"full_interval"`
	AppointmentCron     *string        `yaml:"appointment_cron"`
	FullCron            *string        `yaml:"full_cron"`
	StartDelay          *time.Duration `yaml:"start_delay"`
	BatchSize           *int           `yaml:"batch_size"`
}

// RemindersSection — секция reminders.
type RemindersSection struct {
	LeadStaleAfter *time.Duration `yaml:"lead_stale_after"`
	LeadLimit      *int           `yaml:"lead_limit"`
	InvoiceLimit   *int           `yaml:"invoice_limit"`
	Lookback       *time.Duration `yaml:"lookback"`
	Timezone       *string        `yaml:"timezone"`
}

// LoadFile читает и разбирает YAML-файл. Неизвестные ключи — ошибка.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile разбирает YAML. Пустой документ даёт пустой FileConfig.
func ParseFile(data []byte) (*FileConfig, error) {
	fc := &FileConfig{hash: sha256.Sum256(data)}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := fc.Scheduler.Patch().Apply(scheduler.DefaultSettings()).Validate(); err != nil {
		return nil, err
	}
	return fc, nil
}

// Patch переводит секцию в патч планировщика.
func (s SchedulerSection) Patch() scheduler.Patch {
	return scheduler.Patch{
		Enabled:             s.Enabled,
		AppointmentInterval: s.AppointmentInterval,
		FullInterval:        s.FullInterval,
		AppointmentCron:     s.AppointmentCron,
		FullCron:            s.FullCron,
		StartDelay:          s.StartDelay,
		BatchSize:           s.BatchSize,
	}
}

// ApplyTo переносит значения файла в cfg.
func (fc *FileConfig) ApplyTo(cfg *Config) {
	cfg.Scheduler = fc.Scheduler.Patch().Apply(cfg.Scheduler)

	r := fc.Reminders
	if r.LeadStaleAfter != nil {
		cfg.Reminders.LeadStaleAfter = *r.LeadStaleAfter
	}
	if r.LeadLimit != nil {
		cfg.Reminders.LeadLimit = *r.LeadLimit
	}
	if r.InvoiceLimit != nil {
		cfg.Reminders.InvoiceLimit = *r.InvoiceLimit
	}
	if r.Lookback != nil {
		cfg.Reminders.Lookback = *r.Lookback
	}
	if r.Timezone != nil {
		cfg.Timezone = *r.Timezone
	}
}

// Hash возвращает SHA-256 исходного содержимого файла.
func (fc *FileConfig) Hash() [sha256.Size]byte {
	return fc.hash
}
