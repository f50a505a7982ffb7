package scheduler

import (
	"fmt"
	"time"
)

// Значения по умолчанию.
const (
	DefaultAppointmentInterval = 15 * time.Minute
	DefaultFullInterval        = 30 * time.Minute
	DefaultStartDelay          = 10 * time.Second
	DefaultFullStagger         = 5 * time.Second
	DefaultBatchSize           = 50
)

// Settings — настройки триггеров.
type Settings struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// AppointmentInterval — период напоминаний о встречах.
	AppointmentInterval time.Duration `json:"appointment_interval" yaml:"appointment_interval"`

	// FullInterval — период полного прогона (enrollments, лиды, счета).
	FullInterval time.Duration `json:"full_interval" yaml:"full_interval"`

	// AppointmentCron и FullCron заменяют интервал, если заданы.
	AppointmentCron string `json:"appointment_cron,omitempty" yaml:"appointment_cron"`
	FullCron        string `json:"full_cron,omitempty" yaml:"full_cron"`

	// StartDelay — пауза перед первым запуском после Start.
	StartDelay time.Duration `json:"start_delay" yaml:"start_delay"`

	// FullStagger — сдвиг первого полного прогона относительно
	// первого прогона встреч.
	FullStagger time.Duration `json:"full_stagger" yaml:"full_stagger"`

	// BatchSize — лимит enrollments за один прогон.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// DefaultSettings возвращает включённый планировщик с интервалами по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		Enabled:             true,
		AppointmentInterval: DefaultAppointmentInterval,
		FullInterval:        DefaultFullInterval,
		StartDelay:          DefaultStartDelay,
		FullStagger:         DefaultFullStagger,
		BatchSize:           DefaultBatchSize,
	}
}

// withDefaults заполняет нулевые поля. Enabled не трогается.
func (s Settings) withDefaults() Settings {
	if s.AppointmentInterval == 0 {
		s.AppointmentInterval = DefaultAppointmentInterval
	}
	if s.FullInterval == 0 {
		s.FullInterval = DefaultFullInterval
	}
	if s.StartDelay < 0 {
		s.StartDelay = 0
	}
	if s.FullStagger < 0 {
		s.FullStagger = 0
	}
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	return s
}

// Validate проверяет настройки.
func (s Settings) Validate() error {
	if s.AppointmentInterval < time.Second {
		return fmt.Errorf("%w: appointment_interval must be at least 1s", ErrInvalidConfig)
	}
	if s.FullInterval < time.Second {
		return fmt.Errorf("%w: full_interval must be at least 1s", ErrInvalidConfig)
	}
	if s.AppointmentCron != "" {
		if err := ValidateCronExpr(s.AppointmentCron); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if s.FullCron != "" {
		if err := ValidateCronExpr(s.FullCron); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Patch — частичное обновление Settings. nil-поля не меняются.
type Patch struct {
	Enabled             *bool          `json:"enabled,omitempty"`
	AppointmentInterval *time.Duration `json:"appointment_interval,omitempty"`
	FullInterval        *time.Duration `json:"full_interval,omitempty"`
	AppointmentCron     *string        `json:"appointment_cron,omitempty"`
	FullCron            *string        `json:"full_cron,omitempty"`
	StartDelay          *time.Duration `json:"start_delay,omitempty"`
	BatchSize           *int           `json:"batch_size,omitempty"`
}

// IsEmpty сообщает, что патч ничего не меняет.
func (p Patch) IsEmpty() bool {
	return p.Enabled == nil && p.AppointmentInterval == nil && p.FullInterval == nil &&
		p.AppointmentCron == nil && p.FullCron == nil && p.StartDelay == nil && p.BatchSize == nil
}

// Apply возвращает копию s с применённым патчем.
func (p Patch) Apply(s Settings) Settings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.AppointmentInterval != nil {
		s.AppointmentInterval = *p.AppointmentInterval
	}
	if p.FullInterval != nil {
		s.FullInterval = *p.FullInterval
	}
	if p.AppointmentCron != nil {
		s.AppointmentCron = *p.AppointmentCron
	}
	if p.FullCron != nil {
		s.FullCron = *p.FullCron
	}
	if p.StartDelay != nil {
		s.StartDelay = *p.StartDelay
	}
	if p.BatchSize != nil {
		s.BatchSize = *p.BatchSize
	}
	return s
}
