package channel

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig — параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// FromEmail и FromName — отправитель.
	FromEmail string
	FromName  string
}

// SMTPEmail — Email через SMTP (gomail).
type SMTPEmail struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPEmail создаёт SMTP-канал.
func NewSMTPEmail(cfg SMTPConfig) *SMTPEmail {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	return &SMTPEmail{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   from,
	}
}

// Send отправляет HTML-письмо.
//
// gomail не поддерживает context, поэтому отмена проверяется только
// перед соединением.
func (s *SMTPEmail) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: smtp: %v", ErrDelivery, err)
	}
	return nil
}
