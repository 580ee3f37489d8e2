// Package mailer sends HTML email over SMTP.
package mailer

import (
	"crypto/tls"
	"errors"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp not configured")

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTP delivers messages through a gomail dialer.
type SMTP struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTP creates an SMTP sender. Send fails with ErrNotConfigured when cfg.Host is empty.
func NewSMTP(cfg SMTPConfig) *SMTP {
	s := &SMTP{cfg: cfg}
	if cfg.Host != "" {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
		s.dialer = d
	}
	return s
}

// Message builds the gomail message for one recipient.
func (s *SMTP) Message(to, subject, htmlBody string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return m
}

// Send delivers an HTML email.
func (s *SMTP) Send(to, subject, htmlBody string) error {
	if s.dialer == nil {
		return ErrNotConfigured
	}
	if err := s.dialer.DialAndSend(s.Message(to, subject, htmlBody)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// WelcomeHTML is the body of the welcome email.
func WelcomeHTML(name, community string) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p>Welcome to <b>%s</b>. Introduce yourself in the feed!</p>`,
		html.EscapeString(name), html.EscapeString(community))
}

// LevelUpHTML is the body of the level-up email.
func LevelUpHTML(name string, level, points int) string {
	return fmt.Sprintf(`<p>Congratulations %s,</p><p>You reached <b>level %d</b> with %d points.</p>`,
		html.EscapeString(name), level, points)
}

// EventReminderHTML is the body of the event reminder email.
func EventReminderHTML(title, when, location string) string {
	body := fmt.Sprintf(`<p><b>%s</b> starts at %s.</p>`, html.EscapeString(title), html.EscapeString(when))
	if location != "" {
		body += fmt.Sprintf(`<p>Where: %s</p>`, html.EscapeString(location))
	}
	return body
}
