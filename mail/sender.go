// Package mail delivers the emails the authentication flows produce, today
// only the password-reset code message. Delivery failure is always
// non-fatal to the flows: the engine surfaces a retryable error and the
// pending reset code stays valid.
package mail

import (
	"errors"

	gomail "gopkg.in/gomail.v2"
)

// Sender delivers one HTML email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPConfig locates the outbound SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends mail synchronously through an SMTP relay. Wrap it in Async to
// keep delivery latency out of the request path.
type SMTP struct {
	config SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTP validates the relay configuration.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New("smtp host and port required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("smtp credentials not configured")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address required")
	}

	return &SMTP{
		config: cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send implements Sender.
func (s *SMTP) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	return s.dialer.DialAndSend(m)
}
