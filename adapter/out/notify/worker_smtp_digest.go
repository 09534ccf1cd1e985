// Package notify delivers itinerary digests by e-mail.
package notify

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"travel_server/core/port/out"
	"travel_server/pkg/logger"
)

// SMTPConfig holds SMTP configuration for sending digests.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDigestSender implements out.DigestSender over SMTP.
type SMTPDigestSender struct {
	cfg    SMTPConfig
	dialer mailDialer
}

var _ out.DigestSender = (*SMTPDigestSender)(nil)

func NewSMTPDigestSender(cfg SMTPConfig) (*SMTPDigestSender, error) {
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("smtp host, from and to are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = cfg.Timeout

	return &SMTPDigestSender{cfg: cfg, dialer: dialer}, nil
}

// SendDigest sends the digest as plain text with an HTML alternative
func (s *SMTPDigestSender) SendDigest(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.AddAlternative("text/html", renderHTML(body))

	if err := s.dialer.DialAndSend(m); err != nil {
		logger.WithError(err).WithField("subject", subject).Error("failed to send digest")
		return err
	}

	logger.WithField("subject", subject).Info("digest sent to %d recipients", len(s.cfg.To))
	return nil
}

func renderHTML(body string) string {
	var sb strings.Builder
	sb.WriteString("<html><body><pre style=\"font-family: sans-serif\">")
	sb.WriteString(html.EscapeString(body))
	sb.WriteString("</pre></body></html>")
	return sb.String()
}
