package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg SMTPConfig) Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	m := gomail.NewMessage()
	return &smtpSender{
		dialer: d,
		from:   m.FormatAddress(cfg.FromEmail, cfg.FromName),
	}
}

func (s *smtpSender) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// logSender only logs outgoing mail. Used when SMTP is not configured.
type logSender struct {
	log logrus.FieldLogger
}

func NewLogSender(log logrus.FieldLogger) Sender {
	return &logSender{log: log}
}

func (s *logSender) Send(ctx context.Context, to, subject, html string) error {
	s.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("smtp not configured, email not sent")
	return nil
}
