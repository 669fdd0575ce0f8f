package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/medtrack/adherence-api/internal/config"
)

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPService returns a gomail-backed sender.
func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendCustom(ctx context.Context, to, subject, content string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", content)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	}
}

// NewNoopService returns a sender that drops all mail, used when SMTP is
// not configured.
func NewNoopService() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) SendCustom(context.Context, string, string, string) error {
	return nil
}
