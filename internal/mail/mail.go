// Package mail sends the transactional emails of the service through an
// SMTP relay.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/avanzo/foodshare/internal/config"
	"gopkg.in/gomail.v2"
)

// ErrSend marks a failure to hand a message to the relay.  Callers use
// errors.Is to tell it apart from data-store errors.
var ErrSend = errors.New("mail relay failure")

// Sender delivers the two messages the service knows how to send.
type Sender interface {
	SendVerificationEmail(ctx context.Context, to, code string) error
	SendFarewellEmail(ctx context.Context, to string) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends HTML mail with a single attempt per message.
type SMTPSender struct {
	from   string
	dialer dialer
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) SendVerificationEmail(ctx context.Context, to, code string) error {
	body, err := renderVerification(code)
	if err != nil {
		return fmt.Errorf("%w: render verification: %v", ErrSend, err)
	}
	return s.send(ctx, to, verifySubject, body)
}

func (s *SMTPSender) SendFarewellEmail(ctx context.Context, to string) error {
	body, err := renderFarewell()
	if err != nil {
		return fmt.Errorf("%w: render farewell: %v", ErrSend, err)
	}
	return s.send(ctx, to, farewellSubject, body)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}
