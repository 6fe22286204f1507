package messaging

import (
	"context"

	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"
)

// Dialer sends composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends plain-text email over SMTP.
type SMTPSender struct {
	dialer Dialer
	from   string
}

// NewSMTPSender creates an SMTP email sender.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// NewSMTPSenderWithDialer creates an SMTP sender on an existing dialer.
func NewSMTPSenderWithDialer(d Dialer, from string) *SMTPSender {
	return &SMTPSender{dialer: d, from: from}
}

// SendEmail implements EmailSender. gomail has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return eris.Wrapf(err, "messaging: smtp send to %s", to)
	}
	return nil
}
