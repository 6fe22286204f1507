// Package messaging delivers outreach SMS and email through the local bridge
// service or SMTP.
package messaging

import (
	"context"

	"go.uber.org/zap"
)

// SMSSender delivers a text message to an E.164 phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// DryRunSMS logs messages instead of sending them and always reports success.
type DryRunSMS struct{}

// SendSMS implements SMSSender.
func (DryRunSMS) SendSMS(_ context.Context, to, text string) error {
	zap.L().Info("dry run: sms not sent",
		zap.String("to", to),
		zap.String("text", preview(text, 60)),
	)
	return nil
}

// DryRunEmail logs messages instead of sending them and always reports
// success.
type DryRunEmail struct{}

// SendEmail implements EmailSender.
func (DryRunEmail) SendEmail(_ context.Context, to, subject, _ string) error {
	zap.L().Info("dry run: email not sent",
		zap.String("to", to),
		zap.String("subject", preview(subject, 50)),
	)
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
