package mail

import (
	"context"
	"fmt"
)

// VerificationMailer formats and dispatches login verification codes. It
// satisfies the auth package's Mailer capability.
type VerificationMailer struct {
	sender  Sender
	appName string
}

// NewVerificationMailer wraps a Sender with the verification email template.
func NewVerificationMailer(sender Sender, appName string) *VerificationMailer {
	if appName == "" {
		appName = "Authgate"
	}
	return &VerificationMailer{sender: sender, appName: appName}
}

// SendVerificationCode delivers a one-time login code to the address.
func (m *VerificationMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	subject := fmt.Sprintf("%s login code: %s", m.appName, code)
	text := fmt.Sprintf(
		"Your %s login code is %s.\r\n\r\nThe code expires in 15 minutes. If you did not request it, ignore this email.",
		m.appName, code,
	)
	html := fmt.Sprintf(
		`<p>Your %s login code is:</p><p style="font-size:24px;font-weight:bold;letter-spacing:4px">%s</p><p>The code expires in 15 minutes. If you did not request it, ignore this email.</p>`,
		m.appName, code,
	)

	if err := m.sender.Send(ctx, email, subject, html, text); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}
