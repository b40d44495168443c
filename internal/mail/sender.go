package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a single email message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

const dialTimeout = 5 * time.Second

// SMTPSender delivers mail over plain SMTP with optional AUTH PLAIN.
type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
}

// NewSMTPSender creates a sender for the given host:port and from address.
// Empty username disables authentication.
func NewSMTPSender(addr, username, password, from string) *SMTPSender {
	return &SMTPSender{addr: addr, username: username, password: password, from: from}
}

// Send connects, authenticates if configured, and submits the message as
// multipart/alternative. The dial honors the context deadline; SMTP commands
// after that are bounded by the connection deadline.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	host, _, _ := net.SplitHostPort(s.addr)
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	if s.username != "" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
		auth := smtp.PlainAuth("", s.username, s.password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(buildMessage(s.from, to, subject, htmlBody, textBody)); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	return client.Quit()
}

const mimeBoundary = "authgate-alt"

func buildMessage(from, to, subject, htmlBody, textBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", mimeBoundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}

// LogSender writes messages to the log instead of delivering them, for local
// development without an SMTP server.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message instead of delivering it.
func (s *LogSender) Send(_ context.Context, to, subject, _ string, textBody string) error {
	s.logger.Info("mail delivery skipped", "to", to, "subject", subject, "body", textBody)
	return nil
}
