package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type senderStub struct {
	send func(ctx context.Context, to, subject, htmlBody, textBody string) error
}

func (s *senderStub) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if s.send != nil {
		return s.send(ctx, to, subject, htmlBody, textBody)
	}
	return nil
}

func TestVerificationMailerIncludesCode(t *testing.T) {
	var gotTo, gotSubject, gotHTML, gotText string
	sender := &senderStub{
		send: func(ctx context.Context, to, subject, htmlBody, textBody string) error {
			gotTo, gotSubject, gotHTML, gotText = to, subject, htmlBody, textBody
			return nil
		},
	}
	mailer := NewVerificationMailer(sender, "TestApp")

	if err := mailer.SendVerificationCode(context.Background(), "u@x.com", "123456"); err != nil {
		t.Fatalf("SendVerificationCode returned error: %v", err)
	}

	if gotTo != "u@x.com" {
		t.Fatalf("expected recipient u@x.com, got %q", gotTo)
	}
	if !strings.Contains(gotSubject, "123456") {
		t.Fatalf("expected subject to carry the code, got %q", gotSubject)
	}
	if !strings.Contains(gotHTML, "123456") || !strings.Contains(gotText, "123456") {
		t.Fatal("expected both bodies to carry the code")
	}
	if !strings.Contains(gotText, "TestApp") {
		t.Fatalf("expected app name in body, got %q", gotText)
	}
}

func TestVerificationMailerPropagatesSendFailure(t *testing.T) {
	sender := &senderStub{
		send: func(ctx context.Context, to, subject, htmlBody, textBody string) error {
			return errors.New("connection refused")
		},
	}
	mailer := NewVerificationMailer(sender, "")

	if err := mailer.SendVerificationCode(context.Background(), "u@x.com", "123456"); err == nil {
		t.Fatal("expected send failure to propagate")
	}
}

func TestBuildMessageContainsBothParts(t *testing.T) {
	msg := string(buildMessage("from@x.com", "to@x.com", "Subject", "<b>html</b>", "plain"))

	for _, want := range []string{"From: from@x.com", "To: to@x.com", "Subject: Subject", "<b>html</b>", "plain", "multipart/alternative"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
}
