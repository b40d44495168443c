package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mailerStub struct {
	send func(ctx context.Context, email, code string) error
}

func (m *mailerStub) SendVerificationCode(ctx context.Context, email, code string) error {
	if m.send != nil {
		return m.send(ctx, email, code)
	}
	return nil
}

func TestRequestCodeStoresAndDispatches(t *testing.T) {
	repo := NewInMemoryRepository()
	var sentEmail, sentCode string
	mailer := &mailerStub{
		send: func(ctx context.Context, email, code string) error {
			sentEmail = email
			sentCode = code
			return nil
		},
	}
	engine := NewCodeEngine(repo, mailer, 15*time.Minute, nil)

	before := time.Now()
	if err := engine.RequestCode(context.Background(), "u@x.com"); err != nil {
		t.Fatalf("RequestCode returned error: %v", err)
	}

	if sentEmail != "u@x.com" {
		t.Fatalf("expected dispatch to u@x.com, got %q", sentEmail)
	}
	if len(sentCode) != 6 {
		t.Fatalf("expected 6-digit code, got %q", sentCode)
	}
	for _, c := range sentCode {
		if c < '0' || c > '9' {
			t.Fatalf("expected numeric code, got %q", sentCode)
		}
	}

	var stored *VerificationCode
	for _, row := range repo.codes {
		rowCopy := row
		stored = &rowCopy
	}
	if stored == nil {
		t.Fatal("expected a stored verification code row")
	}
	if stored.Used {
		t.Fatal("expected stored code to start unused")
	}
	if stored.Code != sentCode {
		t.Fatalf("expected stored code %q to match dispatched %q", stored.Code, sentCode)
	}
	lowerBound := before.Add(15*time.Minute - time.Minute)
	upperBound := time.Now().Add(15*time.Minute + time.Minute)
	if stored.ExpiresAt.Before(lowerBound) || stored.ExpiresAt.After(upperBound) {
		t.Fatalf("expected expiry around now+15m, got %v", stored.ExpiresAt)
	}
}

func TestRequestCodePropagatesDeliveryFailure(t *testing.T) {
	repo := NewInMemoryRepository()
	mailer := &mailerStub{
		send: func(ctx context.Context, email, code string) error {
			return errors.New("smtp down")
		},
	}
	engine := NewCodeEngine(repo, mailer, 15*time.Minute, nil)

	if err := engine.RequestCode(context.Background(), "u@x.com"); err == nil {
		t.Fatal("expected delivery failure to propagate")
	}
}

func TestVerifyCodeSingleUse(t *testing.T) {
	repo := NewInMemoryRepository()
	var issued string
	mailer := &mailerStub{
		send: func(ctx context.Context, email, code string) error {
			issued = code
			return nil
		},
	}
	engine := NewCodeEngine(repo, mailer, 15*time.Minute, nil)

	if err := engine.RequestCode(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("RequestCode returned error: %v", err)
	}

	ok, err := engine.VerifyCode(context.Background(), "a@b.com", issued)
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected first verification to succeed")
	}

	ok, err = engine.VerifyCode(context.Background(), "a@b.com", issued)
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if ok {
		t.Fatal("expected second verification of the same code to fail")
	}
}

func TestVerifyCodeRejectsWrongCodeWithoutSideEffects(t *testing.T) {
	repo := NewInMemoryRepository()
	var issued string
	mailer := &mailerStub{
		send: func(ctx context.Context, email, code string) error {
			issued = code
			return nil
		},
	}
	engine := NewCodeEngine(repo, mailer, 15*time.Minute, nil)

	if err := engine.RequestCode(context.Background(), "u@x.com"); err != nil {
		t.Fatalf("RequestCode returned error: %v", err)
	}

	wrong := "000001"
	if wrong == issued {
		wrong = "000002"
	}
	ok, err := engine.VerifyCode(context.Background(), "u@x.com", wrong)
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong code to be rejected")
	}

	// The real code must still be consumable afterwards.
	ok, err = engine.VerifyCode(context.Background(), "u@x.com", issued)
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected stored code to remain unconsumed after a wrong guess")
	}
}

func TestVerifyCodeRejectsWrongEmail(t *testing.T) {
	repo := NewInMemoryRepository()
	var issued string
	mailer := &mailerStub{
		send: func(ctx context.Context, email, code string) error {
			issued = code
			return nil
		},
	}
	engine := NewCodeEngine(repo, mailer, 15*time.Minute, nil)

	if err := engine.RequestCode(context.Background(), "u@x.com"); err != nil {
		t.Fatalf("RequestCode returned error: %v", err)
	}

	ok, err := engine.VerifyCode(context.Background(), "other@x.com", issued)
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if ok {
		t.Fatal("expected code bound to another email to be rejected")
	}
}

func TestVerifyCodeRejectsExpired(t *testing.T) {
	repo := NewInMemoryRepository()
	engine := NewCodeEngine(repo, &mailerStub{}, 15*time.Minute, nil)

	expired := VerificationCode{
		ID:        uuid.New(),
		Email:     "u@x.com",
		Code:      "123456",
		ExpiresAt: time.Now().Add(-time.Second),
		CreatedAt: time.Now().Add(-16 * time.Minute),
	}
	if err := repo.CreateVerificationCode(context.Background(), expired); err != nil {
		t.Fatalf("CreateVerificationCode returned error: %v", err)
	}

	ok, err := engine.VerifyCode(context.Background(), "u@x.com", "123456")
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if ok {
		t.Fatal("expected expired code to be rejected")
	}
}

func TestCleanupExpiredRemovesOnlyExpired(t *testing.T) {
	repo := NewInMemoryRepository()
	engine := NewCodeEngine(repo, &mailerStub{}, 15*time.Minute, nil)

	expired := VerificationCode{
		ID:        uuid.New(),
		Email:     "u@x.com",
		Code:      "111111",
		ExpiresAt: time.Now().Add(-time.Second),
	}
	fresh := VerificationCode{
		ID:        uuid.New(),
		Email:     "u@x.com",
		Code:      "222222",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	_ = repo.CreateVerificationCode(context.Background(), expired)
	_ = repo.CreateVerificationCode(context.Background(), fresh)

	removed, err := engine.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpired returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly one row removed, got %d", removed)
	}

	ok, err := engine.VerifyCode(context.Background(), "u@x.com", "222222")
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected unexpired code to survive cleanup")
	}
}

func TestGenerateCodeStaysInCanonicalRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		if code[0] == '0' {
			t.Fatalf("expected code in 100000-999999, got %q", code)
		}
	}
}
