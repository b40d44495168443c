package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCodeTTL bounds how long an emailed verification code stays valid.
	DefaultCodeTTL = 15 * time.Minute

	// DefaultCleanupInterval is how often expired codes and sessions are swept.
	DefaultCleanupInterval = 60 * time.Minute
)

// Mailer delivers verification codes. Transport details (SMTP, templates) are
// outside the core.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// CodeEngine generates, validates, and expires one-time email verification
// codes.
type CodeEngine struct {
	repo    Repository
	mailer  Mailer
	codeTTL time.Duration
	logger  *slog.Logger
}

// NewCodeEngine creates an engine persisting codes through repo and delivering
// them through mailer. A zero ttl falls back to the default.
func NewCodeEngine(repo Repository, mailer Mailer, codeTTL time.Duration, logger *slog.Logger) *CodeEngine {
	if codeTTL == 0 {
		codeTTL = DefaultCodeTTL
	}
	return &CodeEngine{repo: repo, mailer: mailer, codeTTL: codeTTL, logger: logger}
}

// RequestCode stores a fresh 6-digit code for the email and dispatches it for
// delivery. The code is persisted before the send, so a delivery retry by the
// caller reuses a new code rather than resurrecting an undelivered one.
func (e *CodeEngine) RequestCode(ctx context.Context, email string) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	now := time.Now()
	row := VerificationCode{
		ID:        uuid.New(),
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(e.codeTTL),
		Used:      false,
		CreatedAt: now,
	}

	if err := e.repo.CreateVerificationCode(ctx, row); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	if err := e.mailer.SendVerificationCode(ctx, email, code); err != nil {
		return fmt.Errorf("deliver verification code: %w", err)
	}
	return nil
}

// VerifyCode reports whether the (email, code) pair matches an unused,
// unexpired code, consuming it on success. The consume is conditioned on the
// unused state at write time, so of two concurrent calls with the same code at
// most one returns true; the loser sees the code as already consumed.
func (e *CodeEngine) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	ok, err := e.repo.ConsumeVerificationCode(ctx, email, code)
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	return ok, nil
}

// CleanupExpired removes all codes past their expiry, used or not.
func (e *CodeEngine) CleanupExpired(ctx context.Context) (int64, error) {
	return e.repo.DeleteExpiredVerificationCodes(ctx)
}

// Run sweeps expired codes once immediately and then on every tick until the
// context is canceled. Sweep failures are logged and swallowed; cleanup is
// best-effort and must never take the process down.
func (e *CodeEngine) Run(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = DefaultCleanupInterval
	}

	e.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *CodeEngine) sweep(ctx context.Context) {
	removed, err := e.CleanupExpired(ctx)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("verification code sweep failed", "error", err)
		}
		return
	}
	if removed > 0 && e.logger != nil {
		e.logger.Info("removed expired verification codes", "count", removed)
	}
}

// generateCode draws a uniform random code from 100000 to 999999. The smaller
// range avoids leading-zero codes that clients routinely mistype or truncate.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
