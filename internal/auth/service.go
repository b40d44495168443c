package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service orchestrates the session and token lifecycle: login through either
// path, refresh-token rotation, and logout-everywhere.
type Service struct {
	repo      Repository
	codec     *TokenCodec
	blocklist Blocklist
	codes     *CodeEngine
	logger    *slog.Logger
}

// NewService creates the lifecycle service.
func NewService(repo Repository, codec *TokenCodec, blocklist Blocklist, codes *CodeEngine, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		codec:     codec,
		blocklist: blocklist,
		codes:     codes,
		logger:    logger,
	}
}

// LoginWithGoogle completes a federated login for a verified Google identity.
// The user is looked up by federated subject id first, falling back to email
// so an account created through the email-code path picks up its federated id
// on first Google login. Every successful login persists a session.
func (s *Service) LoginWithGoogle(ctx context.Context, claims *GoogleClaims, device Device) (*User, TokenPair, error) {
	user, err := s.repo.FindUserByFederatedID(ctx, claims.Sub)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("find user by federated id: %w", err)
	}
	if user == nil {
		user, err = s.repo.FindUserByEmail(ctx, claims.Email)
		if err != nil {
			return nil, TokenPair{}, fmt.Errorf("find user by email: %w", err)
		}
	}

	if user == nil {
		user, err = s.createUser(ctx, claims.Sub, claims.Email, claims.Name)
	} else {
		err = s.recordLogin(ctx, user, claims.Sub, claims.Name)
	}
	if err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issueSession(ctx, user, device)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// LoginWithEmailCode validates an email verification code and completes a
// login for the proven address. Like the federated path, a session row is
// always persisted so the client can refresh later.
func (s *Service) LoginWithEmailCode(ctx context.Context, email, code string, device Device) (*User, TokenPair, error) {
	ok, err := s.codes.VerifyCode(ctx, email, code)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !ok {
		return nil, TokenPair{}, ErrInvalidVerificationCode
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("find user by email: %w", err)
	}

	if user == nil {
		user, err = s.createUser(ctx, "", email, displayNameFromEmail(email))
	} else {
		err = s.recordLogin(ctx, user, "", "")
	}
	if err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issueSession(ctx, user, device)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair, rotating the
// stored token in place. The rotation is conditioned on the presented token
// still being current at write time, so of two concurrent calls with the same
// token exactly one succeeds; the loser gets ErrInvalidRefreshToken, the same
// answer a bogus token gets.
func (s *Service) Refresh(ctx context.Context, refreshToken string, device Device) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	session, err := s.repo.FindSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	now := time.Now()
	if !now.Before(session.ExpiresAt) {
		// Expired rows are removed by the periodic sweep, not here.
		return TokenPair{}, ErrRefreshTokenExpired
	}

	user, err := s.repo.FindUserByID(ctx, session.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("find session user: %w", err)
	}
	if user == nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	newToken, err := s.codec.GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	rotation := SessionRotation{
		RefreshToken: newToken,
		ExpiresAt:    s.codec.RefreshExpiry(now),
		DeviceInfo:   device.Info,
		LastUsedAt:   now,
		IPAddress:    device.IPAddress,
	}
	rotated, err := s.repo.RotateSession(ctx, session.ID, refreshToken, rotation)
	if err != nil {
		return TokenPair{}, fmt.Errorf("rotate session: %w", err)
	}
	if !rotated {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	accessToken, err := s.codec.SignAccessToken(user.ID.String(), user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: newToken}, nil
}

// Logout revokes the presented access token and deletes every session the
// user owns, on every device. Revocation is best-effort and process-local.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, accessToken string) error {
	s.blocklist.Revoke(accessToken)

	removed, err := s.repo.DeleteSessionsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("user logged out", "user_id", userID, "sessions_removed", removed)
	}
	return nil
}

// Authenticate verifies an access token and checks it against the blocklist.
// This is the single entry point for the transport middleware.
func (s *Service) Authenticate(_ context.Context, accessToken string) (*Claims, error) {
	claims, err := s.codec.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	if s.blocklist.IsRevoked(accessToken) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// GetUser loads a user by id, or nil when absent.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// CleanupExpiredSessions removes every session past its refresh expiry.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx)
}

// RunSessionSweep deletes expired sessions once immediately and then on every
// tick until the context is canceled. Failures are logged and swallowed.
func (s *Service) RunSessionSweep(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = DefaultCleanupInterval
	}

	s.sweepSessions(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepSessions(ctx)
		}
	}
}

func (s *Service) sweepSessions(ctx context.Context) {
	removed, err := s.CleanupExpiredSessions(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("session sweep failed", "error", err)
		}
		return
	}
	if removed > 0 && s.logger != nil {
		s.logger.Info("removed expired sessions", "count", removed)
	}
}

func (s *Service) createUser(ctx context.Context, federatedID, email, displayName string) (*User, error) {
	now := time.Now()
	user := User{
		ID:          uuid.New(),
		FederatedID: federatedID,
		Email:       email,
		DisplayName: displayName,
		LastLoginAt: now,
		LoginCount:  1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

func (s *Service) recordLogin(ctx context.Context, user *User, federatedID, displayName string) error {
	if err := s.repo.RecordUserLogin(ctx, user.ID, federatedID, displayName); err != nil {
		return fmt.Errorf("record user login: %w", err)
	}
	now := time.Now()
	user.LoginCount++
	user.LastLoginAt = now
	user.UpdatedAt = now
	if federatedID != "" {
		user.FederatedID = federatedID
	}
	if displayName != "" {
		user.DisplayName = displayName
	}
	return nil
}

// issueSession mints a token pair and persists the session row. If the store
// write fails the caller gets the error and no tokens; any user-row update
// that already happened stays, since the next login repeats it harmlessly.
func (s *Service) issueSession(ctx context.Context, user *User, device Device) (TokenPair, error) {
	refreshToken, err := s.codec.GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	now := time.Now()
	session := Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    s.codec.RefreshExpiry(now),
		DeviceInfo:   truncateString(device.Info, 512),
		LastUsedAt:   now,
		IPAddress:    truncateString(device.IPAddress, 45),
		CreatedAt:    now,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return TokenPair{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, err := s.codec.SignAccessToken(user.ID.String(), user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func displayNameFromEmail(email string) string {
	if local, _, found := strings.Cut(email, "@"); found && local != "" {
		return local
	}
	return email
}

// truncateString truncates a string to the given max length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
