package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicate mirrors the store's unique constraints for the in-memory
// repository.
var ErrDuplicate = errors.New("duplicate value for unique column")

// InMemoryRepository keeps all auth state in mutex-guarded maps, ideal for
// local development or tests. Conditional writes follow the same
// compare-and-swap rules as the Postgres implementation.
type InMemoryRepository struct {
	mu       sync.Mutex
	users    map[uuid.UUID]User
	sessions map[uuid.UUID]Session
	codes    map[uuid.UUID]VerificationCode
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:    make(map[uuid.UUID]User),
		sessions: make(map[uuid.UUID]Session),
		codes:    make(map[uuid.UUID]VerificationCode),
	}
}

// FindUserByID returns the user with the given id, or nil.
func (r *InMemoryRepository) FindUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

// FindUserByFederatedID returns the user with the given federated subject, or nil.
func (r *InMemoryRepository) FindUserByFederatedID(_ context.Context, federatedID string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if federatedID == "" {
		return nil, nil
	}
	for _, user := range r.users {
		if user.FederatedID == federatedID {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// FindUserByEmail returns the user with the given email, or nil.
func (r *InMemoryRepository) FindUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// CreateUser stores a new user, enforcing email and federated id uniqueness.
func (r *InMemoryRepository) CreateUser(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return User{}, ErrDuplicate
		}
		if user.FederatedID != "" && existing.FederatedID == user.FederatedID {
			return User{}, ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return user, nil
}

// RecordUserLogin bumps the login counter and timestamps in place.
func (r *InMemoryRepository) RecordUserLogin(_ context.Context, id uuid.UUID, federatedID, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil
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
	r.users[id] = user
	return nil
}

// CreateSession stores a new session, enforcing refresh token uniqueness.
func (r *InMemoryRepository) CreateSession(_ context.Context, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions {
		if existing.RefreshToken == session.RefreshToken {
			return ErrDuplicate
		}
	}
	r.sessions[session.ID] = session
	return nil
}

// FindSessionByRefreshToken returns the session with the exact token, or nil.
func (r *InMemoryRepository) FindSessionByRefreshToken(_ context.Context, refreshToken string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.RefreshToken == refreshToken {
			s := session
			return &s, nil
		}
	}
	return nil, nil
}

// RotateSession swaps the refresh token only if the old token is still
// current, mirroring the conditional UPDATE in Postgres.
func (r *InMemoryRepository) RotateSession(_ context.Context, id uuid.UUID, oldToken string, rotated SessionRotation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.RefreshToken != oldToken {
		return false, nil
	}
	session.RefreshToken = rotated.RefreshToken
	session.ExpiresAt = rotated.ExpiresAt
	session.DeviceInfo = rotated.DeviceInfo
	session.LastUsedAt = rotated.LastUsedAt
	session.IPAddress = rotated.IPAddress
	r.sessions[id] = session
	return true, nil
}

// DeleteSessionsByUser removes every session owned by the user.
func (r *InMemoryRepository) DeleteSessionsByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// DeleteExpiredSessions removes all sessions past expiry.
func (r *InMemoryRepository) DeleteExpiredSessions(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var removed int64
	for id, session := range r.sessions {
		if session.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// CreateVerificationCode stores a new code row.
func (r *InMemoryRepository) CreateVerificationCode(_ context.Context, code VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes[code.ID] = code
	return nil
}

// ConsumeVerificationCode marks a matching unused, unexpired code as used.
func (r *InMemoryRepository) ConsumeVerificationCode(_ context.Context, email, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, row := range r.codes {
		if row.Email == email && row.Code == code && !row.Used && row.ExpiresAt.After(now) {
			row.Used = true
			r.codes[id] = row
			return true, nil
		}
	}
	return false, nil
}

// DeleteExpiredVerificationCodes removes codes past expiry, used or not.
func (r *InMemoryRepository) DeleteExpiredVerificationCodes(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var removed int64
	for id, row := range r.codes {
		if row.ExpiresAt.Before(now) {
			delete(r.codes, id)
			removed++
		}
	}
	return removed, nil
}
