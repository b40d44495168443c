package auth

import "sync"

// Blocklist records revoked access tokens. Access tokens are stateless, so
// logout can only invalidate them early by remembering the revoked strings
// and checking them on every authenticated request.
type Blocklist interface {
	Revoke(token string)
	IsRevoked(token string) bool
}

// MemoryBlocklist is a process-local Blocklist backed by a mutex-guarded set.
// Entries live for the process lifetime and are lost on restart, which is
// acceptable for short-lived access tokens but makes revocation a
// single-instance guarantee; multi-instance deployments need a shared backend.
type MemoryBlocklist struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewMemoryBlocklist constructs an empty blocklist.
func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{tokens: make(map[string]struct{})}
}

// Revoke marks a token as unusable for its remaining natural lifetime.
func (b *MemoryBlocklist) Revoke(token string) {
	if token == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = struct{}{}
}

// IsRevoked reports whether the token has been revoked.
func (b *MemoryBlocklist) IsRevoked(token string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tokens[token]
	return ok
}
