package auth

import (
	"context"
	"sync"
	"time"
)

// Blacklist invalidates tokens before their natural expiry. Implementations
// must be safe for concurrent use; a revoke that completes before an
// IsRevoked call begins must be visible to it.
//
// Callers pass the token kind's maximum lifetime as TTL, not the remaining
// one: the store does not decode tokens, and an entry that expired before the
// token itself would silently re-admit it.
type Blacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryBlacklist is the process-local default: a mutex-guarded map from
// token to expiry instant. State does not survive a restart, which is an
// accepted limitation of single-process deployments; multi-process setups
// use RedisBlacklist instead.
type MemoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// MemoryBlacklistOption configures MemoryBlacklist behavior.
type MemoryBlacklistOption func(*MemoryBlacklist)

// WithBlacklistClock overrides the time source (useful for tests).
func WithBlacklistClock(fn func() time.Time) MemoryBlacklistOption {
	return func(b *MemoryBlacklist) {
		if fn != nil {
			b.now = fn
		}
	}
}

// NewMemoryBlacklist constructs an empty in-memory blacklist.
func NewMemoryBlacklist(opts ...MemoryBlacklistOption) *MemoryBlacklist {
	b := &MemoryBlacklist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Revoke records the token as revoked until now+ttl. Revoking an already
// revoked token extends the entry; it never errors.
func (b *MemoryBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if token == "" || ttl <= 0 {
		return nil
	}
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	expiry := now.Add(ttl)
	if existing, ok := b.entries[token]; !ok || expiry.After(existing) {
		b.entries[token] = expiry
	}
	b.purgeLocked(now)
	return nil
}

// IsRevoked reports whether an unexpired revocation entry exists. Expired
// entries are lazily evicted on lookup.
func (b *MemoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	expiry, ok := b.entries[token]
	if !ok {
		return false, nil
	}
	if !now.Before(expiry) {
		delete(b.entries, token)
		return false, nil
	}
	return true, nil
}

// Len reports the number of tracked entries, expired ones included.
func (b *MemoryBlacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *MemoryBlacklist) purgeLocked(now time.Time) {
	for token, expiry := range b.entries {
		if !now.Before(expiry) {
			delete(b.entries, token)
		}
	}
}
