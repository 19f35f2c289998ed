// Package auth verifies bearer credentials against the identity provider.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/printmarket/backend/internal/domain/identity"
)

// Common errors
var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrProviderFailure  = errors.New("identity provider unavailable")
)

// IdentityVerifier resolves a bearer token to the caller's identity
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Identity, error)
}

// CachingVerifier remembers successful verifications for a short TTL so that a
// burst of requests with the same token hits the provider once. Failures are not
// cached.
type CachingVerifier struct {
	next  IdentityVerifier
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	cache map[string]cachedIdentity
}

type cachedIdentity struct {
	identity  identity.Identity
	expiresAt time.Time
}

// NewCachingVerifier wraps next. A non-positive ttl disables caching.
func NewCachingVerifier(next IdentityVerifier, ttl time.Duration) IdentityVerifier {
	if ttl <= 0 {
		return next
	}
	return &CachingVerifier{
		next:  next,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedIdentity),
	}
}

// Verify implements IdentityVerifier
func (v *CachingVerifier) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	key := tokenKey(token)
	now := v.now()

	v.mu.Lock()
	if c, ok := v.cache[key]; ok {
		if now.Before(c.expiresAt) {
			v.mu.Unlock()
			id := c.identity
			return &id, nil
		}
		delete(v.cache, key)
	}
	v.mu.Unlock()

	id, err := v.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.evictExpiredLocked(now)
	v.cache[key] = cachedIdentity{identity: *id, expiresAt: now.Add(v.ttl)}
	v.mu.Unlock()
	return id, nil
}

func (v *CachingVerifier) evictExpiredLocked(now time.Time) {
	for k, c := range v.cache {
		if !now.Before(c.expiresAt) {
			delete(v.cache, k)
		}
	}
}

// tokens are kept hashed in memory
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
