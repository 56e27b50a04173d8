package auth

import (
	"sync"
	"time"
)

// DefaultExpirySkew is how long before its expiry a cached token stops being served.
const DefaultExpirySkew = 60 * time.Second

// Token is an OAuth2 access token and the moment it stops being valid.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token is usable at now, allowing for skew.
func (t Token) Valid(now time.Time, skew time.Duration) bool {
	return t.AccessToken != "" && now.Add(skew).Before(t.ExpiresAt)
}

// TokenCache holds at most one access token. It is safe for concurrent use.
type TokenCache struct {
	mu    sync.RWMutex
	token Token
	skew  time.Duration
}

// NewTokenCache creates an empty cache. Tokens expiring within skew of the
// lookup time are reported as misses.
func NewTokenCache(skew time.Duration) *TokenCache {
	if skew < 0 {
		skew = 0
	}
	return &TokenCache{skew: skew}
}

// Get returns the cached token if it is still valid at now.
func (c *TokenCache) Get(now time.Time) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.token.Valid(now, c.skew) {
		return Token{}, false
	}
	return c.token, true
}

// Put replaces the cached token.
func (c *TokenCache) Put(accessToken string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = Token{AccessToken: accessToken, ExpiresAt: expiresAt}
}

// Invalidate drops the cached token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = Token{}
}
