package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
)

// DefaultScopes are requested for service-account tokens.
var DefaultScopes = []string{"https://www.googleapis.com/auth/analytics.readonly"}

// defaultLifetime applies when the token endpoint reports no expiry.
const defaultLifetime = time.Hour

// ErrNoCredentials is returned when no service account is configured.
var ErrNoCredentials = errors.New("no service account credentials configured")

// TokenProvider hands out access tokens.
type TokenProvider interface {
	Token(ctx context.Context) (Token, error)
}

// ServiceAccountProvider serves service-account access tokens from a
// TokenCache and refreshes them from an oauth2 token source on a miss.
// Concurrent misses share a single refresh.
type ServiceAccountProvider struct {
	source oauth2.TokenSource
	cache  *TokenCache
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// NewServiceAccountProvider builds a provider from a service-account JSON key.
func NewServiceAccountProvider(ctx context.Context, keyJSON []byte, scopes []string, cache *TokenCache, logger *slog.Logger) (*ServiceAccountProvider, error) {
	if len(keyJSON) == 0 {
		return nil, ErrNoCredentials
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	cfg, err := google.JWTConfigFromJSON(keyJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}
	return NewProvider(cfg.TokenSource(ctx), cache, logger), nil
}

// NewProvider wraps an arbitrary token source.
func NewProvider(source oauth2.TokenSource, cache *TokenCache, logger *slog.Logger) *ServiceAccountProvider {
	if cache == nil {
		cache = NewTokenCache(DefaultExpirySkew)
	}
	return &ServiceAccountProvider{
		source: source,
		cache:  cache,
		now:    time.Now,
		logger: logger.With(slog.String("component", "token_provider")),
	}
}

// Token returns a valid access token.
func (p *ServiceAccountProvider) Token(ctx context.Context) (Token, error) {
	if tok, ok := p.cache.Get(p.now()); ok {
		return tok, nil
	}

	ch := p.group.DoChan("token", func() (interface{}, error) {
		if tok, ok := p.cache.Get(p.now()); ok {
			return tok, nil
		}

		start := p.now()
		fresh, err := p.source.Token()
		if err != nil {
			p.logger.ErrorContext(ctx, "token refresh failed", slog.String("error", err.Error()))
			return Token{}, fmt.Errorf("refreshing access token: %w", err)
		}

		expiresAt := fresh.Expiry
		if expiresAt.IsZero() {
			expiresAt = start.Add(defaultLifetime)
		}
		p.cache.Put(fresh.AccessToken, expiresAt)

		p.logger.InfoContext(ctx, "access token refreshed",
			slog.Time("expires_at", expiresAt),
			slog.Duration("duration", p.now().Sub(start)),
		)
		return Token{AccessToken: fresh.AccessToken, ExpiresAt: expiresAt}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

// TokenSource adapts the provider to oauth2.TokenSource using ctx for refreshes.
func (p *ServiceAccountProvider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return NewTokenSource(ctx, p)
}

// NewTokenSource adapts any TokenProvider to oauth2.TokenSource.
func NewTokenSource(ctx context.Context, provider TokenProvider) oauth2.TokenSource {
	return providerSource{ctx: ctx, provider: provider}
}

type providerSource struct {
	ctx      context.Context
	provider TokenProvider
}

func (s providerSource) Token() (*oauth2.Token, error) {
	tok, err := s.provider.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.AccessToken, TokenType: "Bearer", Expiry: tok.ExpiresAt}, nil
}

// StaticTokenSource wraps a caller-supplied access token.
func StaticTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}
