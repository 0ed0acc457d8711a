package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// RefreshedToken is what a refresh callback returns: the token plus how
// long it stays valid. A zero TTL falls back to the source's default.
type RefreshedToken struct {
	Token     string
	ExpiresIn time.Duration
}

type CachedTokenSourceConfig struct {
	Refresh     func(ctx context.Context) (RefreshedToken, error)
	DefaultTTL  time.Duration
	RenewBefore time.Duration
	Now         func() time.Time
}

// CachedTokenSource caches a short-lived access token and refreshes it
// before expiry. Used for client-credentials custodian tokens where each
// refresh costs a network round trip.
type CachedTokenSource struct {
	config CachedTokenSourceConfig

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewCachedTokenSource(cfg CachedTokenSourceConfig) (*CachedTokenSource, error) {
	if cfg.Refresh == nil {
		return nil, fmt.Errorf("auth: refresh callback is required")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.RenewBefore <= 0 {
		cfg.RenewBefore = 2 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &CachedTokenSource{config: cfg}, nil
}

func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	if s == nil || s.config.Refresh == nil {
		return "", fmt.Errorf("auth: token source is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now().UTC()
	if s.token != "" && now.Before(s.expiresAt.Add(-s.config.RenewBefore)) {
		return s.token, nil
	}

	refreshed, err := s.config.Refresh(ctx)
	if err != nil {
		// A still-valid cached token outlives a failed refresh.
		if s.token != "" && now.Before(s.expiresAt) {
			return s.token, nil
		}
		return "", fmt.Errorf("auth: refresh token: %w", err)
	}
	token := strings.TrimSpace(refreshed.Token)
	if token == "" {
		return "", fmt.Errorf("auth: refresh returned an empty token")
	}

	ttl := refreshed.ExpiresIn
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}
	s.token = token
	s.expiresAt = now.Add(ttl)
	return s.token, nil
}

var _ TokenSource = (*CachedTokenSource)(nil)
