// Package auth contains request signing strategies for custodian APIs.
// A strategy decorates an outbound transport request with whatever the
// custodian requires: a bearer token, an HMAC over the payload header, or
// a detached HTTP signature. Strategies attach at the transport layer via
// SignedAdapter so endpoint contracts stay free of credential material.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

// Strategy applies one signing scheme to an outbound request. Apply may
// read the method, URL, body, and existing headers; it must not mutate
// anything besides headers.
type Strategy interface {
	Kind() string
	Apply(ctx context.Context, req *core.TransportRequest) error
}

// TokenSource yields the current access token. Implementations may cache
// and refresh behind the scenes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for tokens that never rotate, such as a
// wallet's stored provider token.
type StaticToken string

func (t StaticToken) Token(_ context.Context) (string, error) {
	token := strings.TrimSpace(string(t))
	if token == "" {
		return "", fmt.Errorf("auth: static token is empty")
	}
	return token, nil
}

// BearerStrategy sets Authorization from a token source.
type BearerStrategy struct {
	Source TokenSource
}

func NewBearerStrategy(source TokenSource) *BearerStrategy {
	return &BearerStrategy{Source: source}
}

func (*BearerStrategy) Kind() string { return "bearer" }

func (s *BearerStrategy) Apply(ctx context.Context, req *core.TransportRequest) error {
	if s == nil || s.Source == nil {
		return fmt.Errorf("auth: bearer strategy requires a token source")
	}
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	token, err := s.Source.Token(ctx)
	if err != nil {
		return fmt.Errorf("auth: resolve bearer token: %w", err)
	}
	setHeader(req, "Authorization", "Bearer "+token)
	return nil
}

var _ Strategy = (*BearerStrategy)(nil)

// setHeader replaces any existing header with the same name regardless of
// case, so a strategy never produces duplicate Authorization entries.
func setHeader(req *core.TransportRequest, name, value string) {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	for existing := range req.Headers {
		if strings.EqualFold(existing, name) {
			delete(req.Headers, existing)
		}
	}
	req.Headers[name] = value
}

func headerValue(headers map[string]string, name string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
