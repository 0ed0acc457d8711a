package auth

import (
	"context"
	"fmt"

	"github.com/goliatone/go-rewards/core"
)

// SignedAdapter runs every request through one or more strategies before
// handing it to the wrapped transport. Strategies apply in registration
// order; a later strategy sees the headers the earlier ones produced.
type SignedAdapter struct {
	next       core.TransportAdapter
	strategies []Strategy
}

func NewSignedAdapter(next core.TransportAdapter, strategies ...Strategy) (*SignedAdapter, error) {
	if next == nil {
		return nil, fmt.Errorf("auth: transport adapter is required")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("auth: at least one strategy is required")
	}
	for i, strategy := range strategies {
		if strategy == nil {
			return nil, fmt.Errorf("auth: strategy %d is nil", i)
		}
	}
	return &SignedAdapter{next: next, strategies: append([]Strategy(nil), strategies...)}, nil
}

func (a *SignedAdapter) Kind() string {
	if a == nil || a.next == nil {
		return ""
	}
	return a.next.Kind()
}

func (a *SignedAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.next == nil {
		return core.TransportResponse{}, fmt.Errorf("auth: signed adapter is not configured")
	}
	// Copy headers so signing never mutates the caller's map.
	headers := make(map[string]string, len(req.Headers))
	for key, value := range req.Headers {
		headers[key] = value
	}
	req.Headers = headers

	for _, strategy := range a.strategies {
		if err := strategy.Apply(ctx, &req); err != nil {
			return core.TransportResponse{}, fmt.Errorf("auth: %s strategy: %w", strategy.Kind(), err)
		}
	}
	return a.next.Do(ctx, req)
}

var _ core.TransportAdapter = (*SignedAdapter)(nil)
