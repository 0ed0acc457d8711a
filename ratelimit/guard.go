package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

// GuardedAdapter wraps a transport adapter with an adaptive policy. Each
// request is checked against its bucket before going on the wire, and
// every response feeds quota headers back into the policy. The guard is
// constructed per custodian so bucket keys never collide across providers.
type GuardedAdapter struct {
	providerID string
	next       core.TransportAdapter
	policy     *AdaptivePolicy
}

func NewGuardedAdapter(providerID string, next core.TransportAdapter, policy *AdaptivePolicy) (*GuardedAdapter, error) {
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	if providerID == "" {
		return nil, fmt.Errorf("ratelimit: provider id is required")
	}
	if next == nil {
		return nil, fmt.Errorf("ratelimit: transport adapter is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("ratelimit: policy is required")
	}
	return &GuardedAdapter{providerID: providerID, next: next, policy: policy}, nil
}

func (a *GuardedAdapter) Kind() string {
	if a == nil || a.next == nil {
		return ""
	}
	return a.next.Kind()
}

func (a *GuardedAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.next == nil {
		return core.TransportResponse{}, fmt.Errorf("ratelimit: guarded adapter is not configured")
	}

	key := Key{ProviderID: a.providerID, Bucket: bucketFor(req)}
	if err := a.policy.BeforeCall(ctx, key); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			return core.TransportResponse{}, throttled.ToRewardsError()
		}
		return core.TransportResponse{}, err
	}

	res, err := a.next.Do(ctx, req)
	if err != nil {
		return res, err
	}

	meta := ResponseMeta{StatusCode: res.StatusCode, Headers: res.Headers}
	if recordErr := a.policy.AfterCall(ctx, key, meta); recordErr != nil {
		return res, recordErr
	}
	return res, nil
}

var _ core.TransportAdapter = (*GuardedAdapter)(nil)

// bucketFor groups requests by method and path so a throttled balance
// endpoint does not block unrelated calls to the same custodian.
func bucketFor(req core.TransportRequest) string {
	method := strings.TrimSpace(strings.ToLower(req.Method))
	if method == "" {
		method = "get"
	}
	parsed, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || parsed.Path == "" {
		return method
	}
	return method + " " + strings.ToLower(parsed.Path)
}
