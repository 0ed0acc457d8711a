package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/devkit"
)

func TestGuardedAdapter_PassesThroughAndRecordsQuota(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Headers: map[string]string{
				"X-RateLimit-Remaining": "42",
			},
			Body: []byte(`{"available":"10.5"}`),
		},
	})
	store := NewMemoryStateStore()
	guard, err := NewGuardedAdapter("uphold", fake, NewAdaptivePolicy(store))
	if err != nil {
		t.Fatalf("new guarded adapter: %v", err)
	}

	res, err := guard.Do(context.Background(), core.TransportRequest{
		Method: "GET",
		URL:    "https://api.uphold.com/v0/me/cards/abc",
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if fake.RequestCount() != 1 {
		t.Fatalf("expected one upstream request, got %d", fake.RequestCount())
	}

	state, err := store.Get(context.Background(), Key{ProviderID: "uphold", Bucket: "get /v0/me/cards/abc"})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Remaining != 42 {
		t.Fatalf("expected remaining 42, got %d", state.Remaining)
	}
}

func TestGuardedAdapter_RefusesThrottledBucketWithoutNetworkCall(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("gemini",
		devkit.TransportScript{Response: core.TransportResponse{
			StatusCode: http.StatusTooManyRequests,
			Headers:    map[string]string{"Retry-After": "30"},
		}},
	)
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }
	guard, err := NewGuardedAdapter("gemini", fake, policy)
	if err != nil {
		t.Fatalf("new guarded adapter: %v", err)
	}

	req := core.TransportRequest{Method: "GET", URL: "https://api.gemini.com/v1/balances"}
	if _, err := guard.Do(context.Background(), req); err != nil {
		t.Fatalf("first call should reach the wire, got %v", err)
	}

	_, err = guard.Do(context.Background(), req)
	var rewardsErr *goerrors.Error
	if !errors.As(err, &rewardsErr) {
		t.Fatalf("expected rewards error envelope, got %v", err)
	}
	if rewardsErr.TextCode != core.RewardsErrorRateLimited {
		t.Fatalf("expected %q, got %q", core.RewardsErrorRateLimited, rewardsErr.TextCode)
	}
	if fake.RequestCount() != 1 {
		t.Fatalf("throttled call must not reach the wire, got %d requests", fake.RequestCount())
	}
}

func TestGuardedAdapter_BucketsAreIndependent(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold",
		devkit.TransportScript{Response: core.TransportResponse{StatusCode: http.StatusTooManyRequests}},
		devkit.TransportScript{Response: core.TransportResponse{StatusCode: 200}},
	)
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }
	guard, err := NewGuardedAdapter("uphold", fake, policy)
	if err != nil {
		t.Fatalf("new guarded adapter: %v", err)
	}

	if _, err := guard.Do(context.Background(), core.TransportRequest{Method: "GET", URL: "https://api.uphold.com/v0/me"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := guard.Do(context.Background(), core.TransportRequest{Method: "GET", URL: "https://api.uphold.com/v0/ticker"}); err != nil {
		t.Fatalf("different bucket must not be blocked, got %v", err)
	}
	if fake.RequestCount() != 2 {
		t.Fatalf("expected both requests on the wire, got %d", fake.RequestCount())
	}
}

func TestGuardedAdapter_SurfacesTransportErrors(t *testing.T) {
	cause := errors.New("connection reset")
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{Err: cause})
	guard, err := NewGuardedAdapter("uphold", fake, NewAdaptivePolicy(NewMemoryStateStore()))
	if err != nil {
		t.Fatalf("new guarded adapter: %v", err)
	}

	if _, err := guard.Do(context.Background(), core.TransportRequest{Method: "GET", URL: "https://api.uphold.com/v0/me"}); !errors.Is(err, cause) {
		t.Fatalf("expected transport error passthrough, got %v", err)
	}
}

func TestGuardedAdapter_ReportsWrappedKind(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest")
	guard, err := NewGuardedAdapter("uphold", fake, NewAdaptivePolicy(NewMemoryStateStore()))
	if err != nil {
		t.Fatalf("new guarded adapter: %v", err)
	}
	if got := guard.Kind(); got != "rest" {
		t.Fatalf("expected wrapped kind %q, got %q", "rest", got)
	}
	var nilGuard *GuardedAdapter
	if got := nilGuard.Kind(); got != "" {
		t.Fatalf("expected empty kind on nil guard, got %q", got)
	}
}

func TestNewGuardedAdapter_ValidatesDependencies(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold")
	policy := NewAdaptivePolicy(NewMemoryStateStore())

	if _, err := NewGuardedAdapter("", fake, policy); err == nil {
		t.Fatalf("expected provider id requirement")
	}
	if _, err := NewGuardedAdapter("uphold", nil, policy); err == nil {
		t.Fatalf("expected adapter requirement")
	}
	if _, err := NewGuardedAdapter("uphold", fake, nil); err == nil {
		t.Fatalf("expected policy requirement")
	}
}
