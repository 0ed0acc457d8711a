package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/devkit"
)

func TestResolve_NormalizesUpholdProfile(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":"member-1","name":"Casey","status":"ok","memberAt":"2020-01-01","country":"US"}`),
		},
	})
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	profile, err := resolver.Resolve(context.Background(), "uphold", "tok-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile.MemberID != "member-1" {
		t.Fatalf("expected member id, got %q", profile.MemberID)
	}
	if profile.UserName != "Casey" {
		t.Fatalf("expected user name, got %q", profile.UserName)
	}
	if !profile.Verified {
		t.Fatalf("expected verified profile")
	}
	if profile.ExternalAccountID() != "uphold|member-1" {
		t.Fatalf("unexpected external id %q", profile.ExternalAccountID())
	}

	sent := fake.Requests()[0]
	if sent.Method != "GET" {
		t.Fatalf("expected GET, got %q", sent.Method)
	}
	if sent.Headers["Authorization"] != "Bearer tok-1" {
		t.Fatalf("expected bearer header, got %q", sent.Headers["Authorization"])
	}
}

func TestResolve_UpholdPendingAccountIsNotVerified(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":"member-1","name":"Casey","status":"pending"}`),
		},
	})
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	profile, err := resolver.Resolve(context.Background(), "uphold", "tok-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile.Verified {
		t.Fatalf("pending account must not count as verified")
	}
}

func TestResolve_NormalizesGeminiProfile(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("gemini", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Body:       []byte(`{"account":{"accountHashId":"hash-9"},"users":[{"name":"Riley","isVerified":true,"countryCode":"us"}]}`),
		},
	})
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	profile, err := resolver.Resolve(context.Background(), "gemini", "tok-2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile.MemberID != "hash-9" {
		t.Fatalf("expected account hash as member id, got %q", profile.MemberID)
	}
	if !profile.Verified {
		t.Fatalf("expected verified profile")
	}
	if fake.Requests()[0].Method != "POST" {
		t.Fatalf("gemini account endpoint is POST, got %q", fake.Requests()[0].Method)
	}
}

func TestResolve_UnknownProviderIsProfileNotFound(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("none")
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "bitflyer", "tok-3")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
	if fake.RequestCount() != 0 {
		t.Fatalf("unknown provider must not hit the network")
	}
}

func TestResolve_ErrorStatusIsProfileNotFound(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{StatusCode: 401, Body: []byte(`{}`)},
	})
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if _, err := resolver.Resolve(context.Background(), "uphold", "tok-1"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
}

func TestResolve_ConfigOverridesEndpoint(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":"member-1"}`),
		},
	})
	resolver, err := NewResolver(Config{
		Transport: fake,
		ProviderUserInfo: map[string]ProviderUserInfoConfig{
			"Uphold": {URL: "https://uphold-sandbox.example.com/v0/me", Method: "get"},
		},
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if _, err := resolver.Resolve(context.Background(), "uphold", "tok-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fake.Requests()[0].URL != "https://uphold-sandbox.example.com/v0/me" {
		t.Fatalf("expected override url, got %q", fake.Requests()[0].URL)
	}
}

func TestVerifyMember_AcceptsMatchingAccount(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":"member-1","status":"ok","memberAt":"2020-01-01"}`),
		},
	})
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	wallet := core.ExternalWallet{Provider: "uphold", Token: "tok-1", MemberID: "member-1"}
	if err := resolver.VerifyMember(context.Background(), wallet); err != nil {
		t.Fatalf("verify member: %v", err)
	}
}

func TestVerifyMember_RejectsDifferentAccount(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":"member-2","status":"ok","memberAt":"2020-01-01"}`),
		},
	})
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	wallet := core.ExternalWallet{Provider: "uphold", Token: "tok-1", MemberID: "member-1"}
	if err := resolver.VerifyMember(context.Background(), wallet); !errors.Is(err, core.ErrMismatchedProviderAccounts) {
		t.Fatalf("expected mismatched accounts, got %v", err)
	}
}

func TestVerifyMember_RejectsUnverifiedAccount(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("uphold", devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":"member-1","status":"pending"}`),
		},
	})
	resolver, err := NewResolver(Config{Transport: fake})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	wallet := core.ExternalWallet{Provider: "uphold", Token: "tok-1", MemberID: "member-1"}
	if err := resolver.VerifyMember(context.Background(), wallet); !errors.Is(err, core.ErrKYCRequired) {
		t.Fatalf("expected kyc required, got %v", err)
	}
}
