package rewards_test

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	rewards "github.com/goliatone/go-rewards"
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/devkit"
	"github.com/goliatone/go-rewards/providers/bitflyer"
	"github.com/goliatone/go-rewards/providers/gemini"
	"github.com/goliatone/go-rewards/ratelimit"
)

func scriptedJSON(status int, body string) devkit.TransportScript {
	return devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       []byte(body),
		},
	}
}

func TestNewCustodianClients_Validation(t *testing.T) {
	if _, err := rewards.NewCustodianClients("uphold", rewards.CustodianTransport{}); err == nil {
		t.Fatalf("expected error for missing adapter")
	}

	clients, err := rewards.NewCustodianClients("uphold", rewards.CustodianTransport{
		Adapter: devkit.NewFakeTransportAdapter("fake"),
	})
	if err != nil {
		t.Fatalf("NewCustodianClients: %v", err)
	}
	if clients.API == nil {
		t.Fatalf("expected an api client")
	}
	if clients.Claim != clients.API || clients.Payout != clients.API {
		t.Fatalf("without credentials claim and payout must fall back to the api client")
	}
}

func TestRegisterBuiltinProviders_SignsClaimRequests(t *testing.T) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	adapter := devkit.NewFakeTransportAdapter("fake",
		scriptedJSON(http.StatusOK, `{"access_token":"bf-token","refresh_token":"bf-refresh","expires_in":259002,"account_hash":"hash-1","linking_info":"linking-1","deposit_id":"deposit-1"}`),
		scriptedJSON(http.StatusOK, ``),
	)
	registry := rewards.NewProviderRegistry()
	err = rewards.RegisterBuiltinProviders(registry, rewards.BuiltinProviderConfigs{
		Transport: &rewards.CustodianTransport{
			Adapter:    adapter,
			ClaimKeyID: "primary",
			ClaimKey:   private,
		},
		Bitflyer: &bitflyer.Config{
			Environment:  core.EnvironmentStaging,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			PaymentID:    "payment-1",
			RequestID:    "request-1",
		},
	})
	if err != nil {
		t.Fatalf("RegisterBuiltinProviders: %v", err)
	}
	provider, ok := registry.Get("bitflyer")
	if !ok {
		t.Fatalf("expected bitflyer registered")
	}

	result, err := provider.Authorize(context.Background(), core.ExternalWallet{}, core.OAuthRedirect{Code: "oauth-code"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Address != "deposit-1" {
		t.Fatalf("expected deposit id address, got %q", result.Address)
	}

	requests := adapter.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected exchange then claim, got %d requests", len(requests))
	}
	if requests[0].Headers["Signature"] != "" {
		t.Fatalf("token exchange must not carry an http signature, got %q", requests[0].Headers["Signature"])
	}

	claim := requests[1]
	if !strings.Contains(claim.URL, "/v3/wallet/bitflyer/payment-1/claim") {
		t.Fatalf("unexpected claim url %q", claim.URL)
	}
	digest := claim.Headers["Digest"]
	if digest == "" {
		t.Fatalf("claim request carries no digest header")
	}
	header := claim.Headers["Signature"]
	if !strings.Contains(header, `keyId="primary"`) {
		t.Fatalf("expected configured key id in %q", header)
	}
	raw, err := base64.StdEncoding.DecodeString(signatureComponent(t, header))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	parsed, err := url.Parse(claim.URL)
	if err != nil {
		t.Fatalf("parse claim url: %v", err)
	}
	signingString := "(request-target): post " + parsed.Path + "\ndigest: " + digest
	if !ed25519.Verify(public, []byte(signingString), raw) {
		t.Fatalf("claim signature did not verify against the signing string")
	}
}

func TestRegisterBuiltinProviders_SignsGeminiPayouts(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("fake",
		scriptedJSON(http.StatusOK, `{"result":"OK","tx_ref":"tx-1","status":"Pending"}`),
	)
	registry := rewards.NewProviderRegistry()
	err := rewards.RegisterBuiltinProviders(registry, rewards.BuiltinProviderConfigs{
		Transport: &rewards.CustodianTransport{
			Adapter:         adapter,
			GeminiAPISecret: "payments-secret",
		},
		Gemini: &gemini.Config{
			Environment: core.EnvironmentStaging,
			ClientID:    "client-id",
			PaymentID:   "payment-1",
		},
	})
	if err != nil {
		t.Fatalf("RegisterBuiltinProviders: %v", err)
	}
	registered, ok := registry.Get("gemini")
	if !ok {
		t.Fatalf("expected gemini registered")
	}
	provider, ok := registered.(core.TransactionProvider)
	if !ok {
		t.Fatalf("gemini must settle transactions")
	}

	id, err := provider.SubmitTransaction(context.Background(), core.ExternalWallet{Token: "token"}, core.ExternalTransaction{
		TransactionID: "tx-1",
		Destination:   "recipient-1",
		Amount:        5,
	})
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if id != "tx-1" {
		t.Fatalf("expected caller tx ref, got %q", id)
	}

	requests := adapter.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected a single pay request, got %d", len(requests))
	}
	payload := requests[0].Headers["X-GEMINI-PAYLOAD"]
	if payload == "" {
		t.Fatalf("pay request carries no payload header")
	}
	mac := hmac.New(sha512.New384, []byte("payments-secret"))
	mac.Write([]byte(payload))
	if want := hex.EncodeToString(mac.Sum(nil)); requests[0].Headers["X-GEMINI-SIGNATURE"] != want {
		t.Fatalf("expected signature %q, got %q", want, requests[0].Headers["X-GEMINI-SIGNATURE"])
	}
}

func TestRegisterBuiltinProviders_ThrottlesAfterQuotaExhaustion(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("fake",
		scriptedJSON(http.StatusTooManyRequests, `{"message":"slow down"}`),
	)
	registry := rewards.NewProviderRegistry()
	err := rewards.RegisterBuiltinProviders(registry, rewards.BuiltinProviderConfigs{
		Transport: &rewards.CustodianTransport{
			Adapter:    adapter,
			RateLimits: ratelimit.NewMemoryStateStore(),
		},
		Bitflyer: &bitflyer.Config{
			Environment:  core.EnvironmentStaging,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			PaymentID:    "payment-1",
			RequestID:    "request-1",
		},
	})
	if err != nil {
		t.Fatalf("RegisterBuiltinProviders: %v", err)
	}
	provider, ok := registry.Get("bitflyer")
	if !ok {
		t.Fatalf("expected bitflyer registered")
	}

	wallet := core.ExternalWallet{Token: "token"}
	if _, err := provider.FetchBalance(context.Background(), wallet); err == nil {
		t.Fatalf("expected error from the throttled response")
	}
	if adapter.RequestCount() != 1 {
		t.Fatalf("expected the first call on the wire, got %d", adapter.RequestCount())
	}

	_, err = provider.FetchBalance(context.Background(), wallet)
	if err == nil {
		t.Fatalf("expected the bucket to refuse the follow-up call")
	}
	var rewardsErr *goerrors.Error
	if !goerrors.As(err, &rewardsErr) {
		t.Fatalf("expected a rewards error envelope, got %v", err)
	}
	if rewardsErr.TextCode != core.RewardsErrorRateLimited {
		t.Fatalf("expected %q, got %q", core.RewardsErrorRateLimited, rewardsErr.TextCode)
	}
	if adapter.RequestCount() != 1 {
		t.Fatalf("throttled call must not reach the wire, got %d requests", adapter.RequestCount())
	}
}

func signatureComponent(t *testing.T, header string) string {
	t.Helper()
	for _, part := range strings.Split(header, ",") {
		if strings.HasPrefix(part, "signature=") {
			return strings.Trim(strings.TrimPrefix(part, "signature="), `"`)
		}
	}
	t.Fatalf("no signature component in %q", header)
	return ""
}
