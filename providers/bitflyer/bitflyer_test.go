package bitflyer_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/devkit"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/providers/bitflyer"
)

func newProvider(t *testing.T, scripts ...devkit.TransportScript) (*bitflyer.Provider, *devkit.FakeTransportAdapter) {
	t.Helper()
	adapter := devkit.NewFakeTransportAdapter("fake", scripts...)
	client, err := endpoints.NewClient(adapter, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	provider, err := bitflyer.New(bitflyer.Config{
		Environment:  core.EnvironmentStaging,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		PaymentID:    "payment-1",
		Client:       client,
		RequestID:    "request-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return provider, adapter
}

func jsonResponse(status int, body string) devkit.TransportScript {
	return devkit.TransportScript{
		Response: core.TransportResponse{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       []byte(body),
		},
	}
}

func TestAuthorizeLinksDepositID(t *testing.T) {
	provider, adapter := newProvider(t,
		jsonResponse(http.StatusOK, `{"access_token":"bf-token","refresh_token":"bf-refresh","expires_in":259002,"account_hash":"hash-1","linking_info":"linking-1","deposit_id":"deposit-1"}`),
		jsonResponse(http.StatusOK, ``),
	)

	result, err := provider.Authorize(context.Background(), core.ExternalWallet{}, core.OAuthRedirect{Code: "oauth-code"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Token != "bf-token" {
		t.Fatalf("expected token %q, got %q", "bf-token", result.Token)
	}
	if result.Address != "deposit-1" {
		t.Fatalf("expected deposit id address, got %q", result.Address)
	}
	if result.MemberID != "hash-1" {
		t.Fatalf("expected account hash member id, got %q", result.MemberID)
	}

	requests := adapter.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected exchange then claim, got %d requests", len(requests))
	}
	if !strings.Contains(requests[1].URL, "/v3/wallet/bitflyer/payment-1/claim") {
		t.Fatalf("unexpected claim url %q", requests[1].URL)
	}
	if !strings.Contains(string(requests[0].Body), `"external_account_id":"payment-1"`) {
		t.Fatalf("token request must carry the payment id, got %q", string(requests[0].Body))
	}
}

func TestAuthorizeUnrecognizedStatusLeavesTokenEmpty(t *testing.T) {
	provider, adapter := newProvider(t,
		jsonResponse(453, `<html>upgrade required</html>`),
	)

	result, err := provider.Authorize(context.Background(), core.ExternalWallet{}, core.OAuthRedirect{Code: "oauth-code"})
	if !errors.Is(err, core.ErrUnexpectedStatusCode) {
		t.Fatalf("expected unexpected status code for HTTP 453, got %v", err)
	}
	if result.Token != "" {
		t.Fatalf("no token may be kept from a failed exchange, got %q", result.Token)
	}
	if adapter.RequestCount() != 1 {
		t.Fatalf("failed exchange must not reach the claim endpoint, got %d requests", adapter.RequestCount())
	}
}

func TestPostOAuthRejectsPartialToken(t *testing.T) {
	endpoint, err := bitflyer.NewPostOAuth(core.EnvironmentProduction, bitflyer.PostOAuthRequest{
		ClientID:  "client-id",
		Code:      "code",
		PaymentID: "payment-1",
		RequestID: "request-1",
	})
	if err != nil {
		t.Fatalf("NewPostOAuth: %v", err)
	}

	_, got := endpoint.ProcessResponse(http.StatusOK, []byte(`{"access_token":"bf-token"}`), nil)
	if !errors.Is(got, core.ErrFailedToParseBody) {
		t.Fatalf("expected parse failure for missing deposit id, got %v", got)
	}
}

func TestFetchBalanceReadsInventory(t *testing.T) {
	provider, _ := newProvider(t,
		jsonResponse(http.StatusOK, `{"account_hash":"hash-1","inventory":[{"currency_code":"JPY","amount":1000,"available":1000},{"currency_code":"BAT","amount":4.0,"available":3.5}]}`),
	)

	balance, err := provider.FetchBalance(context.Background(), core.ExternalWallet{Token: "token"})
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if balance != 3.5 {
		t.Fatalf("expected available 3.5, got %v", balance)
	}
}
