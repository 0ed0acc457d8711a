package credentials_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/credentials"
	"github.com/goliatone/go-rewards/devkit"
	"github.com/goliatone/go-rewards/endpoints"
)

type fixture struct {
	service *credentials.Service
	adapter *devkit.FakeTransportAdapter
	batches *devkit.MemoryCredsBatchStore
	tokens  *devkit.MemoryTokenStore
}

func newFixture(t *testing.T, scripts ...devkit.TransportScript) fixture {
	t.Helper()
	adapter := devkit.NewFakeTransportAdapter("fake", scripts...)
	client, err := endpoints.NewClient(adapter, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	batches := devkit.NewMemoryCredsBatchStore()
	tokens := devkit.NewMemoryTokenStore()
	service, err := credentials.NewService(credentials.Dependencies{
		Environment: core.EnvironmentDevelopment,
		Client:      client,
		Batches:     batches,
		Tokens:      tokens,
		Signer:      &devkit.FakeSigner{},
		Now:         func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return fixture{service: service, adapter: adapter, batches: batches, tokens: tokens}
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

func requestInput() credentials.RequestBatchInput {
	return credentials.RequestBatchInput{
		OrderID:    "order-1",
		IssuerID:   "issuer-1",
		Count:      2,
		TokenValue: 0.25,
		ExpiresAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRequestBatchPersistsBeforeSubmitting(t *testing.T) {
	fx := newFixture(t, jsonResponse(http.StatusOK, ``))

	batch, err := fx.service.RequestBatch(context.Background(), requestInput())
	if err != nil {
		t.Fatalf("RequestBatch: %v", err)
	}
	if batch.Status != core.CredsBatchStatusBlinded {
		t.Fatalf("expected blinded batch, got %q", batch.Status)
	}
	if len(batch.Creds) != 2 || len(batch.BlindedCreds) != 2 {
		t.Fatalf("expected 2 creds and 2 blinded creds, got %d/%d", len(batch.Creds), len(batch.BlindedCreds))
	}
	if fx.adapter.RequestCount() != 1 {
		t.Fatalf("expected one submission request, got %d", fx.adapter.RequestCount())
	}

	stored, err := fx.batches.Get(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("stored batch: %v", err)
	}
	if len(stored.Creds) != 2 {
		t.Fatalf("raw creds must be persisted for the poll step, got %d", len(stored.Creds))
	}
}

func TestPollStillSigningReturnsShortRetry(t *testing.T) {
	fx := newFixture(t,
		jsonResponse(http.StatusOK, ``),
		jsonResponse(http.StatusAccepted, ``),
	)

	batch, err := fx.service.RequestBatch(context.Background(), requestInput())
	if err != nil {
		t.Fatalf("RequestBatch: %v", err)
	}

	signal, err := fx.service.Poll(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if signal != core.RetrySignalShort {
		t.Fatalf("expected short retry for 202, got %q", signal)
	}
	if fx.tokens.Count() != 0 {
		t.Fatalf("no tokens may land while the batch is unsigned")
	}
}

func TestPollAmbiguousServerErrorReturnsRetry(t *testing.T) {
	fx := newFixture(t,
		jsonResponse(http.StatusOK, ``),
		jsonResponse(http.StatusInternalServerError, `{"message":"oops"}`),
	)

	batch, err := fx.service.RequestBatch(context.Background(), requestInput())
	if err != nil {
		t.Fatalf("RequestBatch: %v", err)
	}

	signal, err := fx.service.Poll(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if signal != core.RetrySignalRetry {
		t.Fatalf("expected retry for 500, got %q", signal)
	}
}

func TestPollSignedBatchUnblindsAndStoresTokens(t *testing.T) {
	fx := newFixture(t,
		jsonResponse(http.StatusOK, ``),
		jsonResponse(http.StatusOK, `{"batchProof":"proof-1","publicKey":"key-1","signedCreds":["sig-1","sig-2"]}`),
	)

	batch, err := fx.service.RequestBatch(context.Background(), requestInput())
	if err != nil {
		t.Fatalf("RequestBatch: %v", err)
	}

	signal, err := fx.service.Poll(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if signal != core.RetrySignalNone {
		t.Fatalf("finished batch must not request a retry, got %q", signal)
	}

	finished, err := fx.batches.Get(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("finished batch: %v", err)
	}
	if finished.Status != core.CredsBatchStatusFinished {
		t.Fatalf("expected finished status, got %q", finished.Status)
	}
	live, err := fx.tokens.ListLive(context.Background(), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected 2 live tokens, got %d", len(live))
	}
	for _, token := range live {
		if token.Value != 0.25 {
			t.Fatalf("expected token value 0.25, got %v", token.Value)
		}
		if token.PublicKey != "key-1" {
			t.Fatalf("expected public key key-1, got %q", token.PublicKey)
		}
	}

	again, err := fx.service.Poll(context.Background(), batch.ID)
	if err != nil || again != core.RetrySignalNone {
		t.Fatalf("polling a finished batch must be a no-op, got (%q, %v)", again, err)
	}
	if fx.tokens.Count() != 2 {
		t.Fatalf("re-poll must not duplicate tokens, got %d", fx.tokens.Count())
	}
}

func seedTokens(t *testing.T, tokens *devkit.MemoryTokenStore, entries ...core.UnblindedToken) {
	t.Helper()
	if err := tokens.Save(context.Background(), core.SaveTokensInput{BatchID: "batch-seed", Tokens: entries}); err != nil {
		t.Fatalf("seed tokens: %v", err)
	}
}

func TestRedeemSpendsExactCoverage(t *testing.T) {
	fx := newFixture(t, jsonResponse(http.StatusOK, ``))
	future := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedTokens(t, fx.tokens,
		core.UnblindedToken{ID: "token-1", TokenValue: "unblinded-1", PublicKey: "key-1", Value: 2.5, ExpiresAt: future},
		core.UnblindedToken{ID: "token-2", TokenValue: "unblinded-2", PublicKey: "key-1", Value: 2.5, ExpiresAt: future},
	)

	if err := fx.service.Redeem(context.Background(), "contribution-1", 5.0, "suggestion-payload"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if fx.tokens.Count() != 0 {
		t.Fatalf("redeemed tokens must be gone, %d remain", fx.tokens.Count())
	}
	if fx.adapter.RequestCount() != 1 {
		t.Fatalf("expected one suggestions request, got %d", fx.adapter.RequestCount())
	}
}

func TestRedeemInsufficientFundsSweepsOnlyExpired(t *testing.T) {
	fx := newFixture(t)
	past := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedTokens(t, fx.tokens,
		core.UnblindedToken{ID: "token-1", TokenValue: "unblinded-1", PublicKey: "key-1", Value: 2, ExpiresAt: past},
		core.UnblindedToken{ID: "token-2", TokenValue: "unblinded-2", PublicKey: "key-1", Value: 2, ExpiresAt: future},
	)

	err := fx.service.Redeem(context.Background(), "contribution-1", 5.0, "suggestion-payload")
	if !errors.Is(err, core.ErrNotEnoughFunds) {
		t.Fatalf("expected not enough funds, got %v", err)
	}
	if fx.adapter.RequestCount() != 0 {
		t.Fatalf("insufficient funds must not reach the network, got %d requests", fx.adapter.RequestCount())
	}
	if fx.tokens.Count() != 1 {
		t.Fatalf("expected only the expired token deleted, %d remain", fx.tokens.Count())
	}
	live, err := fx.tokens.ListLive(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 1 || live[0].ID != "token-2" {
		t.Fatalf("the live token must be untouched, got %+v", live)
	}
}

func TestRedeemFailureReleasesReservation(t *testing.T) {
	fx := newFixture(t, jsonResponse(http.StatusBadRequest, `{"message":"bad suggestion"}`))
	future := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedTokens(t, fx.tokens,
		core.UnblindedToken{ID: "token-1", TokenValue: "unblinded-1", PublicKey: "key-1", Value: 5, ExpiresAt: future},
	)

	err := fx.service.Redeem(context.Background(), "contribution-1", 5.0, "suggestion-payload")
	if !errors.Is(err, core.ErrUnexpectedStatusCode) {
		t.Fatalf("expected unexpected status code, got %v", err)
	}
	live, err := fx.tokens.ListLive(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("failed redemption must release the reservation, got %d live tokens", len(live))
	}
}

func TestRedeemConcurrentReservationConflicts(t *testing.T) {
	fx := newFixture(t)
	future := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedTokens(t, fx.tokens,
		core.UnblindedToken{ID: "token-1", TokenValue: "unblinded-1", PublicKey: "key-1", Value: 5, ExpiresAt: future},
	)

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := fx.tokens.ReserveForRedemption(context.Background(), "contribution-1", 5.0, now); err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	_, err := fx.tokens.ReserveForRedemption(context.Background(), "contribution-2", 5.0, now)
	if !errors.Is(err, core.ErrNotEnoughFunds) {
		t.Fatalf("second reservation over the same tokens must fail, got %v", err)
	}
}
