package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rewards/core"
)

func TestRESTAdapter_RoundTrip(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"tx-1"}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.DefaultHeaders["Accept"] = "application/json"

	response, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  "post",
		URL:     server.URL + "/v0/transactions",
		Headers: map[string]string{"Authorization": "Bearer access-token"},
		Body:    []byte(`{"amount":1}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status %d", response.StatusCode)
	}
	if string(response.Body) != `{"id":"tx-1"}` {
		t.Fatalf("unexpected body %q", response.Body)
	}
	if !strings.Contains(response.Headers["Content-Type"], "application/json") {
		t.Fatalf("expected content type header, got %#v", response.Headers)
	}

	if captured == nil {
		t.Fatalf("expected request captured")
	}
	if captured.Method != http.MethodPost {
		t.Fatalf("expected method uppercased, got %q", captured.Method)
	}
	if captured.Header.Get("Authorization") != "Bearer access-token" {
		t.Fatalf("expected per-request header, got %q", captured.Header.Get("Authorization"))
	}
	if captured.Header.Get("Accept") != "application/json" {
		t.Fatalf("expected default header, got %q", captured.Header.Get("Accept"))
	}
}

func TestRESTAdapter_NeverRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	response, err := adapter.Do(context.Background(), core.TransportRequest{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if response.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 surfaced to caller, got %d", response.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("expected a single request, got %d", calls)
	}
}

func TestRESTAdapter_RejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 32

	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: server.URL})
	if err == nil {
		t.Fatalf("expected oversized body rejection")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
}

func TestRESTAdapter_ConnectionFailureIsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	adapter := NewRESTAdapter(nil)
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: url})
	if err == nil {
		t.Fatalf("expected connection failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.RewardsErrorProviderUnavailable {
		t.Fatalf("expected provider unavailable code, got %q", rich.TextCode)
	}
}

func TestRESTAdapter_RequiresURL(t *testing.T) {
	adapter := NewRESTAdapter(nil)
	if _, err := adapter.Do(context.Background(), core.TransportRequest{}); err == nil {
		t.Fatalf("expected missing url rejection")
	}
}
