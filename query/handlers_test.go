package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-rewards/core"
)

func TestGetWalletQuery_QueryDelegates(t *testing.T) {
	expected := core.ExternalWallet{
		Provider: "uphold",
		Status:   core.WalletStatusVerified,
		Address:  "card-1",
	}
	called := false
	reader := stubWalletReader{
		getFn: func(_ context.Context, providerID string) (core.ExternalWallet, error) {
			called = true
			if providerID != "uphold" {
				t.Fatalf("unexpected provider id: %q", providerID)
			}
			return expected, nil
		},
	}

	result, err := NewGetWalletQuery(reader).Query(context.Background(), GetWalletMessage{ProviderID: "uphold"})
	if err != nil {
		t.Fatalf("query wallet: %v", err)
	}
	if !called {
		t.Fatalf("expected wallet reader invocation")
	}
	if result.Status != core.WalletStatusVerified || result.Address != "card-1" {
		t.Fatalf("unexpected wallet result: %#v", result)
	}
}

func TestGetBalanceQuery_QueryDelegates(t *testing.T) {
	called := false
	reader := stubWalletReader{
		balanceFn: func(_ context.Context, providerID string) (float64, error) {
			called = true
			if providerID != "gemini" {
				t.Fatalf("unexpected provider id: %q", providerID)
			}
			return 12.5, nil
		},
	}

	result, err := NewGetBalanceQuery(reader).Query(context.Background(), GetBalanceMessage{ProviderID: "gemini"})
	if err != nil {
		t.Fatalf("query balance: %v", err)
	}
	if !called {
		t.Fatalf("expected balance reader invocation")
	}
	if result != 12.5 {
		t.Fatalf("unexpected balance result: %v", result)
	}
}

func TestListLiveTokensQuery_QueryDelegates(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	called := false
	reader := stubTokenReader{
		listFn: func(_ context.Context, now time.Time) ([]core.UnblindedToken, error) {
			called = true
			if !now.Equal(at) {
				t.Fatalf("unexpected list time: %v", now)
			}
			return []core.UnblindedToken{{ID: "tok_1", Value: 0.25}}, nil
		},
	}

	result, err := NewListLiveTokensQuery(reader).Query(context.Background(), ListLiveTokensMessage{At: at})
	if err != nil {
		t.Fatalf("query live tokens: %v", err)
	}
	if !called {
		t.Fatalf("expected token reader invocation")
	}
	if len(result) != 1 || result[0].ID != "tok_1" {
		t.Fatalf("unexpected token result: %#v", result)
	}
}

func TestListLiveTokensQuery_ZeroTimeDefaultsToNow(t *testing.T) {
	frozen := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	reader := stubTokenReader{
		listFn: func(_ context.Context, now time.Time) ([]core.UnblindedToken, error) {
			if !now.Equal(frozen) {
				t.Fatalf("expected frozen clock %v, got %v", frozen, now)
			}
			return nil, nil
		},
	}

	qry := NewListLiveTokensQuery(reader)
	qry.now = func() time.Time { return frozen }
	if _, err := qry.Query(context.Background(), ListLiveTokensMessage{}); err != nil {
		t.Fatalf("query live tokens: %v", err)
	}
}

func TestTransactionQueries_Delegate(t *testing.T) {
	calledGet := false
	calledByContribution := false
	reader := stubTransactionReader{
		getFn: func(_ context.Context, transactionID string) (core.ExternalTransaction, error) {
			calledGet = true
			if transactionID != "tx_1" {
				t.Fatalf("unexpected transaction id %q", transactionID)
			}
			return core.ExternalTransaction{TransactionID: transactionID, Status: core.TransactionStatusSubmitted}, nil
		},
		byContributionFn: func(_ context.Context, contributionID string) (core.ExternalTransaction, error) {
			calledByContribution = true
			if contributionID != "contrib_1" {
				t.Fatalf("unexpected contribution id %q", contributionID)
			}
			return core.ExternalTransaction{TransactionID: "tx_1", ContributionID: contributionID}, nil
		},
	}

	getResult, err := NewGetTransactionQuery(reader).Query(context.Background(), GetTransactionMessage{
		TransactionID: "tx_1",
	})
	if err != nil {
		t.Fatalf("query transaction: %v", err)
	}
	if !calledGet || getResult.TransactionID != "tx_1" {
		t.Fatalf("expected get transaction delegation")
	}

	byContribution, err := NewGetContributionTransactionQuery(reader).Query(context.Background(), GetContributionTransactionMessage{
		ContributionID: "contrib_1",
	})
	if err != nil {
		t.Fatalf("query contribution transaction: %v", err)
	}
	if !calledByContribution || byContribution.ContributionID != "contrib_1" {
		t.Fatalf("expected contribution transaction delegation")
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name:    "get wallet valid",
			msg:     GetWalletMessage{ProviderID: "uphold"},
			wantErr: false,
		},
		{
			name:    "get wallet missing provider",
			msg:     GetWalletMessage{},
			wantErr: true,
		},
		{
			name:    "get balance missing provider",
			msg:     GetBalanceMessage{ProviderID: "  "},
			wantErr: true,
		},
		{
			name:    "list live tokens zero time ok",
			msg:     ListLiveTokensMessage{},
			wantErr: false,
		},
		{
			name:    "get transaction missing id",
			msg:     GetTransactionMessage{},
			wantErr: true,
		},
		{
			name:    "get transaction valid",
			msg:     GetTransactionMessage{TransactionID: "tx_1"},
			wantErr: false,
		},
		{
			name:    "contribution transaction missing id",
			msg:     GetContributionTransactionMessage{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubWalletReader struct {
	getFn     func(ctx context.Context, providerID string) (core.ExternalWallet, error)
	balanceFn func(ctx context.Context, providerID string) (float64, error)
}

func (s stubWalletReader) GetExternalWallet(ctx context.Context, providerID string) (core.ExternalWallet, error) {
	if s.getFn == nil {
		return core.ExternalWallet{}, fmt.Errorf("get external wallet not configured")
	}
	return s.getFn(ctx, providerID)
}

func (s stubWalletReader) FetchBalance(ctx context.Context, providerID string) (float64, error) {
	if s.balanceFn == nil {
		return 0, fmt.Errorf("fetch balance not configured")
	}
	return s.balanceFn(ctx, providerID)
}

type stubTokenReader struct {
	listFn func(ctx context.Context, now time.Time) ([]core.UnblindedToken, error)
}

func (s stubTokenReader) ListLive(ctx context.Context, now time.Time) ([]core.UnblindedToken, error) {
	if s.listFn == nil {
		return nil, fmt.Errorf("list live tokens not configured")
	}
	return s.listFn(ctx, now)
}

type stubTransactionReader struct {
	getFn            func(ctx context.Context, transactionID string) (core.ExternalTransaction, error)
	byContributionFn func(ctx context.Context, contributionID string) (core.ExternalTransaction, error)
}

func (s stubTransactionReader) Get(ctx context.Context, transactionID string) (core.ExternalTransaction, error) {
	if s.getFn == nil {
		return core.ExternalTransaction{}, fmt.Errorf("get transaction not configured")
	}
	return s.getFn(ctx, transactionID)
}

func (s stubTransactionReader) GetByContribution(ctx context.Context, contributionID string) (core.ExternalTransaction, error) {
	if s.byContributionFn == nil {
		return core.ExternalTransaction{}, fmt.Errorf("get contribution transaction not configured")
	}
	return s.byContributionFn(ctx, contributionID)
}

var (
	_ WalletReader      = stubWalletReader{}
	_ TokenReader       = stubTokenReader{}
	_ TransactionReader = stubTransactionReader{}
)
