package query

import (
	"context"
	"time"

	"github.com/goliatone/go-rewards/core"
)

type WalletReader interface {
	GetExternalWallet(ctx context.Context, providerID string) (core.ExternalWallet, error)
	FetchBalance(ctx context.Context, providerID string) (float64, error)
}

type TokenReader interface {
	ListLive(ctx context.Context, now time.Time) ([]core.UnblindedToken, error)
}

type TransactionReader interface {
	Get(ctx context.Context, transactionID string) (core.ExternalTransaction, error)
	GetByContribution(ctx context.Context, contributionID string) (core.ExternalTransaction, error)
}

type GetWalletQuery struct {
	reader WalletReader
}

func NewGetWalletQuery(reader WalletReader) *GetWalletQuery {
	return &GetWalletQuery{reader: reader}
}

func (q *GetWalletQuery) Query(ctx context.Context, msg GetWalletMessage) (core.ExternalWallet, error) {
	if q == nil || q.reader == nil {
		return core.ExternalWallet{}, queryDependencyError("query: wallet reader is required")
	}
	return q.reader.GetExternalWallet(ctx, msg.ProviderID)
}

type GetBalanceQuery struct {
	reader WalletReader
}

func NewGetBalanceQuery(reader WalletReader) *GetBalanceQuery {
	return &GetBalanceQuery{reader: reader}
}

func (q *GetBalanceQuery) Query(ctx context.Context, msg GetBalanceMessage) (float64, error) {
	if q == nil || q.reader == nil {
		return 0, queryDependencyError("query: wallet reader is required")
	}
	return q.reader.FetchBalance(ctx, msg.ProviderID)
}

type ListLiveTokensQuery struct {
	reader TokenReader
	now    func() time.Time
}

func NewListLiveTokensQuery(reader TokenReader) *ListLiveTokensQuery {
	return &ListLiveTokensQuery{reader: reader, now: func() time.Time { return time.Now().UTC() }}
}

func (q *ListLiveTokensQuery) Query(ctx context.Context, msg ListLiveTokensMessage) ([]core.UnblindedToken, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: token reader is required")
	}
	at := msg.At
	if at.IsZero() {
		at = q.now()
	}
	return q.reader.ListLive(ctx, at)
}

type GetTransactionQuery struct {
	reader TransactionReader
}

func NewGetTransactionQuery(reader TransactionReader) *GetTransactionQuery {
	return &GetTransactionQuery{reader: reader}
}

func (q *GetTransactionQuery) Query(ctx context.Context, msg GetTransactionMessage) (core.ExternalTransaction, error) {
	if q == nil || q.reader == nil {
		return core.ExternalTransaction{}, queryDependencyError("query: transaction reader is required")
	}
	return q.reader.Get(ctx, msg.TransactionID)
}

type GetContributionTransactionQuery struct {
	reader TransactionReader
}

func NewGetContributionTransactionQuery(reader TransactionReader) *GetContributionTransactionQuery {
	return &GetContributionTransactionQuery{reader: reader}
}

func (q *GetContributionTransactionQuery) Query(ctx context.Context, msg GetContributionTransactionMessage) (core.ExternalTransaction, error) {
	if q == nil || q.reader == nil {
		return core.ExternalTransaction{}, queryDependencyError("query: transaction reader is required")
	}
	return q.reader.GetByContribution(ctx, msg.ContributionID)
}
