// Package query exposes the rewards read surface as go-command queries.
package query

import (
	"strings"
	"time"
)

const (
	TypeGetWallet                  = "rewards.query.wallet.get"
	TypeGetBalance                 = "rewards.query.wallet.balance"
	TypeListLiveTokens             = "rewards.query.tokens.live"
	TypeGetTransaction             = "rewards.query.transaction.get"
	TypeGetContributionTransaction = "rewards.query.transaction.by_contribution"
)

type GetWalletMessage struct {
	ProviderID string
}

func (GetWalletMessage) Type() string { return TypeGetWallet }

func (m GetWalletMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return queryValidationError("provider_id", "provider id is required")
	}
	return nil
}

type GetBalanceMessage struct {
	ProviderID string
}

func (GetBalanceMessage) Type() string { return TypeGetBalance }

func (m GetBalanceMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return queryValidationError("provider_id", "provider id is required")
	}
	return nil
}

// ListLiveTokensMessage with a zero At lists against the current time.
type ListLiveTokensMessage struct {
	At time.Time
}

func (ListLiveTokensMessage) Type() string { return TypeListLiveTokens }

func (ListLiveTokensMessage) Validate() error { return nil }

type GetTransactionMessage struct {
	TransactionID string
}

func (GetTransactionMessage) Type() string { return TypeGetTransaction }

func (m GetTransactionMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return queryValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

type GetContributionTransactionMessage struct {
	ContributionID string
}

func (GetContributionTransactionMessage) Type() string { return TypeGetContributionTransaction }

func (m GetContributionTransactionMessage) Validate() error {
	if strings.TrimSpace(m.ContributionID) == "" {
		return queryValidationError("contribution_id", "contribution id is required")
	}
	return nil
}
