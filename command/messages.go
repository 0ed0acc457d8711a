// Package command exposes the rewards mutations as go-command messages so
// callers can route them through a dispatcher instead of holding service
// references directly.
package command

import (
	"strings"
)

const (
	TypeConnectWallet      = "rewards.command.wallet.connect"
	TypeDisconnectWallet   = "rewards.command.wallet.disconnect"
	TypeRequestCredentials = "rewards.command.credentials.request"
	TypePollCredentials    = "rewards.command.credentials.poll"
	TypeRedeemContribution = "rewards.command.contribution.redeem"
	TypeSettleContribution = "rewards.command.contribution.settle"
	TypePollSettlement     = "rewards.command.contribution.poll"
)

type ConnectWalletMessage struct {
	ProviderID string
	Query      map[string]string
}

func (ConnectWalletMessage) Type() string { return TypeConnectWallet }

func (m ConnectWalletMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	return nil
}

type DisconnectWalletMessage struct {
	ProviderID string
	Reason     string
}

func (DisconnectWalletMessage) Type() string { return TypeDisconnectWallet }

func (m DisconnectWalletMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	return nil
}

type RequestCredentialsMessage struct {
	OrderID    string
	IssuerID   string
	Count      int
	TokenValue float64
}

func (RequestCredentialsMessage) Type() string { return TypeRequestCredentials }

func (m RequestCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return commandValidationError("order_id", "order id is required")
	}
	if strings.TrimSpace(m.IssuerID) == "" {
		return commandValidationError("issuer_id", "issuer id is required")
	}
	if m.Count <= 0 {
		return commandValidationError("count", "count must be positive")
	}
	if m.TokenValue <= 0 {
		return commandValidationError("token_value", "token value must be positive")
	}
	return nil
}

type PollCredentialsMessage struct {
	BatchID string
}

func (PollCredentialsMessage) Type() string { return TypePollCredentials }

func (m PollCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return commandValidationError("batch_id", "batch id is required")
	}
	return nil
}

type RedeemContributionMessage struct {
	ContributionID string
	Amount         float64
	Suggestion     string
}

func (RedeemContributionMessage) Type() string { return TypeRedeemContribution }

func (m RedeemContributionMessage) Validate() error {
	if strings.TrimSpace(m.ContributionID) == "" {
		return commandValidationError("contribution_id", "contribution id is required")
	}
	if m.Amount <= 0 {
		return commandValidationError("amount", "amount must be positive")
	}
	if strings.TrimSpace(m.Suggestion) == "" {
		return commandValidationError("suggestion", "suggestion payload is required")
	}
	return nil
}

type SettleContributionMessage struct {
	ContributionID string
	ProviderID     string
	Destination    string
	Amount         float64
}

func (SettleContributionMessage) Type() string { return TypeSettleContribution }

func (m SettleContributionMessage) Validate() error {
	if strings.TrimSpace(m.ContributionID) == "" {
		return commandValidationError("contribution_id", "contribution id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	if strings.TrimSpace(m.Destination) == "" {
		return commandValidationError("destination", "destination is required")
	}
	if m.Amount <= 0 {
		return commandValidationError("amount", "amount must be positive")
	}
	return nil
}

type PollSettlementMessage struct {
	TransactionID string
}

func (PollSettlementMessage) Type() string { return TypePollSettlement }

func (m PollSettlementMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}
