package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-rewards/contribution"
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/credentials"
)

// WalletService is the wallet-linking surface commands mutate through.
type WalletService interface {
	ConnectExternalWallet(ctx context.Context, providerID string, query map[string]string) (core.ExternalWallet, error)
	DisconnectWallet(ctx context.Context, providerID string, reason string) error
}

type CredentialService interface {
	RequestBatch(ctx context.Context, in credentials.RequestBatchInput) (core.CredsBatch, error)
	Poll(ctx context.Context, batchID string) (core.RetrySignal, error)
	Redeem(ctx context.Context, contributionID string, amount float64, suggestion string) error
}

type SettlementService interface {
	Settle(ctx context.Context, in contribution.SettleInput) (core.ExternalTransaction, error)
	PollStatus(ctx context.Context, transactionID string) (core.RetrySignal, error)
}

type ConnectWalletCommand struct {
	service WalletService
}

func NewConnectWalletCommand(service WalletService) *ConnectWalletCommand {
	return &ConnectWalletCommand{service: service}
}

func (c *ConnectWalletCommand) Execute(ctx context.Context, msg ConnectWalletMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: wallet service is required")
	}
	wallet, err := c.service.ConnectExternalWallet(ctx, msg.ProviderID, msg.Query)
	if err != nil {
		return err
	}
	storeResult(ctx, wallet)
	return nil
}

type DisconnectWalletCommand struct {
	service WalletService
}

func NewDisconnectWalletCommand(service WalletService) *DisconnectWalletCommand {
	return &DisconnectWalletCommand{service: service}
}

func (c *DisconnectWalletCommand) Execute(ctx context.Context, msg DisconnectWalletMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: wallet service is required")
	}
	return c.service.DisconnectWallet(ctx, msg.ProviderID, msg.Reason)
}

type RequestCredentialsCommand struct {
	service CredentialService
}

func NewRequestCredentialsCommand(service CredentialService) *RequestCredentialsCommand {
	return &RequestCredentialsCommand{service: service}
}

func (c *RequestCredentialsCommand) Execute(ctx context.Context, msg RequestCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	batch, err := c.service.RequestBatch(ctx, credentials.RequestBatchInput{
		OrderID:    msg.OrderID,
		IssuerID:   msg.IssuerID,
		Count:      msg.Count,
		TokenValue: msg.TokenValue,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, batch)
	return nil
}

type PollCredentialsCommand struct {
	service CredentialService
}

func NewPollCredentialsCommand(service CredentialService) *PollCredentialsCommand {
	return &PollCredentialsCommand{service: service}
}

func (c *PollCredentialsCommand) Execute(ctx context.Context, msg PollCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	signal, err := c.service.Poll(ctx, msg.BatchID)
	if err != nil {
		return err
	}
	storeResult(ctx, signal)
	return nil
}

type RedeemContributionCommand struct {
	service CredentialService
}

func NewRedeemContributionCommand(service CredentialService) *RedeemContributionCommand {
	return &RedeemContributionCommand{service: service}
}

func (c *RedeemContributionCommand) Execute(ctx context.Context, msg RedeemContributionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	return c.service.Redeem(ctx, msg.ContributionID, msg.Amount, msg.Suggestion)
}

type SettleContributionCommand struct {
	service SettlementService
}

func NewSettleContributionCommand(service SettlementService) *SettleContributionCommand {
	return &SettleContributionCommand{service: service}
}

func (c *SettleContributionCommand) Execute(ctx context.Context, msg SettleContributionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: settlement service is required")
	}
	tx, err := c.service.Settle(ctx, contribution.SettleInput{
		ContributionID: msg.ContributionID,
		ProviderID:     msg.ProviderID,
		Destination:    msg.Destination,
		Amount:         msg.Amount,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, tx)
	return nil
}

type PollSettlementCommand struct {
	service SettlementService
}

func NewPollSettlementCommand(service SettlementService) *PollSettlementCommand {
	return &PollSettlementCommand{service: service}
}

func (c *PollSettlementCommand) Execute(ctx context.Context, msg PollSettlementMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: settlement service is required")
	}
	signal, err := c.service.PollStatus(ctx, msg.TransactionID)
	if err != nil {
		return err
	}
	storeResult(ctx, signal)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
