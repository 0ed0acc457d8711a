// Package rewards links browser wallets to custodial providers, drives
// blinded-credential issuance and redemption, and settles contributions
// through provider transactions. The root package re-exports the core
// surface and wires the command layer for downstream composition.
package rewards

import (
	"fmt"

	rewardscommand "github.com/goliatone/go-rewards/command"
	"github.com/goliatone/go-rewards/core"
	rewardsquery "github.com/goliatone/go-rewards/query"
)

type Config = core.Config

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Environment = core.Environment

type ExternalWallet = core.ExternalWallet

type WalletStatus = core.WalletStatus

type OAuthRedirect = core.OAuthRedirect

type AuthorizeResult = core.AuthorizeResult

type Provider = core.Provider

type TransactionProvider = core.TransactionProvider

type Registry = core.Registry

type WalletStore = core.WalletStore

type TokenStore = core.TokenStore

type CredsBatchStore = core.CredsBatchStore

type TransactionStore = core.TransactionStore

type RetrySignal = core.RetrySignal

const (
	EnvironmentProduction  = core.EnvironmentProduction
	EnvironmentStaging     = core.EnvironmentStaging
	EnvironmentDevelopment = core.EnvironmentDevelopment
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, deps ServiceDependencies) (*Service, error) {
	return core.NewService(cfg, deps)
}

func NewProviderRegistry() *core.ProviderRegistry {
	return core.NewProviderRegistry()
}

// Commands is the full mutation surface expressed as go-command handlers.
type Commands struct {
	ConnectWallet      *rewardscommand.ConnectWalletCommand
	DisconnectWallet   *rewardscommand.DisconnectWalletCommand
	RequestCredentials *rewardscommand.RequestCredentialsCommand
	PollCredentials    *rewardscommand.PollCredentialsCommand
	RedeemContribution *rewardscommand.RedeemContributionCommand
	SettleContribution *rewardscommand.SettleContributionCommand
	PollSettlement     *rewardscommand.PollSettlementCommand
}

// Queries is the read surface expressed as go-command queries. A query
// backed by a reader the caller never supplied reports a dependency error
// instead of panicking.
type Queries struct {
	GetWallet                  *rewardsquery.GetWalletQuery
	GetBalance                 *rewardsquery.GetBalanceQuery
	ListLiveTokens             *rewardsquery.ListLiveTokensQuery
	GetTransaction             *rewardsquery.GetTransactionQuery
	GetContributionTransaction *rewardsquery.GetContributionTransactionQuery
}

// FacadeServices collects the three services a facade dispatches into.
type FacadeServices struct {
	Wallets     rewardscommand.WalletService
	Credentials rewardscommand.CredentialService
	Settlements rewardscommand.SettlementService
}

// FacadeReaders supplies the read-side stores behind the query surface.
// Wallets defaults to the wallet service when it exposes the reader
// methods; Tokens and Transactions come straight from the stores.
type FacadeReaders struct {
	Wallets      rewardsquery.WalletReader
	Tokens       rewardsquery.TokenReader
	Transactions rewardsquery.TransactionReader
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	readers FacadeReaders
}

func WithReaders(readers FacadeReaders) FacadeOption {
	return func(options *facadeOptions) {
		options.readers = readers
	}
}

type Facade struct {
	services FacadeServices
	commands Commands
	queries  Queries
}

func NewFacade(services FacadeServices, opts ...FacadeOption) (*Facade, error) {
	if services.Wallets == nil {
		return nil, fmt.Errorf("rewards: wallet service is required")
	}
	if services.Credentials == nil {
		return nil, fmt.Errorf("rewards: credential service is required")
	}
	if services.Settlements == nil {
		return nil, fmt.Errorf("rewards: settlement service is required")
	}

	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.readers.Wallets == nil {
		if reader, ok := services.Wallets.(rewardsquery.WalletReader); ok {
			cfg.readers.Wallets = reader
		}
	}

	facade := &Facade{services: services}
	facade.commands = Commands{
		ConnectWallet:      rewardscommand.NewConnectWalletCommand(services.Wallets),
		DisconnectWallet:   rewardscommand.NewDisconnectWalletCommand(services.Wallets),
		RequestCredentials: rewardscommand.NewRequestCredentialsCommand(services.Credentials),
		PollCredentials:    rewardscommand.NewPollCredentialsCommand(services.Credentials),
		RedeemContribution: rewardscommand.NewRedeemContributionCommand(services.Credentials),
		SettleContribution: rewardscommand.NewSettleContributionCommand(services.Settlements),
		PollSettlement:     rewardscommand.NewPollSettlementCommand(services.Settlements),
	}
	facade.queries = Queries{
		GetWallet:                  rewardsquery.NewGetWalletQuery(cfg.readers.Wallets),
		GetBalance:                 rewardsquery.NewGetBalanceQuery(cfg.readers.Wallets),
		ListLiveTokens:             rewardsquery.NewListLiveTokensQuery(cfg.readers.Tokens),
		GetTransaction:             rewardsquery.NewGetTransactionQuery(cfg.readers.Transactions),
		GetContributionTransaction: rewardsquery.NewGetContributionTransactionQuery(cfg.readers.Transactions),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Services() FacadeServices {
	if f == nil {
		return FacadeServices{}
	}
	return f.services
}
