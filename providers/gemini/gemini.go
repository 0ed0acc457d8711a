// Package gemini implements the Gemini custodian: OAuth code exchange,
// account verification, recipient id management, and transaction
// settlement against the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/payment"
)

const (
	ProviderID = "gemini"

	productionAPIHost   = "https://api.gemini.com"
	productionOAuthHost = "https://exchange.gemini.com"
	sandboxAPIHost      = "https://api.sandbox.gemini.com"
	sandboxOAuthHost    = "https://exchange.sandbox.gemini.com"

	recipientLabel = "Brave Browser"
	batCurrency    = "BAT"
)

func apiHost(env core.Environment) string {
	if env == core.EnvironmentProduction {
		return productionAPIHost
	}
	return sandboxAPIHost
}

func oauthHost(env core.Environment) string {
	if env == core.EnvironmentProduction {
		return productionOAuthHost
	}
	return sandboxOAuthHost
}

type Config struct {
	Environment  core.Environment
	ClientID     string
	ClientSecret string
	PaymentID    string
	Client       *endpoints.Client
	// PaymentClient carries wallet-claim requests to the payment service,
	// typically signed with the wallet's Ed25519 key. Defaults to Client.
	PaymentClient *endpoints.Client
	// PayoutClient carries payments-API requests, typically HMAC-signed
	// with the Gemini API secret. Defaults to Client.
	PayoutClient *endpoints.Client
	Logger       core.Logger
	Now          func() time.Time
}

type Provider struct {
	cfg    Config
	logger core.Logger
	now    func() time.Time
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Environment.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("gemini: client id is required")
	}
	if strings.TrimSpace(cfg.PaymentID) == "" {
		return nil, fmt.Errorf("gemini: payment id is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("gemini: endpoint client is required")
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Provider{cfg: cfg, logger: cfg.Logger, now: now}, nil
}

func (p *Provider) ID() string {
	if p == nil {
		return ""
	}
	return ProviderID
}

// Authorize exchanges the redirect code, verifies the account, resolves
// the deposit recipient id, then claims the wallet against the payment
// service. The account's verification token is the linking info.
func (p *Provider) Authorize(ctx context.Context, wallet core.ExternalWallet, redirect core.OAuthRedirect) (core.AuthorizeResult, error) {
	if p == nil {
		return core.AuthorizeResult{}, fmt.Errorf("gemini: provider is nil")
	}

	oauth, err := NewPostOAuth(p.cfg.Environment, p.cfg.ClientID, p.cfg.ClientSecret, redirect.Code)
	if err != nil {
		return core.AuthorizeResult{}, err
	}
	token, err := endpoints.Send[TokenResult](ctx, p.cfg.Client, oauth)
	if err != nil {
		return core.AuthorizeResult{}, err
	}

	accountEndpoint, err := NewPostAccount(p.cfg.Environment, token.AccessToken)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	account, err := endpoints.Send[Account](ctx, p.cfg.Client, accountEndpoint)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	if err := account.Validate(); err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	recipient, err := NewPostRecipientID(p.cfg.Environment, token.AccessToken)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	recipientID, err := endpoints.Send[string](ctx, p.cfg.Client, recipient)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	claim, err := payment.NewClaimWallet(p.cfg.Environment, ProviderID, p.cfg.PaymentID, account.VerificationToken, recipientID)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	if _, err := endpoints.Send[struct{}](ctx, p.paymentClient(), claim); err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	return core.AuthorizeResult{
		Token:       token.AccessToken,
		Address:     recipientID,
		UserName:    account.UserName(),
		LinkingInfo: account.VerificationToken,
	}, nil
}

func (p *Provider) FetchBalance(ctx context.Context, wallet core.ExternalWallet) (float64, error) {
	if p == nil {
		return 0, fmt.Errorf("gemini: provider is nil")
	}
	balances, err := NewPostBalance(p.cfg.Environment, wallet.Token)
	if err != nil {
		return 0, err
	}
	return endpoints.Send[float64](ctx, p.cfg.Client, balances)
}

// GenerateWallet resolves the rewards recipient id without linking.
func (p *Provider) GenerateWallet(ctx context.Context, wallet core.ExternalWallet) (string, error) {
	if p == nil {
		return "", fmt.Errorf("gemini: provider is nil")
	}
	if strings.TrimSpace(wallet.Token) == "" {
		return "", fmt.Errorf("%w: wallet has no token", core.ErrAccessTokenExpired)
	}
	recipient, err := NewPostRecipientID(p.cfg.Environment, wallet.Token)
	if err != nil {
		return "", err
	}
	return endpoints.Send[string](ctx, p.cfg.Client, recipient)
}

// DisconnectWallet is local-only for Gemini; the API has no revocation
// route, tokens expire server-side.
func (p *Provider) DisconnectWallet(_ context.Context, _ core.ExternalWallet, _ string) error {
	if p == nil {
		return fmt.Errorf("gemini: provider is nil")
	}
	return nil
}

func (p *Provider) SubmitTransaction(ctx context.Context, wallet core.ExternalWallet, tx core.ExternalTransaction) (string, error) {
	if p == nil {
		return "", fmt.Errorf("gemini: provider is nil")
	}
	pay, err := NewPostTransaction(p.cfg.Environment, wallet.Token, tx.TransactionID, tx.Destination, tx.Amount)
	if err != nil {
		return "", err
	}
	if _, err := endpoints.Send[TransactionResult](ctx, p.payoutClient(), pay); err != nil {
		return "", err
	}
	return tx.TransactionID, nil
}

func (p *Provider) TransactionStatus(ctx context.Context, wallet core.ExternalWallet, transactionID string) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("gemini: provider is nil")
	}
	status, err := NewGetTransactionStatus(p.cfg.Environment, wallet.Token, transactionID)
	if err != nil {
		return false, err
	}
	return endpoints.Send[bool](ctx, p.payoutClient(), status)
}

func (p *Provider) paymentClient() *endpoints.Client {
	if p.cfg.PaymentClient != nil {
		return p.cfg.PaymentClient
	}
	return p.cfg.Client
}

func (p *Provider) payoutClient() *endpoints.Client {
	if p.cfg.PayoutClient != nil {
		return p.cfg.PayoutClient
	}
	return p.cfg.Client
}

var (
	_ core.Provider            = (*Provider)(nil)
	_ core.TransactionProvider = (*Provider)(nil)
)
