// Package bitflyer implements the bitFlyer custodian. Its token exchange
// returns the deposit id and linking info in one response, so linking is
// a single exchange followed by the payment service claim.
package bitflyer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/payment"
)

const (
	ProviderID = "bitflyer"

	productionHost = "https://bitflyer.com"
	stagingHost    = "https://stage.bitflyer.com"

	batCurrencyCode = "BAT"
)

func Host(env core.Environment) string {
	if env == core.EnvironmentProduction {
		return productionHost
	}
	return stagingHost
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
	Logger        core.Logger
	Now           func() time.Time
	// RequestID overrides the generated token request id, fixtures only.
	RequestID string
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
		return nil, fmt.Errorf("bitflyer: client id is required")
	}
	if strings.TrimSpace(cfg.PaymentID) == "" {
		return nil, fmt.Errorf("bitflyer: payment id is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("bitflyer: endpoint client is required")
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

func (p *Provider) Authorize(ctx context.Context, wallet core.ExternalWallet, redirect core.OAuthRedirect) (core.AuthorizeResult, error) {
	if p == nil {
		return core.AuthorizeResult{}, fmt.Errorf("bitflyer: provider is nil")
	}

	requestID := p.cfg.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	oauth, err := NewPostOAuth(p.cfg.Environment, PostOAuthRequest{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Code:         redirect.Code,
		PaymentID:    p.cfg.PaymentID,
		RequestID:    requestID,
	})
	if err != nil {
		return core.AuthorizeResult{}, err
	}
	token, err := endpoints.Send[TokenResult](ctx, p.cfg.Client, oauth)
	if err != nil {
		return core.AuthorizeResult{}, err
	}

	claim, err := payment.NewClaimWallet(p.cfg.Environment, ProviderID, p.cfg.PaymentID, token.LinkingInfo, token.DepositID)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	if _, err := endpoints.Send[struct{}](ctx, p.paymentClient(), claim); err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	return core.AuthorizeResult{
		Token:       token.AccessToken,
		Address:     token.DepositID,
		MemberID:    token.AccountHash,
		LinkingInfo: token.LinkingInfo,
	}, nil
}

func (p *Provider) FetchBalance(ctx context.Context, wallet core.ExternalWallet) (float64, error) {
	if p == nil {
		return 0, fmt.Errorf("bitflyer: provider is nil")
	}
	inventory, err := NewGetInventory(p.cfg.Environment, wallet.Token)
	if err != nil {
		return 0, err
	}
	return endpoints.Send[float64](ctx, p.cfg.Client, inventory)
}

// GenerateWallet is a no-op for bitFlyer: the deposit id only exists as
// part of a completed token exchange.
func (p *Provider) GenerateWallet(_ context.Context, wallet core.ExternalWallet) (string, error) {
	if p == nil {
		return "", fmt.Errorf("bitflyer: provider is nil")
	}
	if strings.TrimSpace(wallet.Address) == "" {
		return "", fmt.Errorf("bitflyer: no deposit id without a completed authorization")
	}
	return wallet.Address, nil
}

// DisconnectWallet is local-only; bitFlyer tokens expire server-side and
// the API exposes no revocation route.
func (p *Provider) DisconnectWallet(_ context.Context, _ core.ExternalWallet, _ string) error {
	if p == nil {
		return fmt.Errorf("bitflyer: provider is nil")
	}
	return nil
}

func (p *Provider) paymentClient() *endpoints.Client {
	if p.cfg.PaymentClient != nil {
		return p.cfg.PaymentClient
	}
	return p.cfg.Client
}

var _ core.Provider = (*Provider)(nil)
