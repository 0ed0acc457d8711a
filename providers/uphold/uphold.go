// Package uphold implements the Uphold custodian: OAuth code exchange,
// member and capability checks, BAT card management, and transaction
// settlement against the Uphold API.
package uphold

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/payment"
)

const (
	ProviderID = "uphold"

	productionHost = "https://api.uphold.com"
	sandboxHost    = "https://api-sandbox.uphold.com"

	cardLabel    = "Brave Browser"
	cardCurrency = "BAT"
)

// Host resolves the API base URL. Staging and development both use the
// Uphold sandbox.
func Host(env core.Environment) string {
	if env == core.EnvironmentProduction {
		return productionHost
	}
	return sandboxHost
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
		return nil, fmt.Errorf("uphold: client id is required")
	}
	if strings.TrimSpace(cfg.PaymentID) == "" {
		return nil, fmt.Errorf("uphold: payment id is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("uphold: endpoint client is required")
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

// Authorize runs the full linking sequence: code exchange, member check,
// capability check, card resolution, then the payment service claim. Any
// failure surfaces as a typed error; nothing here retries.
func (p *Provider) Authorize(ctx context.Context, wallet core.ExternalWallet, redirect core.OAuthRedirect) (core.AuthorizeResult, error) {
	if p == nil {
		return core.AuthorizeResult{}, fmt.Errorf("uphold: provider is nil")
	}

	oauth, err := NewPostOAuth(p.cfg.Environment, p.cfg.ClientID, p.cfg.ClientSecret, redirect.Code)
	if err != nil {
		return core.AuthorizeResult{}, err
	}
	token, err := endpoints.Send[TokenResult](ctx, p.cfg.Client, oauth)
	if err != nil {
		return core.AuthorizeResult{}, err
	}

	me, err := NewGetMe(p.cfg.Environment, token.AccessToken)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	user, err := endpoints.Send[User](ctx, p.cfg.Client, me)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	if err := user.Validate(); err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	capsEndpoint, err := NewGetCapabilities(p.cfg.Environment, token.AccessToken)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	caps, err := endpoints.Send[core.Capabilities](ctx, p.cfg.Client, capsEndpoint)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	if !caps.SufficientForVerified() {
		return core.AuthorizeResult{Token: token.AccessToken},
			fmt.Errorf("%w: uphold account cannot receive and send", core.ErrAccountNotVerified)
	}

	address, err := p.resolveCard(ctx, token.AccessToken)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	linkingInfo, err := buildLinkingInfo(p.cfg.PaymentID, address)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	claim, err := payment.NewClaimWallet(p.cfg.Environment, ProviderID, p.cfg.PaymentID, linkingInfo, address)
	if err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}
	if _, err := endpoints.Send[struct{}](ctx, p.paymentClient(), claim); err != nil {
		return core.AuthorizeResult{Token: token.AccessToken}, err
	}

	return core.AuthorizeResult{
		Token:       token.AccessToken,
		Address:     address,
		UserName:    user.Name,
		MemberID:    user.MemberID,
		LinkingInfo: linkingInfo,
	}, nil
}

func (p *Provider) paymentClient() *endpoints.Client {
	if p.cfg.PaymentClient != nil {
		return p.cfg.PaymentClient
	}
	return p.cfg.Client
}

func (p *Provider) FetchBalance(ctx context.Context, wallet core.ExternalWallet) (float64, error) {
	if p == nil {
		return 0, fmt.Errorf("uphold: provider is nil")
	}
	card, err := NewGetCard(p.cfg.Environment, wallet.Token, wallet.Address)
	if err != nil {
		return 0, err
	}
	result, err := endpoints.Send[Card](ctx, p.cfg.Client, card)
	if err != nil {
		return 0, err
	}
	return result.Available, nil
}

// GenerateWallet resolves the BAT card address without linking, creating
// the card when the account has none.
func (p *Provider) GenerateWallet(ctx context.Context, wallet core.ExternalWallet) (string, error) {
	if p == nil {
		return "", fmt.Errorf("uphold: provider is nil")
	}
	if strings.TrimSpace(wallet.Token) == "" {
		return "", fmt.Errorf("%w: wallet has no token", core.ErrAccessTokenExpired)
	}
	return p.resolveCard(ctx, wallet.Token)
}

// DisconnectWallet revokes the access token server-side. Revocation
// failures are logged and swallowed: local disconnect must succeed even
// when the custodian is unreachable.
func (p *Provider) DisconnectWallet(ctx context.Context, wallet core.ExternalWallet, reason string) error {
	if p == nil {
		return fmt.Errorf("uphold: provider is nil")
	}
	if strings.TrimSpace(wallet.Token) == "" {
		return nil
	}
	revoke, err := NewPostRevokeToken(p.cfg.Environment, wallet.Token)
	if err != nil {
		return err
	}
	if _, err := endpoints.Send[struct{}](ctx, p.cfg.Client, revoke); err != nil && p.logger != nil {
		p.logger.Warn("uphold token revocation failed", "reason", reason, "error", err)
	}
	return nil
}

func (p *Provider) SubmitTransaction(ctx context.Context, wallet core.ExternalWallet, tx core.ExternalTransaction) (string, error) {
	if p == nil {
		return "", fmt.Errorf("uphold: provider is nil")
	}
	create, err := NewPostTransaction(p.cfg.Environment, wallet.Token, wallet.Address, tx.Destination, tx.Amount)
	if err != nil {
		return "", err
	}
	created, err := endpoints.Send[TransactionResult](ctx, p.cfg.Client, create)
	if err != nil {
		return "", err
	}
	commit, err := NewPostTransactionCommit(p.cfg.Environment, wallet.Token, wallet.Address, created.ID)
	if err != nil {
		return "", err
	}
	if _, err := endpoints.Send[TransactionResult](ctx, p.cfg.Client, commit); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (p *Provider) TransactionStatus(ctx context.Context, wallet core.ExternalWallet, transactionID string) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("uphold: provider is nil")
	}
	status, err := NewGetTransactionStatus(p.cfg.Environment, wallet.Token, wallet.Address, transactionID)
	if err != nil {
		return false, err
	}
	return endpoints.Send[bool](ctx, p.cfg.Client, status)
}

func (p *Provider) resolveCard(ctx context.Context, token string) (string, error) {
	list, err := NewGetCards(p.cfg.Environment, token)
	if err != nil {
		return "", err
	}
	cards, err := endpoints.Send[[]Card](ctx, p.cfg.Client, list)
	if err != nil {
		return "", err
	}
	for _, card := range cards {
		if card.Label == cardLabel && card.Currency == cardCurrency {
			return card.ID, nil
		}
	}
	create, err := NewPostCards(p.cfg.Environment, token)
	if err != nil {
		return "", err
	}
	card, err := endpoints.Send[Card](ctx, p.cfg.Client, create)
	if err != nil {
		return "", err
	}
	return card.ID, nil
}

func buildLinkingInfo(paymentID, address string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"payment_id": paymentID,
		"address":    address,
		"provider":   ProviderID,
	})
	if err != nil {
		return "", fmt.Errorf("uphold: encode linking info: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

var (
	_ core.Provider            = (*Provider)(nil)
	_ core.TransactionProvider = (*Provider)(nil)
)
