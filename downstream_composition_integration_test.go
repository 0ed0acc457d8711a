package rewards_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	rewards "github.com/goliatone/go-rewards"
	rewardscommand "github.com/goliatone/go-rewards/command"
	"github.com/goliatone/go-rewards/contribution"
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/credentials"
	"github.com/goliatone/go-rewards/devkit"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/providers/uphold"

	gocmd "github.com/goliatone/go-command"
)

// The full downstream path: link a wallet through the facade commands,
// settle a contribution against it, then redeem tokens, all on memory
// stores and scripted transports.
func TestDownstreamComposition_LinkSettleRedeem(t *testing.T) {
	ctx := context.Background()

	upholdAdapter := devkit.NewFakeTransportAdapter("fake",
		// Authorize: token exchange, member, capabilities, cards, claim.
		scriptedJSON(http.StatusOK, `{"access_token":"uphold-token","token_type":"bearer"}`),
		scriptedJSON(http.StatusOK, `{"name":"Member Name","id":"member-1","status":"ok","memberAt":"2021-05-26T16:42:23.134Z","currencies":["BAT","USD"]}`),
		scriptedJSON(http.StatusOK, `[{"key":"receives","enabled":true,"requirements":[]},{"key":"sends","enabled":true,"requirements":[]}]`),
		scriptedJSON(http.StatusOK, `[{"id":"card-1","label":"Brave Browser","currency":"BAT","available":"1.5"}]`),
		scriptedJSON(http.StatusOK, ``),
		// Settlement: create then commit.
		scriptedJSON(http.StatusOK, `{"id":"provider-tx-1","status":"pending"}`),
		scriptedJSON(http.StatusOK, `{"id":"provider-tx-1","status":"completed"}`),
	)
	upholdClient, err := endpoints.NewClient(upholdAdapter, nil)
	if err != nil {
		t.Fatalf("uphold client: %v", err)
	}

	upholdProvider, err := rewards.UpholdProvider(uphold.Config{
		Environment:  core.EnvironmentStaging,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		PaymentID:    "payment-1",
		Client:       upholdClient,
	})
	if err != nil {
		t.Fatalf("uphold provider: %v", err)
	}

	registry := rewards.NewProviderRegistry()
	if err := registry.Register(upholdProvider); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	wallets := devkit.NewMemoryWalletStore()
	cfg := rewards.DefaultConfig()
	cfg.Environment = string(core.EnvironmentStaging)

	walletService, err := rewards.NewService(cfg, rewards.ServiceDependencies{
		Wallets:  wallets,
		Registry: registry,
	})
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}

	paymentAdapter := devkit.NewFakeTransportAdapter("fake",
		// RequestBatch submit, signed-creds poll, then redemption.
		scriptedJSON(http.StatusOK, `{}`),
		scriptedJSON(http.StatusOK, `{"batchProof":"proof","publicKey":"key-1","signedCreds":["signed-1","signed-2"]}`),
		scriptedJSON(http.StatusOK, `{}`),
	)
	paymentClient, err := endpoints.NewClient(paymentAdapter, nil)
	if err != nil {
		t.Fatalf("payment client: %v", err)
	}

	batches := devkit.NewMemoryCredsBatchStore()
	tokens := devkit.NewMemoryTokenStore()
	credentialService, err := credentials.NewService(credentials.Dependencies{
		Environment: core.EnvironmentStaging,
		Client:      paymentClient,
		Batches:     batches,
		Tokens:      tokens,
		Signer:      &devkit.FakeSigner{},
	})
	if err != nil {
		t.Fatalf("credential service: %v", err)
	}

	transactions := devkit.NewMemoryTransactionStore()
	settlementService, err := contribution.NewService(contribution.Dependencies{
		Wallets:      wallets,
		Registry:     registry,
		Transactions: transactions,
	})
	if err != nil {
		t.Fatalf("settlement service: %v", err)
	}

	facade, err := rewards.NewFacade(rewards.FacadeServices{
		Wallets:     walletService,
		Credentials: credentialService,
		Settlements: settlementService,
	})
	if err != nil {
		t.Fatalf("facade: %v", err)
	}
	commands := facade.Commands()

	// Link the wallet: the callback state must echo the rotated nonce.
	pending, err := walletService.BeginAuthorization(ctx, "uphold")
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	connectCollector := gocmd.NewResult[core.ExternalWallet]()
	connectCtx := gocmd.ContextWithResult(ctx, connectCollector)
	if err := commands.ConnectWallet.Execute(connectCtx, rewardscommand.ConnectWalletMessage{
		ProviderID: "uphold",
		Query: map[string]string{
			"code":  "oauth-code",
			"state": pending.OneTimeString,
		},
	}); err != nil {
		t.Fatalf("connect wallet: %v", err)
	}
	linked, ok := connectCollector.Load()
	if !ok {
		t.Fatalf("expected linked wallet result")
	}
	if linked.Status != core.WalletStatusVerified || linked.Address != "card-1" {
		t.Fatalf("unexpected linked wallet: %+v", linked)
	}

	// Settle a contribution through the linked custodian.
	settleCollector := gocmd.NewResult[core.ExternalTransaction]()
	settleCtx := gocmd.ContextWithResult(ctx, settleCollector)
	if err := commands.SettleContribution.Execute(settleCtx, rewardscommand.SettleContributionMessage{
		ContributionID: "contribution-1",
		ProviderID:     "uphold",
		Destination:    "publisher-card",
		Amount:         1.5,
	}); err != nil {
		t.Fatalf("settle contribution: %v", err)
	}
	settled, ok := settleCollector.Load()
	if !ok {
		t.Fatalf("expected settlement result")
	}
	if settled.Status != core.TransactionStatusSubmitted || settled.ProviderTxID != "provider-tx-1" {
		t.Fatalf("unexpected settlement: %+v", settled)
	}

	// Issue, poll and redeem a token batch against the payment service.
	batchCollector := gocmd.NewResult[core.CredsBatch]()
	batchCtx := gocmd.ContextWithResult(ctx, batchCollector)
	if err := commands.RequestCredentials.Execute(batchCtx, rewardscommand.RequestCredentialsMessage{
		OrderID:    "order-1",
		IssuerID:   "issuer-1",
		Count:      2,
		TokenValue: 0.25,
	}); err != nil {
		t.Fatalf("request credentials: %v", err)
	}
	batch, ok := batchCollector.Load()
	if !ok {
		t.Fatalf("expected batch result")
	}

	pollCollector := gocmd.NewResult[core.RetrySignal]()
	pollCtx := gocmd.ContextWithResult(ctx, pollCollector)
	if err := commands.PollCredentials.Execute(pollCtx, rewardscommand.PollCredentialsMessage{
		BatchID: batch.ID,
	}); err != nil {
		t.Fatalf("poll credentials: %v", err)
	}
	if signal, _ := pollCollector.Load(); signal != core.RetrySignalNone {
		t.Fatalf("expected terminal poll, got %q", signal)
	}
	if tokens.Count() != 2 {
		t.Fatalf("expected 2 live tokens, got %d", tokens.Count())
	}

	if err := commands.RedeemContribution.Execute(ctx, rewardscommand.RedeemContributionMessage{
		ContributionID: "contribution-2",
		Amount:         0.5,
		Suggestion:     "suggestion-payload",
	}); err != nil {
		t.Fatalf("redeem contribution: %v", err)
	}
	if tokens.Count() != 0 {
		t.Fatalf("expected redeemed tokens removed, got %d", tokens.Count())
	}

	// Ensure time moved through the wallet lifecycle.
	stored, err := wallets.Get(ctx, "uphold")
	if err != nil {
		t.Fatalf("stored wallet: %v", err)
	}
	if stored.Status != core.WalletStatusVerified {
		t.Fatalf("expected verified stored wallet, got %q", stored.Status)
	}
	if stored.UpdatedAt.After(time.Now().Add(time.Minute)) {
		t.Fatalf("wallet updated_at in the future: %v", stored.UpdatedAt)
	}
}
