package state

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/devkit"
	"github.com/goliatone/go-rewards/security"
)

func newStoreFixture(t *testing.T) (*Store, *devkit.MemoryStringState) {
	t.Helper()
	kv := devkit.NewMemoryStringState()
	secrets, err := security.NewWalletKeySecretProviderFromString("wallet-test-key")
	if err != nil {
		t.Fatalf("secret provider: %v", err)
	}
	store, err := New(Dependencies{KV: kv, Secrets: secrets})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, kv
}

func TestStore_CreateAndGetRoundTrip(t *testing.T) {
	store, kv := newStoreFixture(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "Uphold")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Provider != "uphold" {
		t.Fatalf("expected lowercased provider, got %q", created.Provider)
	}
	if created.Status != core.WalletStatusNotConnected {
		t.Fatalf("expected not_connected, got %q", created.Status)
	}
	if created.OneTimeString == "" {
		t.Fatalf("expected fresh one-time string")
	}

	got, err := store.Get(ctx, "uphold")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OneTimeString != created.OneTimeString {
		t.Fatalf("round trip lost nonce: %#v", got)
	}

	// The persisted blob is an encrypted envelope, never wallet JSON.
	raw, err := kv.GetString(ctx, "wallets.uphold")
	if err != nil {
		t.Fatalf("read raw state: %v", err)
	}
	if strings.Contains(raw, created.OneTimeString) || strings.Contains(raw, "not_connected") {
		t.Fatalf("wallet fields leaked into plaintext state: %q", raw)
	}
}

func TestStore_CreateRefusesOverwrite(t *testing.T) {
	store, _ := newStoreFixture(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "uphold"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, "uphold"); err == nil {
		t.Fatalf("expected second create to fail")
	}
}

func TestStore_GetMissingWallet(t *testing.T) {
	store, _ := newStoreFixture(t)

	_, err := store.Get(context.Background(), "gemini")
	if !errors.Is(err, core.ErrWalletNotFound) {
		t.Fatalf("expected wallet-not-found sentinel, got %v", err)
	}
}

func TestStore_CompareAndSetGatesOnStatus(t *testing.T) {
	store, _ := newStoreFixture(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "uphold")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pending := created
	pending.Token = "access-token"
	pending.Status = core.WalletStatusPending
	pending.UpdatedAt = time.Now().UTC()

	applied, err := store.CompareAndSet(ctx, "uphold", core.WalletStatusNotConnected, pending)
	if err != nil {
		t.Fatalf("compare and set: %v", err)
	}
	if !applied {
		t.Fatalf("expected write to apply")
	}

	// Stale snapshot: expected status no longer matches.
	stale := created
	stale.Status = core.WalletStatusDisconnectedNotVerified
	applied, err = store.CompareAndSet(ctx, "uphold", core.WalletStatusNotConnected, stale)
	if err != nil {
		t.Fatalf("stale compare and set: %v", err)
	}
	if applied {
		t.Fatalf("expected stale write rejected")
	}

	got, err := store.Get(ctx, "uphold")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.WalletStatusPending || got.Token != "access-token" {
		t.Fatalf("stale write clobbered state: %#v", got)
	}
}

func TestStore_CompareAndSetValidatesRecord(t *testing.T) {
	store, _ := newStoreFixture(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "uphold"); err != nil {
		t.Fatalf("create: %v", err)
	}

	invalid := core.ExternalWallet{
		Provider: "uphold",
		Status:   core.WalletStatusPending,
		Address:  "card-1",
	}
	if _, err := store.CompareAndSet(ctx, "uphold", core.WalletStatusNotConnected, invalid); err == nil {
		t.Fatalf("expected invalid record rejection")
	}
}

func TestStore_RejectsTamperedBlob(t *testing.T) {
	store, kv := newStoreFixture(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "uphold"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := kv.SetString(ctx, "wallets.uphold", "bm90LWEtcmVhbC1ibG9i"); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, err := store.Get(ctx, "uphold"); !errors.Is(err, core.ErrInvalidWalletRecord) {
		t.Fatalf("expected invalid record sentinel, got %v", err)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	secrets, err := security.NewWalletKeySecretProviderFromString("wallet-test-key")
	if err != nil {
		t.Fatalf("secret provider: %v", err)
	}
	if _, err := New(Dependencies{Secrets: secrets}); err == nil {
		t.Fatalf("expected missing kv rejection")
	}
	if _, err := New(Dependencies{KV: devkit.NewMemoryStringState()}); err == nil {
		t.Fatalf("expected missing secrets rejection")
	}
}
