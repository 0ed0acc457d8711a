package rewards_test

import (
	"testing"

	rewards "github.com/goliatone/go-rewards"
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/devkit"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/providers/bitflyer"
	"github.com/goliatone/go-rewards/providers/gemini"
	"github.com/goliatone/go-rewards/providers/uphold"
)

func newEndpointClient(t *testing.T) *endpoints.Client {
	t.Helper()
	client, err := endpoints.NewClient(devkit.NewFakeTransportAdapter("fake"), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestProviderFactories_ReturnConfiguredProviders(t *testing.T) {
	client := newEndpointClient(t)

	upholdProvider, err := rewards.UpholdProvider(uphold.Config{
		Environment: core.EnvironmentStaging,
		ClientID:    "client-id",
		PaymentID:   "payment-1",
		Client:      client,
	})
	if err != nil {
		t.Fatalf("UpholdProvider: %v", err)
	}
	if upholdProvider.ID() != "uphold" {
		t.Fatalf("unexpected provider id %q", upholdProvider.ID())
	}

	geminiProvider, err := rewards.GeminiProvider(gemini.Config{
		Environment: core.EnvironmentStaging,
		ClientID:    "client-id",
		PaymentID:   "payment-1",
		Client:      client,
	})
	if err != nil {
		t.Fatalf("GeminiProvider: %v", err)
	}
	if geminiProvider.ID() != "gemini" {
		t.Fatalf("unexpected provider id %q", geminiProvider.ID())
	}

	bitflyerProvider, err := rewards.BitflyerProvider(bitflyer.Config{
		Environment: core.EnvironmentStaging,
		ClientID:    "client-id",
		PaymentID:   "payment-1",
		Client:      client,
	})
	if err != nil {
		t.Fatalf("BitflyerProvider: %v", err)
	}
	if bitflyerProvider.ID() != "bitflyer" {
		t.Fatalf("unexpected provider id %q", bitflyerProvider.ID())
	}
}

func TestProviderFactories_RejectIncompleteConfig(t *testing.T) {
	if _, err := rewards.UpholdProvider(uphold.Config{Environment: core.EnvironmentStaging}); err == nil {
		t.Fatalf("expected error for missing client id")
	}
	if _, err := rewards.GeminiProvider(gemini.Config{Environment: "nonsense"}); err == nil {
		t.Fatalf("expected error for invalid environment")
	}
}

func TestRegisterBuiltinProviders_RegistersConfiguredOnly(t *testing.T) {
	client := newEndpointClient(t)
	registry := rewards.NewProviderRegistry()

	err := rewards.RegisterBuiltinProviders(registry, rewards.BuiltinProviderConfigs{
		Uphold: &uphold.Config{
			Environment: core.EnvironmentStaging,
			ClientID:    "client-id",
			PaymentID:   "payment-1",
			Client:      client,
		},
		Bitflyer: &bitflyer.Config{
			Environment: core.EnvironmentStaging,
			ClientID:    "client-id",
			PaymentID:   "payment-1",
			Client:      client,
		},
	})
	if err != nil {
		t.Fatalf("RegisterBuiltinProviders: %v", err)
	}

	if _, ok := registry.Get("uphold"); !ok {
		t.Fatalf("expected uphold registered")
	}
	if _, ok := registry.Get("bitflyer"); !ok {
		t.Fatalf("expected bitflyer registered")
	}
	if _, ok := registry.Get("gemini"); ok {
		t.Fatalf("gemini was not configured and must not be registered")
	}

	if err := rewards.RegisterBuiltinProviders(nil, rewards.BuiltinProviderConfigs{}); err == nil {
		t.Fatalf("expected error for nil registry")
	}
}
