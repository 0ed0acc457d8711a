package rewards

import (
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/providers/bitflyer"
	"github.com/goliatone/go-rewards/providers/gemini"
	"github.com/goliatone/go-rewards/providers/uphold"
)

func UpholdProvider(cfg uphold.Config) (core.Provider, error) {
	return uphold.New(cfg)
}

func GeminiProvider(cfg gemini.Config) (core.Provider, error) {
	return gemini.New(cfg)
}

func BitflyerProvider(cfg bitflyer.Config) (core.Provider, error) {
	return bitflyer.New(cfg)
}

// RegisterBuiltinProviders wires every configured custodian into the
// registry. A nil config skips that custodian. When Transport is set, any
// client the custodian config leaves nil is built from it: API traffic
// rides the throttle guard, claims carry the Ed25519 HTTP signature, and
// Gemini payouts carry the payments HMAC.
type BuiltinProviderConfigs struct {
	Transport *CustodianTransport
	Uphold    *uphold.Config
	Gemini    *gemini.Config
	Bitflyer  *bitflyer.Config
}

func RegisterBuiltinProviders(registry core.Registry, configs BuiltinProviderConfigs) error {
	if registry == nil {
		return errNilRegistry
	}
	if configs.Uphold != nil {
		cfg := *configs.Uphold
		if configs.Transport != nil {
			clients, err := NewCustodianClients(uphold.ProviderID, *configs.Transport)
			if err != nil {
				return err
			}
			if cfg.Client == nil {
				cfg.Client = clients.API
			}
			if cfg.PaymentClient == nil {
				cfg.PaymentClient = clients.Claim
			}
		}
		provider, err := uphold.New(cfg)
		if err != nil {
			return err
		}
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	if configs.Gemini != nil {
		cfg := *configs.Gemini
		if configs.Transport != nil {
			clients, err := NewCustodianClients(gemini.ProviderID, *configs.Transport)
			if err != nil {
				return err
			}
			if cfg.Client == nil {
				cfg.Client = clients.API
			}
			if cfg.PaymentClient == nil {
				cfg.PaymentClient = clients.Claim
			}
			if cfg.PayoutClient == nil {
				cfg.PayoutClient = clients.Payout
			}
		}
		provider, err := gemini.New(cfg)
		if err != nil {
			return err
		}
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	if configs.Bitflyer != nil {
		cfg := *configs.Bitflyer
		if configs.Transport != nil {
			clients, err := NewCustodianClients(bitflyer.ProviderID, *configs.Transport)
			if err != nil {
				return err
			}
			if cfg.Client == nil {
				cfg.Client = clients.API
			}
			if cfg.PaymentClient == nil {
				cfg.PaymentClient = clients.Claim
			}
		}
		provider, err := bitflyer.New(cfg)
		if err != nil {
			return err
		}
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	return nil
}
