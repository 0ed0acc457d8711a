package rewards

import (
	"crypto/ed25519"
	"fmt"

	"github.com/goliatone/go-rewards/auth"
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/ratelimit"
)

// CustodianTransport describes how custodian traffic leaves the module:
// one base adapter, the signing credentials for each outbound concern, and
// a shared throttle store. Signing wraps the base adapter first so the
// rate-limit guard meters the request that actually goes on the wire.
type CustodianTransport struct {
	Adapter core.TransportAdapter
	Logger  core.Logger

	// RateLimits shares quota state across the custodian buckets; nil
	// disables throttling.
	RateLimits ratelimit.StateStore

	// ClaimKeyID and ClaimKey sign wallet-claim requests to the payment
	// service with an Ed25519 HTTP signature. A nil key leaves claims on
	// the plain client.
	ClaimKeyID string
	ClaimKey   ed25519.PrivateKey

	// GeminiAPISecret signs Gemini payments payloads. Empty leaves the
	// payout traffic on the plain client.
	GeminiAPISecret string
}

// CustodianClients holds the per-custodian endpoint clients. Claim and
// Payout fall back to API when their credentials are not configured.
type CustodianClients struct {
	API    *endpoints.Client
	Claim  *endpoints.Client
	Payout *endpoints.Client
}

// NewCustodianClients composes the transport stack for one custodian:
// base adapter, optional request signing, optional throttle guard, then
// the typed endpoint client.
func NewCustodianClients(providerID string, transport CustodianTransport) (CustodianClients, error) {
	if transport.Adapter == nil {
		return CustodianClients{}, fmt.Errorf("rewards: transport adapter is required")
	}

	api, err := transport.newClient(providerID, transport.Adapter)
	if err != nil {
		return CustodianClients{}, err
	}
	clients := CustodianClients{API: api, Claim: api, Payout: api}

	if len(transport.ClaimKey) > 0 {
		strategy, err := auth.NewHTTPSignatureStrategy(transport.ClaimKeyID, transport.ClaimKey)
		if err != nil {
			return CustodianClients{}, err
		}
		signed, err := auth.NewSignedAdapter(transport.Adapter, strategy)
		if err != nil {
			return CustodianClients{}, err
		}
		if clients.Claim, err = transport.newClient(providerID, signed); err != nil {
			return CustodianClients{}, err
		}
	}

	if transport.GeminiAPISecret != "" {
		strategy, err := auth.NewHMACStrategy(auth.HMACStrategyConfig{Secret: transport.GeminiAPISecret})
		if err != nil {
			return CustodianClients{}, err
		}
		signed, err := auth.NewSignedAdapter(transport.Adapter, strategy)
		if err != nil {
			return CustodianClients{}, err
		}
		if clients.Payout, err = transport.newClient(providerID, signed); err != nil {
			return CustodianClients{}, err
		}
	}

	return clients, nil
}

func (t CustodianTransport) newClient(providerID string, adapter core.TransportAdapter) (*endpoints.Client, error) {
	if t.RateLimits != nil {
		guarded, err := ratelimit.NewGuardedAdapter(providerID, adapter, ratelimit.NewAdaptivePolicy(t.RateLimits))
		if err != nil {
			return nil, err
		}
		adapter = guarded
	}
	return endpoints.NewClient(adapter, t.Logger)
}
