// Package payment contains the typed endpoint contracts for the rewards
// payment (grant) service: wallet claiming, credential issuance, and
// suggestion redemption.
package payment

import "github.com/goliatone/go-rewards/core"

const (
	productionHost  = "https://grant.rewards.brave.com"
	stagingHost     = "https://grant.rewards.bravesoftware.com"
	developmentHost = "https://grant.rewards.brave.software"
)

// Host resolves the environment-specific base URL. The environment is an
// explicit value injected into every endpoint constructor; there is no
// global mode flag.
func Host(env core.Environment) string {
	switch env {
	case core.EnvironmentStaging:
		return stagingHost
	case core.EnvironmentDevelopment:
		return developmentHost
	default:
		return productionHost
	}
}
