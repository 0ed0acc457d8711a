// Package core contains the canonical rewards domain contracts, entities,
// and the wallet-linking orchestration logic. Lower-level adapters must
// depend on this package; core must not depend on provider-specific or
// transport-specific adapters.
package core
