// Package credentials manages blinded-credential batches and unblinded
// token redemption: request a batch, poll until the payment service signs
// it, unblind locally, then spend tokens with reserve-before-network
// semantics.
package credentials

// Signer is the blinding crypto seam. Implementations wrap a
// privacy-pass style library; this package treats creds, blinded creds,
// and signatures as opaque strings.
type Signer interface {
	// GenerateCreds returns count (cred, blinded cred) pairs.
	GenerateCreds(count int) (creds []string, blinded []string, err error)
	// UnblindCreds verifies batchProof and unblinds the signed creds.
	// The result is index-aligned with creds.
	UnblindCreds(creds []string, signedCreds []string, batchProof string, publicKey string) ([]string, error)
}
