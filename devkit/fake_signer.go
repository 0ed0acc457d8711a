package devkit

import (
	"fmt"

	"github.com/goliatone/go-rewards/credentials"
)

// FakeSigner is a deterministic credentials.Signer. Blinding prefixes the
// cred, unblinding strips the signer's prefix; no cryptography involved.
type FakeSigner struct {
	// FailUnblind forces UnblindCreds to reject the batch proof.
	FailUnblind bool
	counter     int
}

func (s *FakeSigner) GenerateCreds(count int) ([]string, []string, error) {
	creds := make([]string, 0, count)
	blinded := make([]string, 0, count)
	for i := 0; i < count; i++ {
		s.counter++
		cred := fmt.Sprintf("cred-%d", s.counter)
		creds = append(creds, cred)
		blinded = append(blinded, "blinded:"+cred)
	}
	return creds, blinded, nil
}

func (s *FakeSigner) UnblindCreds(creds []string, signedCreds []string, batchProof, publicKey string) ([]string, error) {
	if s.FailUnblind {
		return nil, fmt.Errorf("devkit: batch proof rejected")
	}
	if len(creds) != len(signedCreds) {
		return nil, fmt.Errorf("devkit: %d creds for %d signatures", len(creds), len(signedCreds))
	}
	out := make([]string, 0, len(creds))
	for i := range creds {
		out = append(out, "unblinded:"+creds[i]+":"+signedCreds[i])
	}
	return out, nil
}

var _ credentials.Signer = (*FakeSigner)(nil)
