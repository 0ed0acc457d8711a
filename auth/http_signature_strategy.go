package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

// HTTPSignatureStrategy produces a detached Ed25519 signature in the
// draft-cavage HTTP signatures format. The signing string covers the
// request target and a SHA-256 digest of the body, so the receiver can
// verify both routing and payload integrity from the Signature header
// alone.
type HTTPSignatureStrategy struct {
	keyID      string
	privateKey ed25519.PrivateKey
}

func NewHTTPSignatureStrategy(keyID string, privateKey ed25519.PrivateKey) (*HTTPSignatureStrategy, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, fmt.Errorf("auth: signature key id is required")
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("auth: ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	return &HTTPSignatureStrategy{keyID: keyID, privateKey: privateKey}, nil
}

func (*HTTPSignatureStrategy) Kind() string { return "httpsignature" }

func (s *HTTPSignatureStrategy) Apply(_ context.Context, req *core.TransportRequest) error {
	if s == nil || len(s.privateKey) == 0 {
		return fmt.Errorf("auth: http signature strategy is not configured")
	}
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}

	target, err := requestTarget(req)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(req.Body)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
	setHeader(req, "Digest", digest)

	signingString := "(request-target): " + target + "\ndigest: " + digest
	signature := ed25519.Sign(s.privateKey, []byte(signingString))
	setHeader(req, "Signature", fmt.Sprintf(
		`keyId=%q,algorithm="ed25519",headers="(request-target) digest",signature=%q`,
		s.keyID,
		base64.StdEncoding.EncodeToString(signature),
	))
	return nil
}

func requestTarget(req *core.TransportRequest) (string, error) {
	method := strings.TrimSpace(strings.ToLower(req.Method))
	if method == "" {
		return "", fmt.Errorf("auth: request method is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil {
		return "", fmt.Errorf("auth: parse request url: %w", err)
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return method + " " + path, nil
}

var _ Strategy = (*HTTPSignatureStrategy)(nil)
