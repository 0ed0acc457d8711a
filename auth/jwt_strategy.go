package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-rewards/core"
)

type JWTStrategyConfig struct {
	KeyID    string
	Secret   string
	Issuer   string
	Subject  string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// JWTStrategy mints a short-lived HS256 assertion per request and sends
// it as the bearer token. Custodian server-to-server APIs that verify a
// shared-secret JWT use this instead of a stored access token.
type JWTStrategy struct {
	config JWTStrategyConfig
}

func NewJWTStrategy(cfg JWTStrategyConfig) (*JWTStrategy, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("auth: jwt signing secret is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("auth: jwt issuer is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &JWTStrategy{config: cfg}, nil
}

func (*JWTStrategy) Kind() string { return "jwt" }

func (s *JWTStrategy) Apply(_ context.Context, req *core.TransportRequest) error {
	if s == nil || strings.TrimSpace(s.config.Secret) == "" {
		return fmt.Errorf("auth: jwt strategy is not configured")
	}
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}

	now := s.config.Now().UTC()
	claims := map[string]any{
		"iss": strings.TrimSpace(s.config.Issuer),
		"iat": now.Unix(),
		"exp": now.Add(s.config.TTL).Unix(),
	}
	if subject := strings.TrimSpace(s.config.Subject); subject != "" {
		claims["sub"] = subject
	}
	if audience := strings.TrimSpace(s.config.Audience); audience != "" {
		claims["aud"] = audience
	}

	token, err := buildHS256JWT(s.config.KeyID, s.config.Secret, claims)
	if err != nil {
		return err
	}
	setHeader(req, "Authorization", "Bearer "+token)
	return nil
}

var _ Strategy = (*JWTStrategy)(nil)

func buildHS256JWT(keyID string, secret string, claims map[string]any) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("auth: jwt signing secret is required")
	}
	header := map[string]any{
		"alg": "HS256",
		"typ": "JWT",
	}
	if strings.TrimSpace(keyID) != "" {
		header["kid"] = strings.TrimSpace(keyID)
	}

	headerRaw, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("auth: marshal jwt header: %w", err)
	}
	claimsRaw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("auth: marshal jwt claims: %w", err)
	}

	headerToken := base64.RawURLEncoding.EncodeToString(headerRaw)
	claimsToken := base64.RawURLEncoding.EncodeToString(claimsRaw)
	signed := headerToken + "." + claimsToken

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signed + "." + signature, nil
}
