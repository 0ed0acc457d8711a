package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// CustodianWebhookTemplate bundles the verifier and delivery id
// extractor one custodian's callbacks need.
type CustodianWebhookTemplate struct {
	ProviderID string
	Verifier   Verifier
	Extractor  DeliveryIDExtractor
}

type HeaderHMACVerifier struct {
	Header    string
	Prefix    string
	Secret    string
	Encoding  string // hex | base64
	Algorithm string // sha256 | sha384
}

func (v HeaderHMACVerifier) Verify(_ context.Context, notification Notification) error {
	header := strings.TrimSpace(headerValue(notification.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}

	mac := hmac.New(v.newHash(), []byte(secret))
	_, _ = mac.Write(notification.Body)
	expected := mac.Sum(nil)

	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode base64 signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	default:
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode hex signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	}
	return nil
}

func (v HeaderHMACVerifier) newHash() func() hash.Hash {
	if strings.EqualFold(strings.TrimSpace(v.Algorithm), "sha384") {
		return sha512.New384
	}
	return sha256.New
}

type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, notification Notification) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: verification token is required")
	}
	actual := strings.TrimSpace(headerValue(notification.Headers, v.Header))
	if actual == "" {
		return fmt.Errorf("webhooks: %s verification header is required", strings.TrimSpace(v.Header))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: verification token mismatch")
	}
	return nil
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(notification Notification) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(headerValue(notification.Headers, key)); value != "" {
				return value, nil
			}
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

func ChainDeliveryIDExtractors(extractors ...DeliveryIDExtractor) DeliveryIDExtractor {
	list := append([]DeliveryIDExtractor(nil), extractors...)
	return func(notification Notification) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			deliveryID, err := extractor(notification)
			if err == nil && strings.TrimSpace(deliveryID) != "" {
				return strings.TrimSpace(deliveryID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

// NewGeminiWebhookTemplate verifies the payments-API signature scheme:
// a hex HMAC-SHA384 of the raw body in X-GEMINI-SIGNATURE.
func NewGeminiWebhookTemplate(secret string) CustodianWebhookTemplate {
	return CustodianWebhookTemplate{
		ProviderID: "gemini",
		Verifier: HeaderHMACVerifier{
			Header:    "X-GEMINI-SIGNATURE",
			Secret:    strings.TrimSpace(secret),
			Encoding:  "hex",
			Algorithm: "sha384",
		},
		Extractor: HeaderDeliveryIDExtractor("X-GEMINI-EVENT-ID", "X-Request-Id"),
	}
}

// NewUpholdWebhookTemplate verifies the shared token uphold echoes on
// every callback.
func NewUpholdWebhookTemplate(token string) CustodianWebhookTemplate {
	return CustodianWebhookTemplate{
		ProviderID: "uphold",
		Verifier: HeaderTokenVerifier{
			Header: "X-Uphold-Webhook-Token",
			Token:  strings.TrimSpace(token),
		},
		Extractor: HeaderDeliveryIDExtractor("X-Uphold-Event-Id", "X-Request-Id"),
	}
}

// NewBitflyerWebhookTemplate verifies the base64 HMAC-SHA256 signature
// bitflyer attaches to linking callbacks.
func NewBitflyerWebhookTemplate(secret string) CustodianWebhookTemplate {
	return CustodianWebhookTemplate{
		ProviderID: "bitflyer",
		Verifier: HeaderHMACVerifier{
			Header:   "X-BitFlyer-Signature",
			Secret:   strings.TrimSpace(secret),
			Encoding: "base64",
		},
		Extractor: HeaderDeliveryIDExtractor("X-BitFlyer-Event-Id", "X-Request-Id"),
	}
}
