// Package identity resolves the custodian-side account behind a linked
// wallet. Relinking and fraud checks need to know who the provider says
// the account holder is, independent of what the wallet record claims.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rewards/core"
)

const (
	defaultRequestTimeout = 10 * time.Second
	upholdUserInfoURL     = "https://api.uphold.com/v0/me"
	geminiUserInfoURL     = "https://api.gemini.com/v1/account"
)

var ErrProfileNotFound = errors.New("identity: profile not found")

type ProfileNotFoundError struct {
	Cause error
}

func (e *ProfileNotFoundError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrProfileNotFound.Error()
	}
	return ErrProfileNotFound.Error() + ": " + e.Cause.Error()
}

func (e *ProfileNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrProfileNotFound
	}
	return errors.Join(ErrProfileNotFound, e.Cause)
}

func (e *ProfileNotFoundError) ToRewardsError() *goerrors.Error {
	message := ErrProfileNotFound.Error()
	if e != nil && e.Cause != nil {
		message = e.Error()
	}
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.RewardsErrorProfileNotFound)
}

func profileNotFound(cause error) error {
	return &ProfileNotFoundError{Cause: cause}
}

// MemberProfile is the normalized custodian account record.
type MemberProfile struct {
	ProviderID string
	MemberID   string
	UserName   string
	Country    string
	Verified   bool
	Raw        map[string]any
}

func (p MemberProfile) ExternalAccountID() string {
	memberID := strings.TrimSpace(p.MemberID)
	if memberID == "" {
		return ""
	}
	providerID := strings.TrimSpace(p.ProviderID)
	if providerID == "" {
		return memberID
	}
	return providerID + "|" + memberID
}

func (p MemberProfile) Map() map[string]any {
	metadata := map[string]any{
		"provider_id": strings.TrimSpace(p.ProviderID),
		"member_id":   strings.TrimSpace(p.MemberID),
		"external_id": strings.TrimSpace(p.ExternalAccountID()),
		"user_name":   strings.TrimSpace(p.UserName),
		"country":     strings.TrimSpace(p.Country),
		"verified":    p.Verified,
	}
	if len(p.Raw) > 0 {
		metadata["raw"] = copyMap(p.Raw)
	}
	return metadata
}

// ProfileNormalizer maps one custodian's raw userinfo payload to the
// normalized profile.
type ProfileNormalizer func(providerID string, payload map[string]any) MemberProfile

type ProviderUserInfoConfig struct {
	URL        string
	Method     string
	Normalizer ProfileNormalizer
}

type Config struct {
	Transport        core.TransportAdapter
	RequestTimeout   time.Duration
	ProviderUserInfo map[string]ProviderUserInfoConfig
}

// Resolver fetches and normalizes custodian account profiles. Requests
// ride the shared transport adapter so signing and throttling decorators
// apply here too.
type Resolver struct {
	transport        core.TransportAdapter
	requestTimeout   time.Duration
	providerUserInfo map[string]ProviderUserInfoConfig
}

func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("identity: transport adapter is required")
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	providerUserInfo := defaultProviderUserInfoConfigs()
	for key, value := range cfg.ProviderUserInfo {
		normalizedID := strings.TrimSpace(strings.ToLower(key))
		if normalizedID == "" {
			continue
		}
		providerUserInfo[normalizedID] = ProviderUserInfoConfig{
			URL:        strings.TrimSpace(value.URL),
			Method:     strings.TrimSpace(strings.ToUpper(value.Method)),
			Normalizer: value.Normalizer,
		}
	}

	return &Resolver{
		transport:        cfg.Transport,
		requestTimeout:   requestTimeout,
		providerUserInfo: providerUserInfo,
	}, nil
}

// Resolve fetches the custodian profile for the given provider using the
// wallet's access token.
func (r *Resolver) Resolve(ctx context.Context, providerID string, accessToken string) (MemberProfile, error) {
	if r == nil || r.transport == nil {
		return MemberProfile{}, profileNotFound(nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return MemberProfile{}, profileNotFound(fmt.Errorf("identity: access token is required"))
	}

	normalizedID := strings.TrimSpace(strings.ToLower(providerID))
	endpointConfig, ok := r.providerUserInfo[normalizedID]
	if !ok || strings.TrimSpace(endpointConfig.URL) == "" {
		return MemberProfile{}, profileNotFound(fmt.Errorf("identity: no userinfo endpoint for provider %q", normalizedID))
	}

	payload, err := r.fetchUserInfo(ctx, endpointConfig, accessToken)
	if err != nil {
		return MemberProfile{}, profileNotFound(err)
	}

	normalizer := endpointConfig.Normalizer
	if normalizer == nil {
		normalizer = normalizeGenericProfile
	}
	profile := normalizer(normalizedID, payload)
	if strings.TrimSpace(profile.MemberID) == "" {
		return MemberProfile{}, profileNotFound(nil)
	}
	return profile, nil
}

// VerifyMember checks that the custodian still recognizes the wallet's
// account holder. Relinking uses this to refuse a token that belongs to
// a different custodian account than the one originally linked.
func (r *Resolver) VerifyMember(ctx context.Context, wallet core.ExternalWallet) error {
	profile, err := r.Resolve(ctx, wallet.Provider, wallet.Token)
	if err != nil {
		return err
	}
	if !profile.Verified {
		return fmt.Errorf("%w: custodian reports unverified member", core.ErrKYCRequired)
	}
	linked := strings.TrimSpace(wallet.MemberID)
	if linked != "" && !strings.EqualFold(linked, strings.TrimSpace(profile.MemberID)) {
		return fmt.Errorf("%w: wallet linked to member %q", core.ErrMismatchedProviderAccounts, linked)
	}
	return nil
}

var _ core.MemberVerifier = (*Resolver)(nil)

func defaultProviderUserInfoConfigs() map[string]ProviderUserInfoConfig {
	return map[string]ProviderUserInfoConfig{
		"uphold": {
			URL:        upholdUserInfoURL,
			Method:     http.MethodGet,
			Normalizer: normalizeUpholdProfile,
		},
		"gemini": {
			URL:        geminiUserInfoURL,
			Method:     http.MethodPost,
			Normalizer: normalizeGeminiProfile,
		},
	}
}

func (r *Resolver) fetchUserInfo(ctx context.Context, cfg ProviderUserInfoConfig, accessToken string) (map[string]any, error) {
	method := strings.TrimSpace(strings.ToUpper(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	res, err := r.transport.Do(ctx, core.TransportRequest{
		Method: method,
		URL:    strings.TrimSpace(cfg.URL),
		Headers: map[string]string{
			"Accept":        "application/json",
			"Authorization": "Bearer " + accessToken,
		},
		Timeout: r.requestTimeout,
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("identity: profile endpoint returned status %d", res.StatusCode)
	}
	var payload map[string]any
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return nil, fmt.Errorf("identity: decode profile response: %w", err)
	}
	return payload, nil
}

// normalizeUpholdProfile reads GET /v0/me: the member id is the account
// id, and only accounts in good standing with a member date count as
// verified.
func normalizeUpholdProfile(providerID string, payload map[string]any) MemberProfile {
	status := strings.ToLower(readString(payload["status"]))
	memberAt := readString(payload["memberAt"])
	return MemberProfile{
		ProviderID: providerID,
		MemberID:   readString(payload["id"]),
		UserName:   readString(payload["name"]),
		Country:    readString(payload["country"]),
		Verified:   status == "ok" && memberAt != "",
		Raw:        copyMap(payload),
	}
}

// normalizeGeminiProfile reads POST /v1/account: the first user carries
// the display name and verification flag, the account object the id.
func normalizeGeminiProfile(providerID string, payload map[string]any) MemberProfile {
	profile := MemberProfile{
		ProviderID: providerID,
		Raw:        copyMap(payload),
	}
	if account, ok := payload["account"].(map[string]any); ok {
		profile.MemberID = readString(account["accountHashId"])
	}
	if users, ok := payload["users"].([]any); ok && len(users) > 0 {
		if user, ok := users[0].(map[string]any); ok {
			profile.UserName = readString(user["name"])
			profile.Country = readString(user["countryCode"])
			if verified, ok := user["isVerified"].(bool); ok {
				profile.Verified = verified
			}
		}
	}
	return profile
}

func normalizeGenericProfile(providerID string, payload map[string]any) MemberProfile {
	return MemberProfile{
		ProviderID: providerID,
		MemberID:   readString(payload["id"]),
		UserName:   readString(payload["name"]),
		Country:    readString(payload["country"]),
		Raw:        copyMap(payload),
	}
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

func copyMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}
