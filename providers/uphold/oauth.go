package uphold

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// PostOAuth exchanges the redirect code for an access token:
// POST /oauth2/token with client credentials in the basic auth header.
type PostOAuth struct {
	env          core.Environment
	clientID     string
	clientSecret string
	code         string
}

func NewPostOAuth(env core.Environment, clientID, clientSecret, code string) (*PostOAuth, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("uphold: client id is required")
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: oauth code is required", core.ErrFailedToCreateRequest)
	}
	return &PostOAuth{
		env:          env,
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		code:         strings.TrimSpace(code),
	}, nil
}

func (e *PostOAuth) Path() string {
	return Host(e.env) + "/oauth2/token"
}

func (*PostOAuth) Method() string {
	return http.MethodPost
}

func (e *PostOAuth) Headers() map[string]string {
	credentials := base64.StdEncoding.EncodeToString([]byte(e.clientID + ":" + e.clientSecret))
	return map[string]string{
		"Authorization": "Basic " + credentials,
		"Content-Type":  "application/x-www-form-urlencoded",
	}
}

func (e *PostOAuth) Content() ([]byte, error) {
	form := url.Values{}
	form.Set("code", e.code)
	form.Set("grant_type", "authorization_code")
	return []byte(form.Encode()), nil
}

func (*PostOAuth) ProcessResponse(statusCode int, body []byte, _ map[string]string) (TokenResult, error) {
	switch statusCode {
	case http.StatusOK:
		token, err := endpoints.ParseBody[TokenResult](body)
		if err != nil {
			return TokenResult{}, err
		}
		if strings.TrimSpace(token.AccessToken) == "" {
			return TokenResult{}, fmt.Errorf("uphold: empty access token: %w", core.ErrFailedToParseBody)
		}
		return token, nil
	case http.StatusUnauthorized:
		return TokenResult{}, fmt.Errorf("uphold: token exchange rejected: %w", core.ErrAccessTokenExpired)
	default:
		return TokenResult{}, fmt.Errorf("uphold: token exchange: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[TokenResult] = (*PostOAuth)(nil)

// PostRevokeToken invalidates the access token server-side on disconnect.
type PostRevokeToken struct {
	env   core.Environment
	token string
}

func NewPostRevokeToken(env core.Environment, token string) (*PostRevokeToken, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &PostRevokeToken{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *PostRevokeToken) Path() string {
	return Host(e.env) + "/oauth2/revoke"
}

func (*PostRevokeToken) Method() string {
	return http.MethodPost
}

func (e *PostRevokeToken) Headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + e.token,
		"Content-Type":  "application/x-www-form-urlencoded",
	}
}

func (e *PostRevokeToken) Content() ([]byte, error) {
	form := url.Values{}
	form.Set("token", e.token)
	return []byte(form.Encode()), nil
}

func (*PostRevokeToken) ProcessResponse(statusCode int, _ []byte, _ map[string]string) (struct{}, error) {
	if statusCode == http.StatusOK {
		return struct{}{}, nil
	}
	return struct{}{}, fmt.Errorf("uphold: token revocation: %w", core.ErrUnexpectedStatusCode)
}

var _ endpoints.Endpoint[struct{}] = (*PostRevokeToken)(nil)
