package bitflyer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

// TokenResult is the POST /api/link/v1/token response. DepositID doubles
// as the wallet address and LinkingInfo is forwarded to the payment
// service claim verbatim.
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	AccountHash  string `json:"account_hash"`
	LinkingInfo  string `json:"linking_info"`
	DepositID    string `json:"deposit_id"`
}

type PostOAuthRequest struct {
	ClientID     string
	ClientSecret string
	Code         string
	PaymentID    string
	RequestID    string
}

// PostOAuth exchanges the redirect code: POST /api/link/v1/token. The
// exchange also provisions the deposit id, so the request carries the
// rewards payment id as the external account id.
type PostOAuth struct {
	env core.Environment
	req PostOAuthRequest
}

func NewPostOAuth(env core.Environment, req PostOAuthRequest) (*PostOAuth, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ClientID) == "" {
		return nil, fmt.Errorf("bitflyer: client id is required")
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: oauth code is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, fmt.Errorf("%w: payment id is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(req.RequestID) == "" {
		return nil, fmt.Errorf("%w: request id is required", core.ErrFailedToCreateRequest)
	}
	return &PostOAuth{env: env, req: req}, nil
}

func (e *PostOAuth) Path() string {
	return Host(e.env) + "/api/link/v1/token"
}

func (*PostOAuth) Method() string {
	return http.MethodPost
}

func (*PostOAuth) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (e *PostOAuth) Content() ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"grant_type":          "code",
		"code":                e.req.Code,
		"client_id":           e.req.ClientID,
		"client_secret":       e.req.ClientSecret,
		"expires_in":          259002,
		"external_account_id": e.req.PaymentID,
		"request_id":          e.req.RequestID,
		"request_deposit_id":  true,
	})
	if err != nil {
		return nil, fmt.Errorf("bitflyer: encode token body: %w", err)
	}
	return body, nil
}

func (*PostOAuth) ProcessResponse(statusCode int, body []byte, _ map[string]string) (TokenResult, error) {
	switch statusCode {
	case http.StatusOK:
		token, err := endpoints.ParseBody[TokenResult](body)
		if err != nil {
			return TokenResult{}, err
		}
		if strings.TrimSpace(token.AccessToken) == "" {
			return TokenResult{}, fmt.Errorf("bitflyer: empty access token: %w", core.ErrFailedToParseBody)
		}
		if strings.TrimSpace(token.DepositID) == "" {
			return TokenResult{}, fmt.Errorf("bitflyer: empty deposit id: %w", core.ErrFailedToParseBody)
		}
		return token, nil
	case http.StatusUnauthorized:
		return TokenResult{}, fmt.Errorf("bitflyer: token exchange rejected: %w", core.ErrAccessTokenExpired)
	default:
		return TokenResult{}, fmt.Errorf("bitflyer: token exchange status %d: %w", statusCode, core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[TokenResult] = (*PostOAuth)(nil)

type inventoryEntry struct {
	CurrencyCode string  `json:"currency_code"`
	Amount       float64 `json:"amount"`
	Available    float64 `json:"available"`
}

type inventoryPayload struct {
	AccountHash string           `json:"account_hash"`
	Inventory   []inventoryEntry `json:"inventory"`
}

// GetInventory returns the account's BAT balance from
// GET /api/link/v1/account/inventory. No BAT entry means zero.
type GetInventory struct {
	env   core.Environment
	token string
}

func NewGetInventory(env core.Environment, token string) (*GetInventory, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &GetInventory{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *GetInventory) Path() string {
	return Host(e.env) + "/api/link/v1/account/inventory"
}

func (*GetInventory) Method() string {
	return http.MethodGet
}

func (e *GetInventory) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*GetInventory) Content() ([]byte, error) {
	return nil, nil
}

func (*GetInventory) ProcessResponse(statusCode int, body []byte, _ map[string]string) (float64, error) {
	switch statusCode {
	case http.StatusOK:
		payload, err := endpoints.ParseBody[inventoryPayload](body)
		if err != nil {
			return 0, err
		}
		for _, entry := range payload.Inventory {
			if strings.EqualFold(entry.CurrencyCode, batCurrencyCode) {
				return entry.Available, nil
			}
		}
		return 0, nil
	case http.StatusUnauthorized:
		return 0, fmt.Errorf("bitflyer: inventory: %w", core.ErrAccessTokenExpired)
	default:
		return 0, fmt.Errorf("bitflyer: inventory: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[float64] = (*GetInventory)(nil)
