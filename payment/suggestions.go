package payment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

// SuggestionCredential is one redeemed unblinded token presented to the
// payment service as proof of funds.
type SuggestionCredential struct {
	TokenPreimage string `json:"t"`
	Signature     string `json:"signature"`
	PublicKey     string `json:"publicKey"`
}

// PostSuggestions redeems unblinded tokens against the payment service:
// POST /v1/suggestions. The token set is reserved by the caller before this
// request is issued; a failure here releases the reservation, it never
// un-spends tokens that a success already finalized.
type PostSuggestions struct {
	env         core.Environment
	suggestion  string
	credentials []SuggestionCredential
}

func NewPostSuggestions(env core.Environment, suggestion string, credentials []SuggestionCredential) (*PostSuggestions, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(suggestion) == "" {
		return nil, fmt.Errorf("payment: suggestion payload is required")
	}
	if len(credentials) == 0 {
		return nil, fmt.Errorf("payment: credentials are required")
	}
	return &PostSuggestions{
		env:         env,
		suggestion:  strings.TrimSpace(suggestion),
		credentials: credentials,
	}, nil
}

func (e *PostSuggestions) Path() string {
	return Host(e.env) + "/v1/suggestions"
}

func (*PostSuggestions) Method() string {
	return http.MethodPost
}

func (*PostSuggestions) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (e *PostSuggestions) Content() ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"suggestion":  e.suggestion,
		"credentials": e.credentials,
	})
	if err != nil {
		return nil, fmt.Errorf("payment: encode suggestions body: %w", err)
	}
	return body, nil
}

func (*PostSuggestions) ProcessResponse(statusCode int, body []byte, _ map[string]string) (struct{}, error) {
	switch statusCode {
	case http.StatusOK, http.StatusCreated:
		return struct{}{}, nil
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return struct{}{}, core.ErrRetry
	default:
		return struct{}{}, fmt.Errorf("payment: submit suggestions: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[struct{}] = (*PostSuggestions)(nil)
