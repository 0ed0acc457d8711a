package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

type TokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// PostOAuth exchanges the redirect code for an access token on the
// exchange host.
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
		return nil, fmt.Errorf("gemini: client id is required")
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
	return oauthHost(e.env) + "/auth/token"
}

func (*PostOAuth) Method() string {
	return http.MethodPost
}

func (*PostOAuth) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
}

func (e *PostOAuth) Content() ([]byte, error) {
	form := url.Values{}
	form.Set("client_id", e.clientID)
	form.Set("client_secret", e.clientSecret)
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
			return TokenResult{}, fmt.Errorf("gemini: empty access token: %w", core.ErrFailedToParseBody)
		}
		return token, nil
	case http.StatusUnauthorized:
		return TokenResult{}, fmt.Errorf("gemini: token exchange rejected: %w", core.ErrAccessTokenExpired)
	default:
		return TokenResult{}, fmt.Errorf("gemini: token exchange: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[TokenResult] = (*PostOAuth)(nil)

type AccountUser struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	IsVerified bool   `json:"isVerified"`
}

// Account is the POST /v1/account response. The verification token is
// the opaque linking info forwarded to the payment service claim.
type Account struct {
	Users             []AccountUser `json:"users"`
	VerificationToken string        `json:"verificationToken"`
	MemoReferenceCode string        `json:"memo_reference_code"`
}

func (a Account) UserName() string {
	if len(a.Users) == 0 {
		return ""
	}
	return a.Users[0].Name
}

func (a Account) Validate() error {
	if len(a.Users) == 0 {
		return fmt.Errorf("gemini: account has no users: %w", core.ErrFailedToParseBody)
	}
	user := a.Users[0]
	switch strings.ToLower(user.Status) {
	case "blocked", "suspended":
		return fmt.Errorf("%w: gemini account is %s", core.ErrAccountRestricted, strings.ToLower(user.Status))
	}
	if !user.IsVerified {
		return fmt.Errorf("%w: gemini account is not verified", core.ErrAccountNotVerified)
	}
	if strings.TrimSpace(a.VerificationToken) == "" {
		return fmt.Errorf("gemini: account has no verification token: %w", core.ErrFailedToParseBody)
	}
	return nil
}

// PostAccount fetches the authenticated account record.
type PostAccount struct {
	env   core.Environment
	token string
}

func NewPostAccount(env core.Environment, token string) (*PostAccount, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &PostAccount{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *PostAccount) Path() string {
	return apiHost(e.env) + "/v1/account"
}

func (*PostAccount) Method() string {
	return http.MethodPost
}

func (e *PostAccount) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*PostAccount) Content() ([]byte, error) {
	return nil, nil
}

func (*PostAccount) ProcessResponse(statusCode int, body []byte, _ map[string]string) (Account, error) {
	switch statusCode {
	case http.StatusOK:
		return endpoints.ParseBody[Account](body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return Account{}, fmt.Errorf("gemini: account: %w", core.ErrAccessTokenExpired)
	default:
		return Account{}, fmt.Errorf("gemini: account: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[Account] = (*PostAccount)(nil)

type recipientPayload struct {
	Result      string `json:"result"`
	RecipientID string `json:"recipient_id"`
}

// PostRecipientID resolves the deposit recipient id used as the wallet
// address. The request payload travels in the X-GEMINI-PAYLOAD header,
// base64-encoded, per the payments API convention.
type PostRecipientID struct {
	env   core.Environment
	token string
}

func NewPostRecipientID(env core.Environment, token string) (*PostRecipientID, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &PostRecipientID{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *PostRecipientID) Path() string {
	return apiHost(e.env) + "/v1/payments/recipientIds"
}

func (*PostRecipientID) Method() string {
	return http.MethodPost
}

func (e *PostRecipientID) Headers() map[string]string {
	payload, _ := json.Marshal(map[string]string{"label": recipientLabel})
	return map[string]string{
		"Authorization":    "Bearer " + e.token,
		"X-GEMINI-PAYLOAD": base64.StdEncoding.EncodeToString(payload),
	}
}

func (*PostRecipientID) Content() ([]byte, error) {
	return nil, nil
}

func (*PostRecipientID) ProcessResponse(statusCode int, body []byte, _ map[string]string) (string, error) {
	switch statusCode {
	case http.StatusOK:
		payload, err := endpoints.ParseBody[recipientPayload](body)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(payload.RecipientID) == "" {
			return "", fmt.Errorf("gemini: empty recipient id: %w", core.ErrFailedToParseBody)
		}
		return payload.RecipientID, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("gemini: recipient id: %w", core.ErrAccessTokenExpired)
	default:
		return "", fmt.Errorf("gemini: recipient id: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[string] = (*PostRecipientID)(nil)

type balanceEntry struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
}

// PostBalance returns the account's BAT balance. An account without a
// BAT entry has a zero balance, not an error.
type PostBalance struct {
	env   core.Environment
	token string
}

func NewPostBalance(env core.Environment, token string) (*PostBalance, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &PostBalance{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *PostBalance) Path() string {
	return apiHost(e.env) + "/v1/balances"
}

func (*PostBalance) Method() string {
	return http.MethodPost
}

func (e *PostBalance) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*PostBalance) Content() ([]byte, error) {
	return nil, nil
}

func (*PostBalance) ProcessResponse(statusCode int, body []byte, _ map[string]string) (float64, error) {
	switch statusCode {
	case http.StatusOK:
		entries, err := endpoints.ParseBody[[]balanceEntry](body)
		if err != nil {
			return 0, err
		}
		for _, entry := range entries {
			if !strings.EqualFold(entry.Currency, batCurrency) {
				continue
			}
			available, err := strconv.ParseFloat(entry.Available, 64)
			if err != nil {
				return 0, fmt.Errorf("gemini: balance %q: %w", entry.Available, core.ErrFailedToParseBody)
			}
			return available, nil
		}
		return 0, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return 0, fmt.Errorf("gemini: balances: %w", core.ErrAccessTokenExpired)
	default:
		return 0, fmt.Errorf("gemini: balances: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[float64] = (*PostBalance)(nil)

type TransactionResult struct {
	Result string `json:"result"`
	TxRef  string `json:"tx_ref"`
	Status string `json:"status"`
}

// PostTransaction pays a destination from the account: POST
// /v1/payments/pay. The caller-provided tx_ref keeps resubmission
// idempotent on the provider side.
type PostTransaction struct {
	env         core.Environment
	token       string
	txRef       string
	destination string
	amount      float64
}

func NewPostTransaction(env core.Environment, token, txRef, destination string, amount float64) (*PostTransaction, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(txRef) == "" {
		return nil, fmt.Errorf("%w: tx ref is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(destination) == "" {
		return nil, fmt.Errorf("%w: destination is required", core.ErrFailedToCreateRequest)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", core.ErrFailedToCreateRequest)
	}
	return &PostTransaction{
		env:         env,
		token:       strings.TrimSpace(token),
		txRef:       strings.TrimSpace(txRef),
		destination: strings.TrimSpace(destination),
		amount:      amount,
	}, nil
}

func (e *PostTransaction) Path() string {
	return apiHost(e.env) + "/v1/payments/pay"
}

func (*PostTransaction) Method() string {
	return http.MethodPost
}

func (e *PostTransaction) Headers() map[string]string {
	payload, _ := json.Marshal(map[string]any{
		"tx_ref":      e.txRef,
		"amount":      strconv.FormatFloat(e.amount, 'f', -1, 64),
		"currency":    batCurrency,
		"destination": e.destination,
	})
	return map[string]string{
		"Authorization":    "Bearer " + e.token,
		"X-GEMINI-PAYLOAD": base64.StdEncoding.EncodeToString(payload),
	}
}

func (*PostTransaction) Content() ([]byte, error) {
	return nil, nil
}

func (*PostTransaction) ProcessResponse(statusCode int, body []byte, _ map[string]string) (TransactionResult, error) {
	switch statusCode {
	case http.StatusOK:
		result, err := endpoints.ParseBody[TransactionResult](body)
		if err != nil {
			return TransactionResult{}, err
		}
		if strings.EqualFold(result.Result, "error") {
			return TransactionResult{}, fmt.Errorf("gemini: pay rejected: %w", core.ErrUnexpectedStatusCode)
		}
		return result, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return TransactionResult{}, fmt.Errorf("gemini: pay: %w", core.ErrAccessTokenExpired)
	default:
		return TransactionResult{}, fmt.Errorf("gemini: pay: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[TransactionResult] = (*PostTransaction)(nil)

// GetTransactionStatus reports whether a payment settled. completed maps
// to true, error or failed to false, anything else is still in flight.
type GetTransactionStatus struct {
	env   core.Environment
	token string
	txRef string
}

func NewGetTransactionStatus(env core.Environment, token, txRef string) (*GetTransactionStatus, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(txRef) == "" {
		return nil, fmt.Errorf("%w: tx ref is required", core.ErrFailedToCreateRequest)
	}
	return &GetTransactionStatus{env: env, token: strings.TrimSpace(token), txRef: strings.TrimSpace(txRef)}, nil
}

func (e *GetTransactionStatus) Path() string {
	return apiHost(e.env) + "/v1/payments/" + e.txRef
}

func (*GetTransactionStatus) Method() string {
	return http.MethodGet
}

func (e *GetTransactionStatus) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*GetTransactionStatus) Content() ([]byte, error) {
	return nil, nil
}

func (*GetTransactionStatus) ProcessResponse(statusCode int, body []byte, _ map[string]string) (bool, error) {
	switch statusCode {
	case http.StatusOK:
		result, err := endpoints.ParseBody[TransactionResult](body)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(result.Status) {
		case "completed":
			return true, nil
		case "error", "failed":
			return false, nil
		default:
			return false, fmt.Errorf("gemini: payment still settling: %w", core.ErrRetry)
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, fmt.Errorf("gemini: payment status: %w", core.ErrAccessTokenExpired)
	default:
		return false, fmt.Errorf("gemini: payment status: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[bool] = (*GetTransactionStatus)(nil)
