package uphold

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

type TransactionResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PostTransaction creates an uncommitted transaction on the rewards card.
// Funds only move once PostTransactionCommit confirms it.
type PostTransaction struct {
	env         core.Environment
	token       string
	cardID      string
	destination string
	amount      float64
}

func NewPostTransaction(env core.Environment, token, cardID, destination string, amount float64) (*PostTransaction, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(cardID) == "" {
		return nil, fmt.Errorf("%w: card id is required", core.ErrFailedToCreateRequest)
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
		cardID:      strings.TrimSpace(cardID),
		destination: strings.TrimSpace(destination),
		amount:      amount,
	}, nil
}

func (e *PostTransaction) Path() string {
	return fmt.Sprintf("%s/v0/me/cards/%s/transactions", Host(e.env), e.cardID)
}

func (*PostTransaction) Method() string {
	return http.MethodPost
}

func (e *PostTransaction) Headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + e.token,
		"Content-Type":  "application/json",
	}
}

func (e *PostTransaction) Content() ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"denomination": map[string]string{
			"amount":   strconv.FormatFloat(e.amount, 'f', -1, 64),
			"currency": cardCurrency,
		},
		"destination": e.destination,
	})
	if err != nil {
		return nil, fmt.Errorf("uphold: encode transaction body: %w", err)
	}
	return body, nil
}

func (*PostTransaction) ProcessResponse(statusCode int, body []byte, _ map[string]string) (TransactionResult, error) {
	switch statusCode {
	case http.StatusOK, http.StatusAccepted:
		result, err := endpoints.ParseBody[TransactionResult](body)
		if err != nil {
			return TransactionResult{}, err
		}
		if strings.TrimSpace(result.ID) == "" {
			return TransactionResult{}, fmt.Errorf("uphold: created transaction has no id: %w", core.ErrFailedToParseBody)
		}
		return result, nil
	case http.StatusUnauthorized:
		return TransactionResult{}, fmt.Errorf("uphold: create transaction: %w", core.ErrAccessTokenExpired)
	default:
		return TransactionResult{}, fmt.Errorf("uphold: create transaction: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[TransactionResult] = (*PostTransaction)(nil)

// PostTransactionCommit confirms a created transaction. This is the
// irreversible step; callers must not resubmit a commit after success.
type PostTransactionCommit struct {
	env           core.Environment
	token         string
	cardID        string
	transactionID string
}

func NewPostTransactionCommit(env core.Environment, token, cardID, transactionID string) (*PostTransactionCommit, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(cardID) == "" {
		return nil, fmt.Errorf("%w: card id is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(transactionID) == "" {
		return nil, fmt.Errorf("%w: transaction id is required", core.ErrFailedToCreateRequest)
	}
	return &PostTransactionCommit{
		env:           env,
		token:         strings.TrimSpace(token),
		cardID:        strings.TrimSpace(cardID),
		transactionID: strings.TrimSpace(transactionID),
	}, nil
}

func (e *PostTransactionCommit) Path() string {
	return fmt.Sprintf("%s/v0/me/cards/%s/transactions/%s/commit", Host(e.env), e.cardID, e.transactionID)
}

func (*PostTransactionCommit) Method() string {
	return http.MethodPost
}

func (e *PostTransactionCommit) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*PostTransactionCommit) Content() ([]byte, error) {
	return nil, nil
}

func (*PostTransactionCommit) ProcessResponse(statusCode int, body []byte, _ map[string]string) (TransactionResult, error) {
	switch statusCode {
	case http.StatusOK, http.StatusAccepted:
		return endpoints.ParseBody[TransactionResult](body)
	case http.StatusUnauthorized:
		return TransactionResult{}, fmt.Errorf("uphold: commit transaction: %w", core.ErrAccessTokenExpired)
	default:
		return TransactionResult{}, fmt.Errorf("uphold: commit transaction: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[TransactionResult] = (*PostTransactionCommit)(nil)

// GetTransactionStatus reports whether a committed transaction settled.
// true means completed, false means failed; any other status is still in
// flight and maps to the retry signal.
type GetTransactionStatus struct {
	env           core.Environment
	token         string
	cardID        string
	transactionID string
}

func NewGetTransactionStatus(env core.Environment, token, cardID, transactionID string) (*GetTransactionStatus, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(cardID) == "" {
		return nil, fmt.Errorf("%w: card id is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(transactionID) == "" {
		return nil, fmt.Errorf("%w: transaction id is required", core.ErrFailedToCreateRequest)
	}
	return &GetTransactionStatus{
		env:           env,
		token:         strings.TrimSpace(token),
		cardID:        strings.TrimSpace(cardID),
		transactionID: strings.TrimSpace(transactionID),
	}, nil
}

func (e *GetTransactionStatus) Path() string {
	return fmt.Sprintf("%s/v0/me/cards/%s/transactions/%s", Host(e.env), e.cardID, e.transactionID)
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
		switch result.Status {
		case "completed":
			return true, nil
		case "failed":
			return false, nil
		default:
			return false, fmt.Errorf("uphold: transaction still settling: %w", core.ErrRetry)
		}
	case http.StatusUnauthorized:
		return false, fmt.Errorf("uphold: transaction status: %w", core.ErrAccessTokenExpired)
	default:
		return false, fmt.Errorf("uphold: transaction status: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[bool] = (*GetTransactionStatus)(nil)
