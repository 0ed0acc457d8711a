package payment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

// PostCredentials submits a batch of blinded credentials for signing:
// POST /v1/orders/{order_id}/credentials. The payment service signs
// asynchronously; callers poll with GetSignedCreds until the batch is ready.
type PostCredentials struct {
	env          core.Environment
	orderID      string
	itemID       string
	blindedCreds []string
}

func NewPostCredentials(env core.Environment, orderID, itemID string, blindedCreds []string) (*PostCredentials, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("payment: order id is required")
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("payment: item id is required")
	}
	if len(blindedCreds) == 0 {
		return nil, fmt.Errorf("payment: blinded creds are required")
	}
	return &PostCredentials{
		env:          env,
		orderID:      strings.TrimSpace(orderID),
		itemID:       strings.TrimSpace(itemID),
		blindedCreds: blindedCreds,
	}, nil
}

func (e *PostCredentials) Path() string {
	return fmt.Sprintf("%s/v1/orders/%s/credentials", Host(e.env), e.orderID)
}

func (*PostCredentials) Method() string {
	return http.MethodPost
}

func (*PostCredentials) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (e *PostCredentials) Content() ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"itemId":       e.itemID,
		"blindedCreds": e.blindedCreds,
	})
	if err != nil {
		return nil, fmt.Errorf("payment: encode credentials body: %w", err)
	}
	return body, nil
}

func (*PostCredentials) ProcessResponse(statusCode int, body []byte, _ map[string]string) (struct{}, error) {
	switch statusCode {
	case http.StatusOK, http.StatusCreated:
		return struct{}{}, nil
	case http.StatusConflict:
		// The batch was already submitted. Treat as accepted so the
		// poll loop picks it up.
		return struct{}{}, nil
	default:
		return struct{}{}, fmt.Errorf("payment: submit credentials: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[struct{}] = (*PostCredentials)(nil)

// SignedCreds is the payload returned once the payment service has signed a
// submitted batch.
type SignedCreds struct {
	BatchProof  string   `json:"batchProof"`
	PublicKey   string   `json:"publicKey"`
	SignedCreds []string `json:"signedCreds"`
}

// GetSignedCreds polls for a signed batch: GET
// /v1/orders/{order_id}/credentials/{item_id}. 202 means the batch is still
// being signed and maps to the short retry signal; 400, 404, and 500 bodies
// are ambiguous on this route and map to the regular retry signal. Anything
// else is terminal.
type GetSignedCreds struct {
	env     core.Environment
	orderID string
	itemID  string
}

func NewGetSignedCreds(env core.Environment, orderID, itemID string) (*GetSignedCreds, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("payment: order id is required")
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("payment: item id is required")
	}
	return &GetSignedCreds{
		env:     env,
		orderID: strings.TrimSpace(orderID),
		itemID:  strings.TrimSpace(itemID),
	}, nil
}

func (e *GetSignedCreds) Path() string {
	return fmt.Sprintf("%s/v1/orders/%s/credentials/%s", Host(e.env), e.orderID, e.itemID)
}

func (*GetSignedCreds) Method() string {
	return http.MethodGet
}

func (*GetSignedCreds) Headers() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

func (*GetSignedCreds) Content() ([]byte, error) {
	return nil, nil
}

func (*GetSignedCreds) ProcessResponse(statusCode int, body []byte, _ map[string]string) (SignedCreds, error) {
	switch statusCode {
	case http.StatusOK:
		creds, err := endpoints.ParseBody[SignedCreds](body)
		if err != nil {
			return SignedCreds{}, err
		}
		if creds.BatchProof == "" || creds.PublicKey == "" || len(creds.SignedCreds) == 0 {
			return SignedCreds{}, fmt.Errorf("payment: incomplete signed creds: %w", core.ErrFailedToParseBody)
		}
		return creds, nil
	case http.StatusAccepted:
		return SignedCreds{}, core.ErrRetryShort
	case http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError:
		return SignedCreds{}, core.ErrRetry
	default:
		return SignedCreds{}, fmt.Errorf("payment: signed creds: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[SignedCreds] = (*GetSignedCreds)(nil)
