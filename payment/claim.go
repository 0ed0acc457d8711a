package payment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

// claimMessageTable classifies the claim endpoint's error bodies. HTTP 403
// alone is ambiguous: the same status carries KYC-required,
// mismatched-accounts, and signature-failure depending on message text, so
// rows are matched top to bottom on the body's "message" field.
var claimMessageTable = endpoints.MessageTable{
	{Status: http.StatusBadRequest, Substring: "unable to link - unusual activity", Err: core.ErrFlaggedWallet},
	{Status: http.StatusBadRequest, Substring: "mismatched provider account regions", Err: core.ErrMismatchedCountries},
	{Status: http.StatusBadRequest, Substring: "region not supported", Err: core.ErrRegionNotSupported},
	{Status: http.StatusForbidden, Substring: "mismatched provider accounts", Err: core.ErrMismatchedProviderAccounts},
	{Status: http.StatusForbidden, Substring: "request signature verification failure", Err: core.ErrRequestSignatureVerificationFailure},
	{Status: http.StatusForbidden, Substring: "transaction verification failure", Err: core.ErrTransactionVerificationFailure},
	{Status: http.StatusForbidden, Substring: "KYC required", Err: core.ErrKYCRequired},
	{Status: http.StatusNotFound, Substring: "", Err: core.ErrKYCRequired},
	{Status: http.StatusConflict, Substring: "", Err: core.ErrDeviceLimitReached},
	{Status: http.StatusInternalServerError, Substring: "", Err: core.ErrProviderUnavailable},
}

// ClaimWallet links a custodian account to the rewards payment id:
// PATCH /v3/wallet/{provider}/{payment_id}/claim. Success body is empty;
// error bodies carry {message, code}.
type ClaimWallet struct {
	env         core.Environment
	provider    string
	paymentID   string
	linkingInfo string
	recipientID string
}

func NewClaimWallet(env core.Environment, provider, paymentID, linkingInfo, recipientID string) (*ClaimWallet, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return nil, fmt.Errorf("payment: provider is required")
	}
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("payment: payment id is required")
	}
	if strings.TrimSpace(linkingInfo) == "" {
		return nil, fmt.Errorf("payment: linking info is required")
	}
	return &ClaimWallet{
		env:         env,
		provider:    provider,
		paymentID:   strings.TrimSpace(paymentID),
		linkingInfo: strings.TrimSpace(linkingInfo),
		recipientID: strings.TrimSpace(recipientID),
	}, nil
}

func (e *ClaimWallet) Path() string {
	return fmt.Sprintf("%s/v3/wallet/%s/%s/claim", Host(e.env), e.provider, e.paymentID)
}

func (*ClaimWallet) Method() string {
	return http.MethodPatch
}

func (*ClaimWallet) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (e *ClaimWallet) Content() ([]byte, error) {
	payload := map[string]string{"linking_info": e.linkingInfo}
	if e.recipientID != "" {
		payload["recipient_id"] = e.recipientID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payment: encode claim body: %w", err)
	}
	return body, nil
}

func (*ClaimWallet) ProcessResponse(statusCode int, body []byte, _ map[string]string) (struct{}, error) {
	if statusCode == http.StatusOK {
		return struct{}{}, nil
	}
	return struct{}{}, claimMessageTable.Classify(statusCode, endpoints.ParseMessageBody(body))
}

var _ endpoints.Endpoint[struct{}] = (*ClaimWallet)(nil)
