package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Endpoint-layer sentinels. ProcessResponse implementations return these
// (wrapped) and never leak raw status codes or provider message strings
// past the classifier.
var (
	ErrFailedToCreateRequest               = errors.New("core: failed to create request")
	ErrFailedToParseBody                   = errors.New("core: failed to parse response body")
	ErrUnexpectedStatusCode                = errors.New("core: unexpected status code")
	ErrUnknownMessage                      = errors.New("core: unknown provider message")
	ErrAccessTokenExpired                  = errors.New("core: access token expired")
	ErrFlaggedWallet                       = errors.New("core: flagged wallet")
	ErrMismatchedCountries                 = errors.New("core: mismatched countries")
	ErrProviderUnavailable                 = errors.New("core: provider unavailable")
	ErrRegionNotSupported                  = errors.New("core: region not supported")
	ErrKYCRequired                         = errors.New("core: kyc required")
	ErrMismatchedProviderAccounts          = errors.New("core: mismatched provider accounts")
	ErrRequestSignatureVerificationFailure = errors.New("core: request signature verification failure")
	ErrTransactionVerificationFailure      = errors.New("core: transaction verification failure")
	ErrDeviceLimitReached                  = errors.New("core: device limit reached")
	ErrAccountNotVerified                  = errors.New("core: provider account not verified")
	ErrAccountRestricted                   = errors.New("core: provider account restricted")
)

// Recoverable polling conditions. The scheduling caller converts these to
// a RetrySignal; nothing inside the endpoint layer retries.
var (
	ErrRetry      = errors.New("core: retry")
	ErrRetryShort = errors.New("core: retry short")
)

const (
	RewardsErrorUnexpected           = "REWARDS_UNEXPECTED"
	RewardsErrorFlaggedWallet        = "REWARDS_FLAGGED_WALLET"
	RewardsErrorMismatchedCountries  = "REWARDS_MISMATCHED_COUNTRIES"
	RewardsErrorProviderUnavailable  = "REWARDS_PROVIDER_UNAVAILABLE"
	RewardsErrorRegionNotSupported   = "REWARDS_REGION_NOT_SUPPORTED"
	RewardsErrorKYCRequired          = "REWARDS_KYC_REQUIRED"
	RewardsErrorMismatchedAccounts   = "REWARDS_MISMATCHED_PROVIDER_ACCOUNTS"
	RewardsErrorSignatureFailure     = "REWARDS_REQUEST_SIGNATURE_VERIFICATION_FAILURE"
	RewardsErrorTransactionFailure   = "REWARDS_TRANSACTION_VERIFICATION_FAILURE"
	RewardsErrorDeviceLimitReached   = "REWARDS_DEVICE_LIMIT_REACHED"
	RewardsErrorWalletStatusConflict = "REWARDS_WALLET_STATUS_CONFLICT"
	RewardsErrorNotEnoughFunds       = "REWARDS_NOT_ENOUGH_FUNDS"
	RewardsErrorBadInput             = "REWARDS_BAD_INPUT"
	RewardsErrorInternal             = "REWARDS_INTERNAL"
	RewardsErrorRateLimited          = "REWARDS_RATE_LIMITED"
	RewardsErrorProfileNotFound      = "REWARDS_PROFILE_NOT_FOUND"
)

// MapConnectError is the single translation point from endpoint-layer
// sentinels into the closed, caller-facing error set. Anything the table
// does not recognize collapses to REWARDS_UNEXPECTED.
func MapConnectError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	for _, row := range connectErrorTable {
		if errors.Is(err, row.sentinel) {
			return ensureRewardsEnvelope(
				goerrors.Wrap(err, row.category, row.message).WithTextCode(row.textCode),
			)
		}
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRewardsEnvelope(richErr)
	}
	return ensureRewardsEnvelope(
		goerrors.Wrap(err, goerrors.CategoryInternal, "connect external wallet failed").
			WithTextCode(RewardsErrorUnexpected),
	)
}

type connectErrorRow struct {
	sentinel error
	category goerrors.Category
	message  string
	textCode string
}

var connectErrorTable = []connectErrorRow{
	{ErrFlaggedWallet, goerrors.CategoryAuthz, "wallet flagged by provider", RewardsErrorFlaggedWallet},
	{ErrMismatchedCountries, goerrors.CategoryAuthz, "provider account region mismatch", RewardsErrorMismatchedCountries},
	{ErrProviderUnavailable, goerrors.CategoryExternal, "provider unavailable", RewardsErrorProviderUnavailable},
	{ErrRegionNotSupported, goerrors.CategoryAuthz, "region not supported", RewardsErrorRegionNotSupported},
	{ErrKYCRequired, goerrors.CategoryAuthz, "kyc verification required", RewardsErrorKYCRequired},
	{ErrMismatchedProviderAccounts, goerrors.CategoryAuthz, "wallet linked to another provider account", RewardsErrorMismatchedAccounts},
	{ErrRequestSignatureVerificationFailure, goerrors.CategoryAuth, "request signature verification failure", RewardsErrorSignatureFailure},
	{ErrTransactionVerificationFailure, goerrors.CategoryAuth, "transaction verification failure", RewardsErrorTransactionFailure},
	{ErrDeviceLimitReached, goerrors.CategoryAuthz, "device limit reached", RewardsErrorDeviceLimitReached},
	{ErrWalletStatusConflict, goerrors.CategoryConflict, "wallet status conflict", RewardsErrorWalletStatusConflict},
	{ErrNotEnoughFunds, goerrors.CategoryOperation, "not enough unblinded funds", RewardsErrorNotEnoughFunds},
}

func ensureRewardsEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = rewardsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = RewardsErrorUnexpected
	}
	return err
}

func rewardsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RetrySignalFor classifies a polling result. Fatal conditions (CSRF
// mismatch, flagged wallet, device limit) are never retryable.
func RetrySignalFor(err error) RetrySignal {
	switch {
	case err == nil:
		return RetrySignalNone
	case errors.Is(err, ErrRetryShort):
		return RetrySignalShort
	case errors.Is(err, ErrRetry):
		return RetrySignalRetry
	}
	return RetrySignalNone
}
