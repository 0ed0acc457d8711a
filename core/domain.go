package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidEnvironment            = errors.New("core: invalid environment")
	ErrInvalidWalletStatusTransition = errors.New("core: invalid wallet status transition")
	ErrWalletNotFound                = errors.New("core: wallet not found")
	ErrWalletStatusConflict          = errors.New("core: wallet status conflict")
	ErrInvalidWalletRecord           = errors.New("core: invalid wallet record")
	ErrNotEnoughFunds                = errors.New("core: not enough unblinded funds")
	ErrTokenAlreadyReserved          = errors.New("core: token already reserved")
	ErrDuplicateTransaction          = errors.New("core: duplicate external transaction")
)

type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
)

func (e Environment) Validate() error {
	switch e {
	case EnvironmentProduction, EnvironmentStaging, EnvironmentDevelopment:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidEnvironment, string(e))
}

type WalletStatus string

const (
	WalletStatusNotConnected            WalletStatus = "not_connected"
	WalletStatusPending                 WalletStatus = "pending"
	WalletStatusVerified                WalletStatus = "verified"
	WalletStatusDisconnectedNotVerified WalletStatus = "disconnected_not_verified"
	WalletStatusDisconnectedVerified    WalletStatus = "disconnected_verified"
)

// ExternalWallet is the single source of truth for one custodian link.
// It is owned by the wallet state store; every mutation is a
// read-transact-write through CompareAndSet.
type ExternalWallet struct {
	Provider      string
	Status        WalletStatus
	Token         string
	Address       string
	UserName      string
	MemberID      string
	OneTimeString string
	Fees          map[string]float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (w *ExternalWallet) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: nil wallet", ErrInvalidWalletRecord)
	}
	if strings.TrimSpace(w.Provider) == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidWalletRecord)
	}
	if !walletStatusKnown(w.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidWalletRecord, string(w.Status))
	}
	if strings.TrimSpace(w.Address) != "" &&
		w.Status != WalletStatusVerified && w.Status != WalletStatusDisconnectedVerified {
		return fmt.Errorf("%w: address set in status %q", ErrInvalidWalletRecord, string(w.Status))
	}
	if strings.TrimSpace(w.Token) != "" && w.Status == WalletStatusNotConnected {
		return fmt.Errorf("%w: token set in status %q", ErrInvalidWalletRecord, string(w.Status))
	}
	return nil
}

func (w *ExternalWallet) TransitionTo(status WalletStatus, now time.Time) error {
	if w == nil {
		return nil
	}
	if w.Status == status {
		w.UpdatedAt = now
		return nil
	}
	if !walletTransitionAllowed(w.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidWalletStatusTransition, w.Status, status)
	}
	w.Status = status
	w.UpdatedAt = now
	return nil
}

func walletStatusKnown(status WalletStatus) bool {
	switch status {
	case WalletStatusNotConnected, WalletStatusPending, WalletStatusVerified,
		WalletStatusDisconnectedNotVerified, WalletStatusDisconnectedVerified:
		return true
	}
	return false
}

func walletTransitionAllowed(current, next WalletStatus) bool {
	allowed := map[WalletStatus]map[WalletStatus]struct{}{
		WalletStatusNotConnected: {
			WalletStatusPending:                 {},
			WalletStatusDisconnectedNotVerified: {},
		},
		WalletStatusPending: {
			WalletStatusVerified:                {},
			WalletStatusNotConnected:            {},
			WalletStatusDisconnectedNotVerified: {},
		},
		WalletStatusVerified: {
			WalletStatusNotConnected:         {},
			WalletStatusDisconnectedVerified: {},
		},
		WalletStatusDisconnectedNotVerified: {
			WalletStatusPending:      {},
			WalletStatusNotConnected: {},
		},
		WalletStatusDisconnectedVerified: {
			WalletStatusVerified:     {},
			WalletStatusNotConnected: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// Capabilities is derived per-request from a provider permission list and
// never persisted. Nil means the provider did not report the permission.
type Capabilities struct {
	CanReceive *bool
	CanSend    *bool
}

func (c Capabilities) SufficientForVerified() bool {
	return c.CanReceive != nil && *c.CanReceive && c.CanSend != nil && *c.CanSend
}

type CredsBatchStatus string

const (
	CredsBatchStatusBlinded  CredsBatchStatus = "blinded"
	CredsBatchStatusSigned   CredsBatchStatus = "signed"
	CredsBatchStatusFinished CredsBatchStatus = "finished"
)

// CredsBatch is immutable once created; only Status advances and the
// signing artifacts land when the batch moves to signed.
type CredsBatch struct {
	ID           string
	OrderID      string
	IssuerID     string
	Creds        []string
	BlindedCreds []string
	SignedCreds  []string
	BatchProof   string
	PublicKey    string
	TokenValue   float64
	ExpiresAt    time.Time
	Status       CredsBatchStatus
	CreatedAt    time.Time
}

// UnblindedToken is either live-unspent or gone; spend and delete are
// mutually exclusive. ReservedBy holds the contribution id of the one
// in-flight redemption allowed to consume it.
type UnblindedToken struct {
	ID         string
	BatchID    string
	TokenValue string
	PublicKey  string
	Value      float64
	ExpiresAt  time.Time
	ReservedBy string
	CreatedAt  time.Time
}

func (t UnblindedToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

type TransactionStatus string

const (
	TransactionStatusCreated   TransactionStatus = "created"
	TransactionStatusSubmitted TransactionStatus = "submitted"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// ExternalTransaction pairs a contribution with one provider-side
// commit/status round trip. Immutable once submitted; ProviderTxID is
// the custodian's identifier recorded at submission.
type ExternalTransaction struct {
	TransactionID  string
	ContributionID string
	Provider       string
	Destination    string
	Amount         float64
	ProviderTxID   string
	Status         TransactionStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RetrySignal string

const (
	RetrySignalNone  RetrySignal = "none"
	RetrySignalRetry RetrySignal = "retry"
	RetrySignalShort RetrySignal = "retry_short"
)

// OAuthRedirect carries the untrusted query parameters a custodian sends
// back on its redirect URL. State must match the wallet's one-time string
// before anything else is trusted.
type OAuthRedirect struct {
	Code             string
	State            string
	ErrorDescription string
}

type AuthorizeResult struct {
	Token       string
	Address     string
	UserName    string
	MemberID    string
	LinkingInfo string
}
