package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// TransportRequest/TransportResponse describe the one HTTP boundary the
// engine consumes. The adapter owns timeouts and never retries.
type TransportRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	Timeout     time.Duration
	Idempotency string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	URL        string
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// StringStateStore is the host's persisted key/value state. Values are
// opaque strings; the wallet state store layers encryption on top.
type StringStateStore interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key string, value string) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// WalletStore owns the ExternalWallet record. CompareAndSet is the sole
// mutation gate: a write only lands when the persisted status still equals
// expected, so callbacks that resolved against a stale snapshot no-op.
type WalletStore interface {
	Get(ctx context.Context, provider string) (ExternalWallet, error)
	Create(ctx context.Context, provider string) (ExternalWallet, error)
	CompareAndSet(ctx context.Context, provider string, expected WalletStatus, wallet ExternalWallet) (bool, error)
}

// Provider is the custodial wallet abstraction. Exactly three variants
// exist (uphold, gemini, bitflyer); the connect flow is the one dispatch
// point.
type Provider interface {
	ID() string
	Authorize(ctx context.Context, wallet ExternalWallet, redirect OAuthRedirect) (AuthorizeResult, error)
	FetchBalance(ctx context.Context, wallet ExternalWallet) (float64, error)
	GenerateWallet(ctx context.Context, wallet ExternalWallet) (string, error)
	DisconnectWallet(ctx context.Context, wallet ExternalWallet, reason string) error
}

// TransactionProvider is implemented by variants that settle contributions
// through a provider-side transaction commit plus status check.
type TransactionProvider interface {
	SubmitTransaction(ctx context.Context, wallet ExternalWallet, tx ExternalTransaction) (string, error)
	TransactionStatus(ctx context.Context, wallet ExternalWallet, transactionID string) (bool, error)
}

type Registry interface {
	Register(provider Provider) error
	Get(providerID string) (Provider, bool)
	List() []Provider
}

// MemberVerifier confirms the custodian member behind a wallet's access
// token. The connect flow consults it on re-link so a token from a
// different custodian account never lands on an already-linked wallet.
type MemberVerifier interface {
	VerifyMember(ctx context.Context, wallet ExternalWallet) error
}

type SaveTokensInput struct {
	BatchID string
	Tokens  []UnblindedToken
}

// TokenStore guards the unspent-token set. ReserveForRedemption must, in a
// single transaction: delete expired tokens, verify the live unreserved
// set covers amount, and mark the selected tokens with contributionID.
type TokenStore interface {
	Save(ctx context.Context, in SaveTokensInput) error
	ListLive(ctx context.Context, now time.Time) ([]UnblindedToken, error)
	ReserveForRedemption(ctx context.Context, contributionID string, amount float64, now time.Time) ([]UnblindedToken, error)
	ReleaseReservation(ctx context.Context, contributionID string) error
	FinalizeRedemption(ctx context.Context, contributionID string) error
}

type CredsBatchStore interface {
	Create(ctx context.Context, batch CredsBatch) (CredsBatch, error)
	Get(ctx context.Context, id string) (CredsBatch, error)
	ListByStatus(ctx context.Context, status CredsBatchStatus) ([]CredsBatch, error)
	MarkSigned(ctx context.Context, id string, signedCreds []string, batchProof string, publicKey string) error
	MarkFinished(ctx context.Context, id string) error
}

// TransactionStore refuses duplicate transaction ids so resubmission under
// retry stays at-most-once.
type TransactionStore interface {
	Insert(ctx context.Context, tx ExternalTransaction) (ExternalTransaction, error)
	Get(ctx context.Context, transactionID string) (ExternalTransaction, error)
	GetByContribution(ctx context.Context, contributionID string) (ExternalTransaction, error)
	ListByStatus(ctx context.Context, status TransactionStatus) ([]ExternalTransaction, error)
	MarkSubmitted(ctx context.Context, transactionID string, providerTxID string) error
	UpdateStatus(ctx context.Context, transactionID string, status TransactionStatus) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}
