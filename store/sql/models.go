// Package sqlstore persists credential batches, unblinded tokens, and
// external transactions on bun. The wallet record itself lives in the
// encrypted string-state store, not here.
package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-rewards/core"
)

type credsBatchRecord struct {
	bun.BaseModel `bun:"table:rewards_creds_batches,alias:rcb"`

	ID           string    `bun:"id,pk"`
	OrderID      string    `bun:"order_id,notnull"`
	IssuerID     string    `bun:"issuer_id,notnull"`
	Creds        []string  `bun:"creds,type:jsonb,notnull"`
	BlindedCreds []string  `bun:"blinded_creds,type:jsonb,notnull"`
	SignedCreds  []string  `bun:"signed_creds,type:jsonb"`
	BatchProof   string    `bun:"batch_proof"`
	PublicKey    string    `bun:"public_key"`
	TokenValue   float64   `bun:"token_value,notnull"`
	ExpiresAt    time.Time `bun:"expires_at,nullzero"`
	Status       string    `bun:"status,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *credsBatchRecord) toDomain() core.CredsBatch {
	if r == nil {
		return core.CredsBatch{}
	}
	return core.CredsBatch{
		ID:           r.ID,
		OrderID:      r.OrderID,
		IssuerID:     r.IssuerID,
		Creds:        append([]string(nil), r.Creds...),
		BlindedCreds: append([]string(nil), r.BlindedCreds...),
		SignedCreds:  append([]string(nil), r.SignedCreds...),
		BatchProof:   r.BatchProof,
		PublicKey:    r.PublicKey,
		TokenValue:   r.TokenValue,
		ExpiresAt:    r.ExpiresAt,
		Status:       core.CredsBatchStatus(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

func newCredsBatchRecord(batch core.CredsBatch) *credsBatchRecord {
	return &credsBatchRecord{
		ID:           batch.ID,
		OrderID:      batch.OrderID,
		IssuerID:     batch.IssuerID,
		Creds:        append([]string(nil), batch.Creds...),
		BlindedCreds: append([]string(nil), batch.BlindedCreds...),
		SignedCreds:  append([]string(nil), batch.SignedCreds...),
		BatchProof:   batch.BatchProof,
		PublicKey:    batch.PublicKey,
		TokenValue:   batch.TokenValue,
		ExpiresAt:    batch.ExpiresAt,
		Status:       string(batch.Status),
		CreatedAt:    batch.CreatedAt,
	}
}

type unblindedTokenRecord struct {
	bun.BaseModel `bun:"table:rewards_unblinded_tokens,alias:rut"`

	ID         string    `bun:"id,pk"`
	BatchID    string    `bun:"batch_id,notnull"`
	TokenValue string    `bun:"token_value,notnull"`
	PublicKey  string    `bun:"public_key,notnull"`
	Value      float64   `bun:"value,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,nullzero"`
	ReservedBy string    `bun:"reserved_by"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *unblindedTokenRecord) toDomain() core.UnblindedToken {
	if r == nil {
		return core.UnblindedToken{}
	}
	return core.UnblindedToken{
		ID:         r.ID,
		BatchID:    r.BatchID,
		TokenValue: r.TokenValue,
		PublicKey:  r.PublicKey,
		Value:      r.Value,
		ExpiresAt:  r.ExpiresAt,
		ReservedBy: r.ReservedBy,
		CreatedAt:  r.CreatedAt,
	}
}

func newUnblindedTokenRecord(token core.UnblindedToken) *unblindedTokenRecord {
	return &unblindedTokenRecord{
		ID:         token.ID,
		BatchID:    token.BatchID,
		TokenValue: token.TokenValue,
		PublicKey:  token.PublicKey,
		Value:      token.Value,
		ExpiresAt:  token.ExpiresAt,
		ReservedBy: token.ReservedBy,
		CreatedAt:  token.CreatedAt,
	}
}

type externalTransactionRecord struct {
	bun.BaseModel `bun:"table:rewards_external_transactions,alias:ret"`

	TransactionID  string    `bun:"transaction_id,pk"`
	ContributionID string    `bun:"contribution_id,notnull,unique"`
	Provider       string    `bun:"provider,notnull"`
	Destination    string    `bun:"destination,notnull"`
	Amount         float64   `bun:"amount,notnull"`
	ProviderTxID   string    `bun:"provider_tx_id"`
	Status         string    `bun:"status,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *externalTransactionRecord) toDomain() core.ExternalTransaction {
	if r == nil {
		return core.ExternalTransaction{}
	}
	return core.ExternalTransaction{
		TransactionID:  r.TransactionID,
		ContributionID: r.ContributionID,
		Provider:       r.Provider,
		Destination:    r.Destination,
		Amount:         r.Amount,
		ProviderTxID:   r.ProviderTxID,
		Status:         core.TransactionStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newExternalTransactionRecord(tx core.ExternalTransaction) *externalTransactionRecord {
	return &externalTransactionRecord{
		TransactionID:  tx.TransactionID,
		ContributionID: tx.ContributionID,
		Provider:       tx.Provider,
		Destination:    tx.Destination,
		Amount:         tx.Amount,
		ProviderTxID:   tx.ProviderTxID,
		Status:         string(tx.Status),
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	}
}
