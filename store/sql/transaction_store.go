package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-rewards/core"
)

// TransactionStore keeps the at-most-once guarantee for settlements: a
// transaction id or contribution id that already exists is refused, never
// overwritten.
type TransactionStore struct {
	db   *bun.DB
	repo repository.Repository[*externalTransactionRecord]
}

func NewTransactionStore(db *bun.DB) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TransactionStore{
		db:   db,
		repo: repository.NewRepository[*externalTransactionRecord](db, externalTransactionHandlers()),
	}, nil
}

func (s *TransactionStore) Insert(ctx context.Context, tx core.ExternalTransaction) (core.ExternalTransaction, error) {
	if s == nil || s.db == nil {
		return core.ExternalTransaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	if strings.TrimSpace(tx.TransactionID) == "" {
		return core.ExternalTransaction{}, fmt.Errorf("sqlstore: transaction id is required")
	}
	if strings.TrimSpace(tx.ContributionID) == "" {
		return core.ExternalTransaction{}, fmt.Errorf("sqlstore: contribution id is required")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
		tx.UpdatedAt = tx.CreatedAt
	}

	record := newExternalTransactionRecord(tx)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, dbtx bun.Tx) error {
		exists, err := dbtx.NewSelect().
			Model((*externalTransactionRecord)(nil)).
			Where("transaction_id = ? OR contribution_id = ?", record.TransactionID, record.ContributionID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("sqlstore: %s/%s: %w", record.TransactionID, record.ContributionID, core.ErrDuplicateTransaction)
		}
		_, err = dbtx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return core.ExternalTransaction{}, err
	}
	return record.toDomain(), nil
}

func (s *TransactionStore) Get(ctx context.Context, transactionID string) (core.ExternalTransaction, error) {
	if s == nil || s.repo == nil {
		return core.ExternalTransaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	// Transaction ids are caller-owned strings, so look up by column
	// rather than the repository's uuid primary key path.
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("transaction_id", "=", strings.TrimSpace(transactionID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.ExternalTransaction{}, err
	}
	if len(records) == 0 {
		return core.ExternalTransaction{}, fmt.Errorf("sqlstore: transaction %s not found: %w", transactionID, sql.ErrNoRows)
	}
	return records[0].toDomain(), nil
}

func (s *TransactionStore) GetByContribution(ctx context.Context, contributionID string) (core.ExternalTransaction, error) {
	if s == nil || s.db == nil {
		return core.ExternalTransaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	record := &externalTransactionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("contribution_id = ?", strings.TrimSpace(contributionID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ExternalTransaction{}, fmt.Errorf("sqlstore: contribution %s has no transaction: %w", contributionID, err)
		}
		return core.ExternalTransaction{}, err
	}
	return record.toDomain(), nil
}

func (s *TransactionStore) ListByStatus(ctx context.Context, status core.TransactionStatus) ([]core.ExternalTransaction, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	var records []externalTransactionRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.ExternalTransaction, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (s *TransactionStore) MarkSubmitted(ctx context.Context, transactionID string, providerTxID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: transaction store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*externalTransactionRecord)(nil)).
		Set("provider_tx_id = ?", strings.TrimSpace(providerTxID)).
		Set("status = ?", string(core.TransactionStatusSubmitted)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("transaction_id = ?", strings.TrimSpace(transactionID)).
		Exec(ctx)
	return err
}

func (s *TransactionStore) UpdateStatus(ctx context.Context, transactionID string, status core.TransactionStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: transaction store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*externalTransactionRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("transaction_id = ?", strings.TrimSpace(transactionID)).
		Exec(ctx)
	return err
}

var _ core.TransactionStore = (*TransactionStore)(nil)
