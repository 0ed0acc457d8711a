package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-rewards/core"
)

type CredsBatchStore struct {
	db   *bun.DB
	repo repository.Repository[*credsBatchRecord]
}

func NewCredsBatchStore(db *bun.DB) (*CredsBatchStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &CredsBatchStore{
		db:   db,
		repo: repository.NewRepository[*credsBatchRecord](db, credsBatchHandlers()),
	}, nil
}

func (s *CredsBatchStore) Create(ctx context.Context, batch core.CredsBatch) (core.CredsBatch, error) {
	if s == nil || s.repo == nil {
		return core.CredsBatch{}, fmt.Errorf("sqlstore: creds batch store is not configured")
	}
	if strings.TrimSpace(batch.ID) == "" {
		return core.CredsBatch{}, fmt.Errorf("sqlstore: batch id is required")
	}
	if strings.TrimSpace(batch.OrderID) == "" {
		return core.CredsBatch{}, fmt.Errorf("sqlstore: order id is required")
	}
	if batch.Status == "" {
		batch.Status = core.CredsBatchStatusBlinded
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	// Batch ids are caller-owned strings; insert directly so the
	// repository never swaps in a generated primary key.
	record := newCredsBatchRecord(batch)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*credsBatchRecord)(nil)).
			Where("id = ?", record.ID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("sqlstore: creds batch %s already exists", record.ID)
		}
		_, err = tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return core.CredsBatch{}, err
	}
	return record.toDomain(), nil
}

func (s *CredsBatchStore) Get(ctx context.Context, id string) (core.CredsBatch, error) {
	if s == nil || s.repo == nil {
		return core.CredsBatch{}, fmt.Errorf("sqlstore: creds batch store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.CredsBatch{}, err
	}
	return record.toDomain(), nil
}

func (s *CredsBatchStore) ListByStatus(ctx context.Context, status core.CredsBatchStatus) ([]core.CredsBatch, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: creds batch store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(status)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.CredsBatch, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *CredsBatchStore) MarkSigned(ctx context.Context, id string, signedCreds []string, batchProof, publicKey string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: creds batch store is not configured")
	}
	id = strings.TrimSpace(id)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != string(core.CredsBatchStatusBlinded) {
		return fmt.Errorf("sqlstore: batch %s is %s, not blinded", id, record.Status)
	}
	record.SignedCreds = append([]string(nil), signedCreds...)
	record.BatchProof = batchProof
	record.PublicKey = publicKey
	record.Status = string(core.CredsBatchStatusSigned)

	_, err = s.repo.Update(ctx, record, repository.UpdateByID(id))
	return err
}

func (s *CredsBatchStore) MarkFinished(ctx context.Context, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: creds batch store is not configured")
	}
	id = strings.TrimSpace(id)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	record.Status = string(core.CredsBatchStatusFinished)

	_, err = s.repo.Update(ctx, record, repository.UpdateByID(id))
	return err
}

var _ core.CredsBatchStore = (*CredsBatchStore)(nil)
