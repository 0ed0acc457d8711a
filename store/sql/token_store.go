package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-rewards/core"
)

// TokenStore owns the unspent-token set. Reservation is the no-double-
// spend gate: tokens are marked with the contribution id inside one
// transaction before any network call references them.
type TokenStore struct {
	db   *bun.DB
	repo repository.Repository[*unblindedTokenRecord]
}

func NewTokenStore(db *bun.DB) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TokenStore{
		db:   db,
		repo: repository.NewRepository[*unblindedTokenRecord](db, unblindedTokenHandlers()),
	}, nil
}

func (s *TokenStore) Save(ctx context.Context, in core.SaveTokensInput) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	if len(in.Tokens) == 0 {
		return nil
	}
	records := make([]*unblindedTokenRecord, 0, len(in.Tokens))
	for _, token := range in.Tokens {
		if strings.TrimSpace(token.ID) == "" {
			return fmt.Errorf("sqlstore: token id is required")
		}
		records = append(records, newUnblindedTokenRecord(token))
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&records).Exec(ctx)
		return err
	})
}

func (s *TokenStore) ListLive(ctx context.Context, now time.Time) ([]core.UnblindedToken, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: token store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("(?TableAlias.reserved_by IS NULL OR ?TableAlias.reserved_by = '')").
				Where("(?TableAlias.expires_at IS NULL OR ?TableAlias.expires_at > ?)", now)
		}),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.UnblindedToken, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// ReserveForRedemption sweeps expired tokens, checks that the live
// unreserved set covers amount, and marks the selected tokens. The sweep
// commits on its own so expired deletions stick even when sufficiency
// fails afterwards.
func (s *TokenStore) ReserveForRedemption(ctx context.Context, contributionID string, amount float64, now time.Time) ([]core.UnblindedToken, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: token store is not configured")
	}
	contributionID = strings.TrimSpace(contributionID)
	if contributionID == "" {
		return nil, fmt.Errorf("sqlstore: contribution id is required")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("sqlstore: amount must be positive")
	}

	if _, err := s.db.NewDelete().
		Model((*unblindedTokenRecord)(nil)).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: sweep expired tokens: %w", err)
	}

	var reserved []core.UnblindedToken
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var records []*unblindedTokenRecord
		if err := tx.NewSelect().
			Model(&records).
			Where("(reserved_by IS NULL OR reserved_by = '')").
			Order("id ASC").
			Scan(ctx); err != nil {
			return err
		}

		total := 0.0
		selected := make([]*unblindedTokenRecord, 0, len(records))
		for _, record := range records {
			if total >= amount {
				break
			}
			total += record.Value
			selected = append(selected, record)
		}
		if total < amount {
			return fmt.Errorf("sqlstore: have %v of %v: %w", total, amount, core.ErrNotEnoughFunds)
		}

		ids := make([]string, 0, len(selected))
		for _, record := range selected {
			ids = append(ids, record.ID)
		}
		sort.Strings(ids)

		result, err := tx.NewUpdate().
			Model((*unblindedTokenRecord)(nil)).
			Set("reserved_by = ?", contributionID).
			Where("id IN (?)", bun.In(ids)).
			Where("(reserved_by IS NULL OR reserved_by = '')").
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return fmt.Errorf("sqlstore: reserved %d of %d tokens: %w", affected, len(ids), core.ErrTokenAlreadyReserved)
		}

		reserved = make([]core.UnblindedToken, 0, len(selected))
		for _, record := range selected {
			token := record.toDomain()
			token.ReservedBy = contributionID
			reserved = append(reserved, token)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

func (s *TokenStore) ReleaseReservation(ctx context.Context, contributionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*unblindedTokenRecord)(nil)).
		Set("reserved_by = ''").
		Where("reserved_by = ?", strings.TrimSpace(contributionID)).
		Exec(ctx)
	return err
}

func (s *TokenStore) FinalizeRedemption(ctx context.Context, contributionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*unblindedTokenRecord)(nil)).
		Where("reserved_by = ?", strings.TrimSpace(contributionID)).
		Exec(ctx)
	return err
}

var _ core.TokenStore = (*TokenStore)(nil)
