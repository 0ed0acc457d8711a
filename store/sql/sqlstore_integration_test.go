package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-rewards/core"
	rewardsmigrations "github.com/goliatone/go-rewards/migrations"
	sqlstore "github.com/goliatone/go-rewards/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-rewards-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{
		"rewards_creds_batches",
		"rewards_unblinded_tokens",
		"rewards_external_transactions",
	} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestCredsBatchStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	batches := factory.CredsBatchStore()

	created, err := batches.Create(ctx, core.CredsBatch{
		ID:           "batch-1",
		OrderID:      "order-1",
		IssuerID:     "issuer-1",
		Creds:        []string{"cred-1", "cred-2"},
		BlindedCreds: []string{"blinded-1", "blinded-2"},
		TokenValue:   0.25,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if created.ID != "batch-1" {
		t.Fatalf("caller-owned batch id was replaced: %q", created.ID)
	}
	if created.Status != core.CredsBatchStatusBlinded {
		t.Fatalf("expected blinded status, got %q", created.Status)
	}

	if _, err := batches.Create(ctx, core.CredsBatch{
		ID:           "batch-1",
		OrderID:      "order-1",
		IssuerID:     "issuer-1",
		Creds:        []string{"cred-1"},
		BlindedCreds: []string{"blinded-1"},
		TokenValue:   0.25,
	}); err == nil {
		t.Fatalf("expected duplicate batch id to be refused")
	}

	pending, err := batches.ListByStatus(ctx, core.CredsBatchStatusBlinded)
	if err != nil {
		t.Fatalf("list blinded batches: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "batch-1" {
		t.Fatalf("expected batch-1 pending, got %+v", pending)
	}
	if len(pending[0].Creds) != 2 || pending[0].Creds[0] != "cred-1" {
		t.Fatalf("raw creds did not survive round trip: %+v", pending[0].Creds)
	}

	if err := batches.MarkSigned(ctx, "batch-1", []string{"signed-1", "signed-2"}, "proof", "key-1"); err != nil {
		t.Fatalf("mark signed: %v", err)
	}
	if err := batches.MarkSigned(ctx, "batch-1", []string{"signed-1"}, "proof", "key-1"); err == nil {
		t.Fatalf("expected second MarkSigned to be refused")
	}

	signed, err := batches.Get(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if signed.Status != core.CredsBatchStatusSigned {
		t.Fatalf("expected signed status, got %q", signed.Status)
	}
	if signed.PublicKey != "key-1" || len(signed.SignedCreds) != 2 {
		t.Fatalf("signed payload not persisted: %+v", signed)
	}

	if err := batches.MarkFinished(ctx, "batch-1"); err != nil {
		t.Fatalf("mark finished: %v", err)
	}
	finished, err := batches.Get(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get finished batch: %v", err)
	}
	if finished.Status != core.CredsBatchStatusFinished {
		t.Fatalf("expected finished status, got %q", finished.Status)
	}
}

func TestTokenStore_ReserveReleaseFinalize(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	tokens := factory.TokenStore()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := tokens.Save(ctx, core.SaveTokensInput{
		BatchID: "batch-1",
		Tokens: []core.UnblindedToken{
			{ID: "token-1", BatchID: "batch-1", TokenValue: "t1", PublicKey: "key-1", Value: 0.25, ExpiresAt: now.Add(-time.Hour)},
			{ID: "token-2", BatchID: "batch-1", TokenValue: "t2", PublicKey: "key-1", Value: 0.25, ExpiresAt: now.Add(time.Hour)},
			{ID: "token-3", BatchID: "batch-1", TokenValue: "t3", PublicKey: "key-1", Value: 0.25, ExpiresAt: now.Add(time.Hour)},
		},
	}); err != nil {
		t.Fatalf("save tokens: %v", err)
	}

	live, err := tokens.ListLive(ctx, now)
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected 2 live tokens, got %d", len(live))
	}

	reserved, err := tokens.ReserveForRedemption(ctx, "contribution-1", 0.5, now)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(reserved) != 2 {
		t.Fatalf("expected 2 reserved tokens, got %d", len(reserved))
	}
	for _, token := range reserved {
		if token.ReservedBy != "contribution-1" {
			t.Fatalf("token %s not marked reserved: %+v", token.ID, token)
		}
	}

	// The expired token was swept and the live pool is fully reserved.
	if _, err := tokens.ReserveForRedemption(ctx, "contribution-2", 0.25, now); !errors.Is(err, core.ErrNotEnoughFunds) {
		t.Fatalf("expected ErrNotEnoughFunds for second reservation, got %v", err)
	}

	if err := tokens.ReleaseReservation(ctx, "contribution-1"); err != nil {
		t.Fatalf("release reservation: %v", err)
	}
	live, err = tokens.ListLive(ctx, now)
	if err != nil {
		t.Fatalf("list live after release: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected released tokens back in the live pool, got %d", len(live))
	}

	if _, err := tokens.ReserveForRedemption(ctx, "contribution-3", 0.5, now); err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if err := tokens.FinalizeRedemption(ctx, "contribution-3"); err != nil {
		t.Fatalf("finalize redemption: %v", err)
	}
	live, err = tokens.ListLive(ctx, now)
	if err != nil {
		t.Fatalf("list live after finalize: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("expected empty pool after finalize, got %d tokens", len(live))
	}
}

func TestTokenStore_SweepPersistsOnInsufficiency(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	tokens := factory.TokenStore()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := tokens.Save(ctx, core.SaveTokensInput{
		BatchID: "batch-1",
		Tokens: []core.UnblindedToken{
			{ID: "token-1", BatchID: "batch-1", TokenValue: "t1", PublicKey: "key-1", Value: 2, ExpiresAt: now.Add(-time.Minute)},
			{ID: "token-2", BatchID: "batch-1", TokenValue: "t2", PublicKey: "key-1", Value: 0.25, ExpiresAt: now.Add(time.Hour)},
		},
	}); err != nil {
		t.Fatalf("save tokens: %v", err)
	}

	if _, err := tokens.ReserveForRedemption(ctx, "contribution-1", 1, now); !errors.Is(err, core.ErrNotEnoughFunds) {
		t.Fatalf("expected ErrNotEnoughFunds, got %v", err)
	}

	// The failed reservation still deleted the expired token.
	var count int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM rewards_unblinded_tokens",
	).Scan(ctx, &count); err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the live token to remain, got %d rows", count)
	}
}

func TestTransactionStore_RefusesDuplicates(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	transactions := factory.TransactionStore()

	created, err := transactions.Insert(ctx, core.ExternalTransaction{
		TransactionID:  "tx-1",
		ContributionID: "contribution-1",
		Provider:       "uphold",
		Destination:    "card-1",
		Amount:         5,
		Status:         core.TransactionStatusCreated,
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	if created.Status != core.TransactionStatusCreated {
		t.Fatalf("unexpected status %q", created.Status)
	}

	if _, err := transactions.Insert(ctx, core.ExternalTransaction{
		TransactionID:  "tx-1",
		ContributionID: "contribution-other",
		Provider:       "uphold",
		Destination:    "card-1",
		Amount:         5,
		Status:         core.TransactionStatusCreated,
	}); !errors.Is(err, core.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction id to be refused, got %v", err)
	}

	if _, err := transactions.Insert(ctx, core.ExternalTransaction{
		TransactionID:  "tx-2",
		ContributionID: "contribution-1",
		Provider:       "uphold",
		Destination:    "card-1",
		Amount:         5,
		Status:         core.TransactionStatusCreated,
	}); !errors.Is(err, core.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate contribution id to be refused, got %v", err)
	}

	if err := transactions.MarkSubmitted(ctx, "tx-1", "provider-tx-9"); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	submitted, err := transactions.GetByContribution(ctx, "contribution-1")
	if err != nil {
		t.Fatalf("get by contribution: %v", err)
	}
	if submitted.Status != core.TransactionStatusSubmitted || submitted.ProviderTxID != "provider-tx-9" {
		t.Fatalf("submission not persisted: %+v", submitted)
	}

	if err := transactions.UpdateStatus(ctx, "tx-1", core.TransactionStatusCompleted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	completed, err := transactions.Get(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if completed.Status != core.TransactionStatusCompleted {
		t.Fatalf("expected completed, got %q", completed.Status)
	}

	if _, err := transactions.GetByContribution(ctx, "contribution-missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for missing contribution, got %v", err)
	}
	if _, err := transactions.Get(ctx, "tx-missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for missing transaction, got %v", err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:rewards-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = rewardsmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != rewardsmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, rewardsmigrations.WithValidationTargets(rewardsmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
