// Package sync sweeps unfinished rewards work back onto the job queue.
// Credential batches stuck before signing and settlements awaiting a
// provider status check are re-enqueued with deterministic idempotency
// keys, so a sweep that overlaps live polling never doubles work.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-rewards/core"
)

const (
	defaultCredentialsJobID = "rewards.credentials.poll"
	defaultSettlementJobID  = "rewards.contribution.poll"
)

type Reconciler struct {
	batches          core.CredsBatchStore
	transactions     core.TransactionStore
	enqueuer         core.JobEnqueuer
	logger           core.Logger
	credentialsJobID string
	settlementJobID  string
	now              func() time.Time
}

type Dependencies struct {
	Batches      core.CredsBatchStore
	Transactions core.TransactionStore
	Enqueuer     core.JobEnqueuer
	Logger       core.Logger

	// CredentialsJobID and SettlementJobID override the queue routing
	// keys; zero values use the poll worker defaults.
	CredentialsJobID string
	SettlementJobID  string
	Now              func() time.Time
}

func NewReconciler(deps Dependencies) (*Reconciler, error) {
	if deps.Batches == nil {
		return nil, fmt.Errorf("sync: creds batch store is required")
	}
	if deps.Transactions == nil {
		return nil, fmt.Errorf("sync: transaction store is required")
	}
	if deps.Enqueuer == nil {
		return nil, fmt.Errorf("sync: job enqueuer is required")
	}

	reconciler := &Reconciler{
		batches:          deps.Batches,
		transactions:     deps.Transactions,
		enqueuer:         deps.Enqueuer,
		logger:           glog.Ensure(deps.Logger),
		credentialsJobID: deps.CredentialsJobID,
		settlementJobID:  deps.SettlementJobID,
		now:              deps.Now,
	}
	if reconciler.credentialsJobID == "" {
		reconciler.credentialsJobID = defaultCredentialsJobID
	}
	if reconciler.settlementJobID == "" {
		reconciler.settlementJobID = defaultSettlementJobID
	}
	if reconciler.now == nil {
		reconciler.now = func() time.Time { return time.Now().UTC() }
	}
	return reconciler, nil
}

// SweepReport counts what one pass re-enqueued.
type SweepReport struct {
	CredentialBatches int
	Settlements       int
}

// Sweep enqueues one poll job per unfinished credential batch and per
// submitted settlement. Enqueue failures are collected, not fatal; the
// next sweep retries whatever was skipped.
func (r *Reconciler) Sweep(ctx context.Context) (SweepReport, error) {
	if r == nil {
		return SweepReport{}, fmt.Errorf("sync: reconciler is not configured")
	}

	var report SweepReport
	var errs []error

	for _, status := range []core.CredsBatchStatus{core.CredsBatchStatusBlinded, core.CredsBatchStatusSigned} {
		batches, err := r.batches.ListByStatus(ctx, status)
		if err != nil {
			errs = append(errs, fmt.Errorf("sync: list %s batches: %w", status, err))
			continue
		}
		for _, batch := range batches {
			if err := r.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
				JobID:          r.credentialsJobID,
				Parameters:     map[string]any{"batch_id": batch.ID},
				IdempotencyKey: "credentials.poll:" + batch.ID,
				DedupPolicy:    "drop",
			}); err != nil {
				errs = append(errs, fmt.Errorf("sync: enqueue credentials poll for %s: %w", batch.ID, err))
				continue
			}
			report.CredentialBatches++
		}
	}

	submitted, err := r.transactions.ListByStatus(ctx, core.TransactionStatusSubmitted)
	if err != nil {
		errs = append(errs, fmt.Errorf("sync: list submitted transactions: %w", err))
	}
	for _, tx := range submitted {
		if err := r.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
			JobID:          r.settlementJobID,
			Parameters:     map[string]any{"transaction_id": tx.TransactionID},
			IdempotencyKey: "contribution.poll:" + tx.TransactionID,
			DedupPolicy:    "drop",
		}); err != nil {
			errs = append(errs, fmt.Errorf("sync: enqueue settlement poll for %s: %w", tx.TransactionID, err))
			continue
		}
		report.Settlements++
	}

	if len(errs) > 0 {
		r.logger.Error("reconciler sweep finished with errors",
			"enqueued_batches", report.CredentialBatches,
			"enqueued_settlements", report.Settlements,
			"errors", len(errs),
		)
		return report, errors.Join(errs...)
	}
	r.logger.Debug("reconciler sweep finished",
		"enqueued_batches", report.CredentialBatches,
		"enqueued_settlements", report.Settlements,
	)
	return report, nil
}

// Run sweeps on a fixed interval until ctx is done. The first sweep fires
// immediately.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if r == nil {
		return fmt.Errorf("sync: reconciler is not configured")
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil {
			r.logger.Error("reconciler sweep failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
