// Package inbound consumes queued rewards jobs and routes each delivery
// to the worker registered for its job id. Deliveries carrying an
// idempotency key with the drop policy are acknowledged without running
// the handler when the key was already seen inside the claim window.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-rewards/core"
)

const DedupPolicyDrop = "drop"

const defaultClaimTTL = 10 * time.Minute

// Handler processes one job delivery. The handler owns the ack/nack
// decision; the dispatcher only acks deliveries it drops as duplicates.
type Handler interface {
	Handle(ctx context.Context, delivery core.JobDelivery) error
}

type HandlerFunc func(ctx context.Context, delivery core.JobDelivery) error

func (f HandlerFunc) Handle(ctx context.Context, delivery core.JobDelivery) error {
	return f(ctx, delivery)
}

type Dispatcher struct {
	logger   core.Logger
	claimTTL time.Duration
	now      func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	claims   map[string]time.Time
}

type Option func(*Dispatcher)

func WithClaimTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.claimTTL = ttl
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDispatcher(opts ...Option) *Dispatcher {
	dispatcher := &Dispatcher{
		claimTTL: defaultClaimTTL,
		now:      func() time.Time { return time.Now().UTC() },
		handlers: map[string]Handler{},
		claims:   map[string]time.Time{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(dispatcher)
	}
	dispatcher.logger = glog.Ensure(dispatcher.logger)
	return dispatcher
}

func (d *Dispatcher) Register(jobID string, handler Handler) error {
	if d == nil {
		return dispatchInternal("inbound: dispatcher is nil", nil)
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return dispatchBadInput("inbound: job id is required", nil)
	}
	if handler == nil {
		return dispatchBadInput("inbound: handler is nil", map[string]any{"job_id": jobID})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[jobID]; exists {
		return dispatchError(
			fmt.Sprintf("inbound: handler already registered for job %q", jobID),
			goerrors.CategoryConflict,
			http.StatusConflict,
			map[string]any{"job_id": jobID},
		)
	}
	d.handlers[jobID] = handler
	return nil
}

// Dispatch routes one delivery. Unknown job ids dead-letter; duplicate
// drop-policy deliveries ack without touching the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery core.JobDelivery) error {
	if d == nil {
		return dispatchInternal("inbound: dispatcher is nil", nil)
	}
	if delivery == nil {
		return dispatchBadInput("inbound: delivery is required", nil)
	}
	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) == "" {
		nackErr := delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "missing job execution message",
		})
		return errors.Join(dispatchBadInput("inbound: delivery has no job id", nil), nackErr)
	}
	jobID := strings.TrimSpace(msg.JobID)

	if d.isDuplicate(msg) {
		d.logger.Debug("dropping duplicate job delivery",
			"job_id", jobID,
			"idempotency_key", msg.IdempotencyKey,
		)
		return delivery.Ack(ctx)
	}

	handler := d.handlerFor(jobID)
	if handler == nil {
		nackErr := delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "no handler registered for job " + jobID,
		})
		return errors.Join(
			dispatchError(
				fmt.Sprintf("inbound: no handler registered for job %q", jobID),
				goerrors.CategoryNotFound,
				http.StatusNotFound,
				map[string]any{"job_id": jobID},
			),
			nackErr,
		)
	}

	if err := handler.Handle(ctx, delivery); err != nil {
		d.forgetClaim(msg)
		return dispatchWrapError(err, "inbound: handler execution failed", map[string]any{"job_id": jobID})
	}
	return nil
}

// Run consumes deliveries until ctx is done. Dispatch errors are logged
// and do not stop the loop; dequeue errors do.
func (d *Dispatcher) Run(ctx context.Context, dequeuer core.JobDequeuer) error {
	if d == nil {
		return dispatchInternal("inbound: dispatcher is nil", nil)
	}
	if dequeuer == nil {
		return dispatchBadInput("inbound: dequeuer is required", nil)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return dispatchWrapError(err, "inbound: dequeue failed", nil)
		}
		if err := d.Dispatch(ctx, delivery); err != nil {
			d.logger.Error("job dispatch failed", "error", err.Error())
		}
	}
}

// isDuplicate claims the idempotency key. The claim is optimistic; a
// handler failure releases it so the redelivery can run.
func (d *Dispatcher) isDuplicate(msg *core.JobExecutionMessage) bool {
	if msg.IdempotencyKey == "" || !strings.EqualFold(strings.TrimSpace(msg.DedupPolicy), DedupPolicyDrop) {
		return false
	}
	key := msg.JobID + ":" + msg.IdempotencyKey
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	for existing, expiresAt := range d.claims {
		if !now.Before(expiresAt) {
			delete(d.claims, existing)
		}
	}
	if expiresAt, seen := d.claims[key]; seen && now.Before(expiresAt) {
		return true
	}
	d.claims[key] = now.Add(d.claimTTL)
	return false
}

func (d *Dispatcher) forgetClaim(msg *core.JobExecutionMessage) {
	if msg == nil || msg.IdempotencyKey == "" {
		return
	}
	d.mu.Lock()
	delete(d.claims, msg.JobID+":"+msg.IdempotencyKey)
	d.mu.Unlock()
}

func (d *Dispatcher) handlerFor(jobID string) Handler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handlers[jobID]
}
