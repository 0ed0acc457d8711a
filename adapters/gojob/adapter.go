// Package gojob bridges the rewards polling loops onto go-job queues.
// Credential signing and settlement confirmation are asynchronous at the
// custodian; the adapter turns their retry signals into queue nacks.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-rewards/core"
)

const (
	JobIDCredentialsPoll = "rewards.credentials.poll"
	JobIDSettlementPoll  = "rewards.contribution.poll"
	JobIDRedeem          = "rewards.contribution.redeem"
)

const (
	defaultShortDelay = 30 * time.Second
	defaultRetryDelay = 5 * time.Minute
)

// RetryPolicy bounds requeue behavior so a custodian that never settles
// cannot hold a delivery in the queue forever.
type RetryPolicy struct {
	MaxAttempts     int
	ShortDelay      time.Duration
	RetryDelay      time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NackForSignal maps a polling outcome to queue nack options.
func (p RetryPolicy) NackForSignal(signal core.RetrySignal, reason string) core.JobNackOptions {
	out := core.JobNackOptions{Reason: strings.TrimSpace(reason)}
	switch signal {
	case core.RetrySignalShort:
		out.Requeue = true
		out.Delay = p.ShortDelay
		if out.Delay <= 0 {
			out.Delay = defaultShortDelay
		}
	case core.RetrySignalRetry:
		out.Requeue = true
		out.Delay = p.RetryDelay
		if out.Delay <= 0 {
			out.Delay = defaultRetryDelay
		}
	default:
		out.Requeue = false
	}
	return out
}

// NormalizeAttempt enforces the retry bounds for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	return out
}

// ToExecutionMessage maps a rewards runtime message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the rewards contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// PollFunc is one polling pass over an id; the signal says when to come
// back, a non-nil error is terminal for the delivery.
type PollFunc func(ctx context.Context, id string) (core.RetrySignal, error)

// PollWorker acknowledges or requeues one delivery based on the retry
// signal the rewards poll returns.
type PollWorker struct {
	poll     PollFunc
	policy   RetryPolicy
	paramKey string
}

func NewPollWorker(poll PollFunc, policy RetryPolicy, paramKey string) *PollWorker {
	key := strings.TrimSpace(paramKey)
	if key == "" {
		key = "id"
	}
	return &PollWorker{poll: poll, policy: policy, paramKey: key}
}

func (w *PollWorker) Handle(ctx context.Context, delivery core.JobDelivery) error {
	if w == nil || w.poll == nil {
		return fmt.Errorf("gojob: poll worker is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{Reason: "missing message", DeadLetter: true})
	}
	id, _ := msg.Parameters[w.paramKey].(string)
	if strings.TrimSpace(id) == "" {
		return delivery.Nack(ctx, core.JobNackOptions{Reason: "missing " + w.paramKey, DeadLetter: true})
	}

	signal, err := w.poll(ctx, id)
	if err != nil {
		return delivery.Nack(ctx, core.JobNackOptions{Reason: err.Error(), DeadLetter: true})
	}
	if signal == core.RetrySignalNone {
		return delivery.Ack(ctx)
	}
	return delivery.Nack(ctx, w.policy.NackForSignal(signal, "poll pending"))
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
)
