package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const cutoffParameter = "cutoff"

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
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
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a reap request onto the go-job contract. The
// cutoff travels as an RFC 3339 parameter so any queue backend can
// carry it.
func ToExecutionMessage(msg *core.ReapMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID: core.ReapJobID,
		Parameters: map[string]any{
			cutoffParameter: msg.Cutoff.UTC().Format(time.RFC3339),
		},
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
	}
}

// FromExecutionMessage recovers the reap request from a go-job message.
// Messages for other job ids or with a malformed cutoff yield nil.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.ReapMessage {
	if msg == nil || strings.TrimSpace(msg.JobID) != core.ReapJobID {
		return nil
	}
	out := &core.ReapMessage{
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
	}
	switch raw := msg.Parameters[cutoffParameter].(type) {
	case time.Time:
		out.Cutoff = raw.UTC()
	case string:
		cutoff, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil
		}
		out.Cutoff = cutoff.UTC()
	default:
		return nil
	}
	return out
}

// ToNackOptions maps nack options onto go-job.
func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// FromNackOptions maps go-job nack options back into the core contract.
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

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.ReapMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: reap message is required")
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

func (d *DeliveryAdapter) Message() *core.ReapMessage {
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

// GrantReaper is the slice of the access service the reap worker
// drives.
type GrantReaper interface {
	ReapRevokedGrants(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReapWorker drains reap deliveries from a queue and prunes revoked
// grants. Deliveries that do not decode ack immediately so a poisoned
// message never wedges the queue.
type ReapWorker struct {
	dequeuer core.JobDequeuer
	reaper   GrantReaper
	policy   RetryPolicy
}

func NewReapWorker(dequeuer core.JobDequeuer, reaper GrantReaper, policy RetryPolicy) *ReapWorker {
	return &ReapWorker{dequeuer: dequeuer, reaper: reaper, policy: policy}
}

// ProcessOne pulls a single delivery and executes it, returning the
// number of grants removed.
func (w *ReapWorker) ProcessOne(ctx context.Context) (int64, error) {
	if w == nil || w.dequeuer == nil || w.reaper == nil {
		return 0, fmt.Errorf("gojob: reap worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return 0, err
	}
	msg := delivery.Message()
	if msg == nil {
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			return 0, ackErr
		}
		return 0, fmt.Errorf("gojob: delivery is not a reap message")
	}
	removed, err := w.reaper.ReapRevokedGrants(ctx, msg.Cutoff)
	if err != nil {
		nackErr := delivery.Nack(ctx, core.JobNackOptions{
			Requeue: true,
			Reason:  err.Error(),
		})
		if nackErr != nil {
			return 0, nackErr
		}
		return 0, err
	}
	if err := delivery.Ack(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
)
