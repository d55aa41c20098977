package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crosspost/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// RetryPolicy bounds how a failed delivery is handed back to go-job.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// PublishRetryPolicy never requeues: publishing is best effort and a failed
// post goes to the dead letter queue for inspection.
func PublishRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, DeadLetterOnMax: true}
}

// NormalizeAttempt applies the policy to a nack issued on the given attempt.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		out.DeadLetter = out.DeadLetter || p.DeadLetterOnMax
		return out
	}
	if out.DeadLetter {
		out.Requeue = false
		return out
	}
	out.Requeue = true
	return out
}

func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
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

// PublishQueue lets AsyncPublishDispatcher run on any go-job queue backend.
// After Close, a failing Dequeue reports core.ErrJobQueueClosed so the
// dispatcher workers exit.
type PublishQueue struct {
	enqueuer queue.Enqueuer
	dequeuer queue.Dequeuer
	policy   RetryPolicy

	closeOnce sync.Once
	closed    context.Context
	markClose context.CancelFunc
}

// NewPublishQueue wraps go-job queues for the publish dispatcher. A zero
// RetryPolicy means PublishRetryPolicy.
func NewPublishQueue(enqueuer queue.Enqueuer, dequeuer queue.Dequeuer, policy RetryPolicy) (*PublishQueue, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if policy == (RetryPolicy{}) {
		policy = PublishRetryPolicy()
	}
	closed, markClose := context.WithCancel(context.Background())
	return &PublishQueue{
		enqueuer:  enqueuer,
		dequeuer:  dequeuer,
		policy:    policy,
		closed:    closed,
		markClose: markClose,
	}, nil
}

func (q *PublishQueue) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if q == nil || q.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return q.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

func (q *PublishQueue) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if q == nil || q.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if q.closed != nil {
		stop := context.AfterFunc(q.closed, func() {
			if !closesItself(q.dequeuer) {
				cancel()
			}
		})
		defer stop()
	}

	delivery, err := q.dequeuer.Dequeue(ctx)
	if err != nil {
		if q.closed != nil && q.closed.Err() != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrJobQueueClosed, err)
		}
		return nil, err
	}
	if delivery == nil {
		return nil, nil
	}
	return &DeliveryAdapter{delivery: delivery, policy: q.policy, attempt: 1}, nil
}

// Close forwards to the backend when it can be closed. Backends without a
// Close method keep undelivered messages; pending Dequeue calls are released.
func (q *PublishQueue) Close() {
	if q == nil {
		return
	}
	q.closeOnce.Do(func() {
		if q.markClose != nil {
			q.markClose()
		}
		switch closer := q.dequeuer.(type) {
		case interface{ Close() }:
			closer.Close()
		case interface{ Close() error }:
			_ = closer.Close()
		}
	})
}

func closesItself(dequeuer queue.Dequeuer) bool {
	switch dequeuer.(type) {
	case interface{ Close() }, interface{ Close() error }:
		return true
	}
	return false
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
	attempt  int
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy, attempt: 1}
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
	if d == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.NackForAttempt(ctx, opts, d.attempt)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Nack(ctx, ToNackOptions(d.policy.NormalizeAttempt(opts, attempt)))
}

// WorkerHookAdapter exposes a dispatcher hook to go-job workers.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, fromWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, fromWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, fromWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, fromWorkerEvent(event))
}

// DispatcherHook feeds publish dispatcher events into existing go-job worker
// hooks, so the same instrumentation covers both.
type DispatcherHook struct {
	hook worker.Hook
}

func NewDispatcherHook(hook worker.Hook) *DispatcherHook {
	return &DispatcherHook{hook: hook}
}

func (h *DispatcherHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnStart(ctx, toWorkerEvent(event))
}

func (h *DispatcherHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnSuccess(ctx, toWorkerEvent(event))
}

func (h *DispatcherHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnFailure(ctx, toWorkerEvent(event))
}

func (h *DispatcherHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnRetry(ctx, toWorkerEvent(event))
}

func fromWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func toWorkerEvent(event core.JobWorkerEvent) worker.Event {
	return worker.Event{
		Message:   ToExecutionMessage(event.Message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
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
	_ core.PublishQueue  = (*PublishQueue)(nil)
	_ core.JobDelivery   = (*DeliveryAdapter)(nil)
	_ worker.Hook        = (*WorkerHookAdapter)(nil)
	_ core.JobWorkerHook = (*DispatcherHook)(nil)
)
