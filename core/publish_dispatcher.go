package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	PublishJobID          = "crosspost.publish"
	publishParamUserID    = "user_id"
	publishParamBody      = "body"
	defaultPublishWorkers = 4
	defaultPublishTimeout = 20 * time.Second
	dequeueErrorBackoff   = 100 * time.Millisecond
)

type PublishDispatcherConfig struct {
	Workers int
	Timeout time.Duration
}

// PublishQueue is the job transport between Dispatch and the workers.
type PublishQueue interface {
	JobEnqueuer
	JobDequeuer
}

type queueCloser interface {
	Close()
}

// AsyncPublishDispatcher schedules publish directives on a fixed pool of
// workers. Dispatch never performs network I/O against the remote service.
// Publishing is best effort: failures are logged and not retried.
type AsyncPublishDispatcher struct {
	links     LinkReader
	publisher Publisher
	queue     PublishQueue
	hooks     []JobWorkerHook
	obs       observer
	config    PublishDispatcherConfig

	mu            sync.Mutex
	started       bool
	closing       bool
	stopDequeue   context.CancelFunc
	abortInFlight context.CancelFunc
	wg            sync.WaitGroup
	Now           func() time.Time
}

type PublishDispatcherOption func(*AsyncPublishDispatcher)

func WithDispatcherHooks(hooks ...JobWorkerHook) PublishDispatcherOption {
	return func(d *AsyncPublishDispatcher) {
		for _, hook := range hooks {
			if hook != nil {
				d.hooks = append(d.hooks, hook)
			}
		}
	}
}

func WithDispatcherLogger(logger Logger) PublishDispatcherOption {
	return func(d *AsyncPublishDispatcher) {
		if logger != nil {
			d.obs.logger = logger
		}
	}
}

func WithDispatcherMetrics(recorder MetricsRecorder) PublishDispatcherOption {
	return func(d *AsyncPublishDispatcher) {
		if recorder != nil {
			d.obs.metrics = recorder
		}
	}
}

func NewAsyncPublishDispatcher(
	links LinkReader,
	publisher Publisher,
	queue PublishQueue,
	config PublishDispatcherConfig,
	opts ...PublishDispatcherOption,
) (*AsyncPublishDispatcher, error) {
	if links == nil {
		return nil, fmt.Errorf("core: publish dispatcher link reader is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("core: publish dispatcher publisher is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("core: publish dispatcher queue is required")
	}
	if config.Workers <= 0 {
		config.Workers = defaultPublishWorkers
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultPublishTimeout
	}
	d := &AsyncPublishDispatcher{
		links:     links,
		publisher: publisher,
		queue:     queue,
		config:    config,
		obs:       observer{metrics: NopMetricsRecorder{}},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Start launches the worker pool. It is safe to call more than once.
func (d *AsyncPublishDispatcher) Start(ctx context.Context) error {
	if d == nil {
		return fmt.Errorf("core: publish dispatcher is not configured")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return fmt.Errorf("core: publish dispatcher is closed")
	}
	if d.started {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	dequeueCtx, stop := context.WithCancel(ctx)
	d.abortInFlight = abort
	d.stopDequeue = stop
	d.started = true
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(dequeueCtx, runCtx)
	}
	return nil
}

// Dispatch queues a publish for userID and returns without waiting for it.
// It reports whether the publish was queued; a missing link or a full queue
// drops the directive with a warning.
func (d *AsyncPublishDispatcher) Dispatch(ctx context.Context, userID string, payload PublishPayload) (bool, error) {
	if d == nil {
		return false, fmt.Errorf("core: publish dispatcher is not configured")
	}
	startedAt := time.Now()
	userID = strings.TrimSpace(userID)
	fields := map[string]any{
		"user_id":        userID,
		"directive_kind": string(DirectivePublish),
	}
	if userID == "" {
		d.obs.warn(ctx, "publish directive dropped: user id is empty", fields)
		return false, nil
	}

	d.mu.Lock()
	closing := d.closing
	d.mu.Unlock()
	if closing {
		d.obs.warn(ctx, "publish directive dropped: dispatcher is closed", fields)
		return false, nil
	}

	if _, ok, err := d.links.GetAccessLink(ctx, userID); err != nil {
		d.obs.observeOperation(ctx, startedAt, "dispatch_publish", err, fields)
		return false, nil
	} else if !ok {
		d.obs.warn(ctx, "publish directive dropped: user has no service link", fields)
		return false, nil
	}

	msg := &JobExecutionMessage{
		JobID:          PublishJobID,
		IdempotencyKey: uuid.NewString(),
		Parameters: map[string]any{
			publishParamUserID: userID,
			publishParamBody:   payload.BodyText,
		},
	}
	if err := d.queue.Enqueue(ctx, msg); err != nil {
		fields["error"] = err.Error()
		d.obs.warn(ctx, "publish directive dropped: enqueue failed", fields)
		return false, nil
	}
	fields["job_id"] = msg.IdempotencyKey
	d.obs.observeOperation(ctx, startedAt, "dispatch_publish", nil, fields)
	return true, nil
}

// Close stops accepting work and waits for queued and in-flight publishes.
// When ctx ends first, in-flight publishes are cancelled.
func (d *AsyncPublishDispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	started := d.started
	d.mu.Unlock()

	if closer, ok := d.queue.(queueCloser); ok {
		closer.Close()
	} else if started {
		d.stopDequeue()
	}
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		d.abortInFlight()
		d.stopDequeue()
		return nil
	case <-ctx.Done():
		d.stopDequeue()
		d.abortInFlight()
		<-done
		return ctx.Err()
	}
}

func (d *AsyncPublishDispatcher) worker(dequeueCtx context.Context, runCtx context.Context) {
	defer d.wg.Done()
	for {
		delivery, err := d.queue.Dequeue(dequeueCtx)
		if err != nil {
			if errors.Is(err, ErrJobQueueClosed) || dequeueCtx.Err() != nil {
				return
			}
			d.obs.log(runCtx, "error", "publish worker dequeue failed", map[string]any{"error": err.Error()})
			select {
			case <-time.After(dequeueErrorBackoff):
			case <-dequeueCtx.Done():
				return
			}
			continue
		}
		if delivery == nil {
			continue
		}
		d.process(runCtx, delivery)
	}
}

func (d *AsyncPublishDispatcher) process(ctx context.Context, delivery JobDelivery) {
	msg := delivery.Message()
	event := JobWorkerEvent{
		Message:   msg,
		Attempt:   1,
		StartedAt: d.now(),
	}
	d.fireHooks(event, func(hook JobWorkerHook, ev JobWorkerEvent) { hook.OnStart(ctx, ev) })

	err := d.runPublish(ctx, msg)
	event.Duration = d.now().Sub(event.StartedAt)
	event.Err = err
	if err != nil {
		d.fireHooks(event, func(hook JobWorkerHook, ev JobWorkerEvent) { hook.OnFailure(ctx, ev) })
		if nackErr := delivery.Nack(ctx, JobNackOptions{Reason: err.Error()}); nackErr != nil {
			d.obs.log(ctx, "error", "publish job nack failed", map[string]any{"error": nackErr.Error()})
		}
		return
	}
	d.fireHooks(event, func(hook JobWorkerHook, ev JobWorkerEvent) { hook.OnSuccess(ctx, ev) })
	if ackErr := delivery.Ack(ctx); ackErr != nil {
		d.obs.log(ctx, "error", "publish job ack failed", map[string]any{"error": ackErr.Error()})
	}
}

func (d *AsyncPublishDispatcher) runPublish(ctx context.Context, msg *JobExecutionMessage) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"directive_kind": string(DirectivePublish)}
	defer func() {
		d.obs.observeOperation(ctx, startedAt, "publish", err, fields)
	}()

	if msg == nil || msg.JobID != PublishJobID {
		return fmt.Errorf("core: unsupported job message")
	}
	userID := strings.TrimSpace(stringParam(msg.Parameters, publishParamUserID))
	fields["user_id"] = userID
	fields["job_id"] = msg.IdempotencyKey
	if userID == "" {
		return NewBadInputError("core: publish job user id is required")
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	link, ok, err := d.links.GetAccessLink(publishCtx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return NewLinkNotFoundError(userID)
	}
	fields["external_account_id"] = link.ExternalAccountID
	return d.publisher.Publish(publishCtx, link, PublishPayload{
		BodyText: stringParam(msg.Parameters, publishParamBody),
	})
}

func (d *AsyncPublishDispatcher) fireHooks(event JobWorkerEvent, call func(JobWorkerHook, JobWorkerEvent)) {
	for _, hook := range d.hooks {
		call(hook, event)
	}
}

func (d *AsyncPublishDispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func stringParam(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	switch typed := params[key].(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
