package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const defaultJobQueueSize = 64

var (
	ErrJobQueueFull   = errors.New("core: job queue is full")
	ErrJobQueueClosed = errors.New("core: job queue is closed")
)

// MemoryJobQueue is a bounded in-process queue. Enqueue never blocks: a full
// queue rejects the message.
type MemoryJobQueue struct {
	mu     sync.Mutex
	closed bool
	items  chan *JobExecutionMessage
}

func NewMemoryJobQueue(size int) *MemoryJobQueue {
	if size <= 0 {
		size = defaultJobQueueSize
	}
	return &MemoryJobQueue{items: make(chan *JobExecutionMessage, size)}
}

func (q *MemoryJobQueue) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("core: job queue is not configured")
	}
	if msg == nil || strings.TrimSpace(msg.JobID) == "" {
		return fmt.Errorf("core: job id is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrJobQueueClosed
	}
	select {
	case q.items <- cloneJobMessage(msg):
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Dequeue blocks until a message is available, ctx is done, or the queue is
// closed and drained.
func (q *MemoryJobQueue) Dequeue(ctx context.Context) (JobDelivery, error) {
	if q == nil {
		return nil, fmt.Errorf("core: job queue is not configured")
	}
	select {
	case msg, ok := <-q.items:
		if !ok {
			return nil, ErrJobQueueClosed
		}
		return &memoryJobDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryJobQueue) Close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

func (q *MemoryJobQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

type memoryJobDelivery struct {
	queue *MemoryJobQueue
	msg   *JobExecutionMessage
	mu    sync.Mutex
	done  bool
}

func (d *memoryJobDelivery) Message() *JobExecutionMessage {
	return d.msg
}

func (d *memoryJobDelivery) Ack(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.done = true
	return nil
}

func (d *memoryJobDelivery) Nack(ctx context.Context, opts JobNackOptions) error {
	d.mu.Lock()
	if d.done {
		d.mu.Unlock()
		return nil
	}
	d.done = true
	d.mu.Unlock()
	if opts.Requeue && !opts.DeadLetter {
		return d.queue.Enqueue(ctx, d.msg)
	}
	return nil
}

func cloneJobMessage(msg *JobExecutionMessage) *JobExecutionMessage {
	if msg == nil {
		return nil
	}
	copied := *msg
	if msg.Parameters != nil {
		copied.Parameters = make(map[string]any, len(msg.Parameters))
		for key, value := range msg.Parameters {
			copied.Parameters[key] = value
		}
	}
	return &copied
}
