package outbox

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process Queue for single-binary deployments and tests.
type MemoryQueue struct {
	items     chan Item
	closeOnce sync.Once
	done      chan struct{}
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1000
	}

	return &MemoryQueue{items: make(chan Item, capacity), done: make(chan struct{})}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, item Item) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Item, error) {
	select {
	case item := <-q.items:
		return item, nil
	case <-q.done:
		return Item{}, ErrQueueClosed
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Len reports the number of queued items.
func (q *MemoryQueue) Len() int {
	return len(q.items)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })

	return nil
}
