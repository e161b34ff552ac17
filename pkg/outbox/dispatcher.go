package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
)

const requeueTimeout = 5 * time.Second

// StatusUpdater records the delivery outcome of a message.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status models.MessageStatus) (*models.Message, error)
}

// Dispatcher drains a Queue into a Sender, one item at a time, honoring
// each item's NotBefore.
type Dispatcher struct {
	queue   Queue
	sender  Sender
	status  StatusUpdater
	logger  *slog.Logger
	clock   func() time.Time
	onState func(ctx context.Context, msg *models.Message)
}

type DispatcherOption func(*Dispatcher)

// WithStatusUpdater persists sent / failed states.
func WithStatusUpdater(status StatusUpdater) DispatcherOption {
	return func(d *Dispatcher) { d.status = status }
}

// WithStatusListener is told about every persisted status change, e.g. to
// publish message.updated.
func WithStatusListener(fn func(ctx context.Context, msg *models.Message)) DispatcherOption {
	return func(d *Dispatcher) { d.onState = fn }
}

func WithClock(clock func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.clock = clock }
}

func NewDispatcher(queue Queue, sender Sender, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:  queue,
		sender: sender,
		logger: logger.With("module", "outbox_dispatcher"),
		clock:  time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run blocks until ctx is done, or until the queue is closed and every held
// item went out. Items wait for their NotBefore without holding back the
// rest of the queue; items of one conversation keep their queue order.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Starting outbox dispatcher")

	incoming := make(chan Item)
	go d.receive(ctx, incoming)

	held := newSchedule()

	for {
		if incoming == nil && held.len() == 0 {
			d.logger.InfoContext(ctx, "Outbox dispatcher stopped")

			return nil
		}

		var (
			timer *time.Timer
			wake  <-chan time.Time
		)

		if next, ok := held.next(); ok {
			timer = time.NewTimer(max(next.Sub(d.clock()), 0))
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)

			if incoming != nil {
				for item := range incoming {
					held.add(item)
				}
			}

			d.requeue(ctx, held.drain())
			d.logger.InfoContext(ctx, "Outbox dispatcher stopped")

			return nil
		case item, ok := <-incoming:
			if !ok {
				incoming = nil
			} else {
				held.add(item)
			}
		case <-wake:
		}

		stopTimer(timer)

		for _, item := range held.due(d.clock()) {
			d.Deliver(ctx, item)
		}
	}
}

// receive feeds items from the queue until ctx is done or the queue is closed.
func (d *Dispatcher) receive(ctx context.Context, out chan<- Item) {
	defer close(out)

	for ctx.Err() == nil {
		item, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return
			}

			d.logger.ErrorContext(ctx, "Failed to dequeue outbox item", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}

			continue
		}

		select {
		case out <- item:
		case <-ctx.Done():
			d.requeue(ctx, []Item{item})

			return
		}
	}
}

// requeue puts back items that were taken from the queue but not sent.
func (d *Dispatcher) requeue(ctx context.Context, items []Item) {
	if len(items) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	for _, item := range items {
		err := d.queue.Enqueue(ctx, item)
		if err != nil {
			d.logger.WarnContext(ctx, "Dropping held outbox item", "message_id", item.MessageID, "error", err)
		}
	}
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

// Deliver sends one item and records the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, item Item) {
	logger := d.logger.With("message_id", item.MessageID, "conversation_id", item.ConversationID)

	status := models.MessageStatusSent

	err := d.sender.Send(ctx, item)
	if err != nil {
		status = models.MessageStatusFailed

		logger.ErrorContext(ctx, "Failed to send message", "error", err)
	} else {
		logger.InfoContext(ctx, "Message sent")
	}

	if d.status == nil || item.MessageID == "" {
		return
	}

	msg, err := d.status.UpdateStatus(ctx, item.MessageID, status)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update message status", "status", status, "error", err)

		return
	}

	if d.onState != nil {
		d.onState(ctx, msg)
	}
}
