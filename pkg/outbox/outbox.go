// Package outbox queues outbound WhatsApp messages and drains them into the
// gateway. Failed sends are logged and marked failed, never retried.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
)

// DefaultKey is the Redis list holding queued messages.
const DefaultKey = "corretor:outbox"

var ErrQueueClosed = errors.New("outbox queue closed")

// Item is one message waiting to be sent.
type Item struct {
	MessageID      string            `json:"message_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Phone          string            `json:"phone"`
	Text           string            `json:"text"`
	Department     models.Department `json:"department,omitempty"`
	// NotBefore holds the item back until the given time (message delays).
	NotBefore time.Time `json:"not_before,omitzero"`
	QueuedAt  time.Time `json:"queued_at"`
}

// Queue is a FIFO of outbound messages.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
	// Dequeue blocks until an item is available or ctx is done.
	Dequeue(ctx context.Context) (Item, error)
	Close() error
}

// Sender delivers a message to the WhatsApp gateway.
type Sender interface {
	Send(ctx context.Context, item Item) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, item Item) error

func (f SenderFunc) Send(ctx context.Context, item Item) error {
	return f(ctx, item)
}
