package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corretor-crm/corretor/pkg/eventbus"
	"github.com/corretor-crm/corretor/pkg/events"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// Message senders recorded on outbound messages.
const (
	SenderAI           = "ai"
	SenderFlow         = "flow"
	SenderN8N          = "n8n"
	SenderReengagement = "reengagement"
	SenderContact      = "contact"
)

// Messenger stores conversation messages, keeps the conversation timeline
// current and announces every new message on the event bus. Outbound
// messages are also queued for the WhatsApp gateway.
type Messenger struct {
	persistence persistence.Persistence
	queue       outbox.Queue
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	clock       func() time.Time
}

func NewMessenger(
	persistence persistence.Persistence,
	queue outbox.Queue,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Messenger {
	return &Messenger{
		persistence: persistence,
		queue:       queue,
		publisher:   publisher,
		logger:      logger.With("module", "messenger"),
		clock:       time.Now,
	}
}

// RecordInbound stores a message received from the contact.
func (m *Messenger) RecordInbound(ctx context.Context, conversation *models.Conversation, text string) (*models.Message, error) {
	now := m.clock().UTC()

	message := &models.Message{
		ConversationID: conversation.ID,
		Phone:          conversation.Phone,
		Direction:      models.MessageDirectionInbound,
		Body:           text,
		Status:         models.MessageStatusReceived,
		Department:     conversation.Department,
		Sender:         SenderContact,
		CreatedAt:      now,
	}

	err := m.persistence.MessageRepository().Save(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to save inbound message: %w", err)
	}

	conversation.LastMessageAt = &now
	conversation.LastInboundAt = &now
	conversation.LastDirection = models.MessageDirectionInbound
	conversation.ReengagementCount = 0

	err = m.persistence.ConversationRepository().Save(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	m.announce(ctx, message)

	return message, nil
}

// SendOutbound stores an outbound message and queues it for delivery after delay.
func (m *Messenger) SendOutbound(
	ctx context.Context,
	conversation *models.Conversation,
	text, sender string,
	delay time.Duration,
) (*models.Message, error) {
	now := m.clock().UTC()

	message := &models.Message{
		ConversationID: conversation.ID,
		Phone:          conversation.Phone,
		Direction:      models.MessageDirectionOutbound,
		Body:           text,
		Status:         models.MessageStatusQueued,
		Department:     conversation.Department,
		Sender:         sender,
		CreatedAt:      now,
	}

	err := m.persistence.MessageRepository().Save(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to save outbound message: %w", err)
	}

	conversation.LastMessageAt = &now
	conversation.LastDirection = models.MessageDirectionOutbound

	err = m.persistence.ConversationRepository().Save(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	item := outbox.Item{
		MessageID:      message.ID,
		ConversationID: conversation.ID,
		Phone:          conversation.Phone,
		Text:           text,
		Department:     conversation.Department,
		QueuedAt:       now,
	}

	if delay > 0 {
		item.NotBefore = now.Add(delay)
	}

	err = m.queue.Enqueue(ctx, item)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to queue outbound message", "message_id", message.ID, "error", err)

		updated, updateErr := m.persistence.MessageRepository().UpdateStatus(ctx, message.ID, models.MessageStatusFailed)
		if updateErr == nil {
			message = updated
		}

		m.announce(ctx, message)

		return message, fmt.Errorf("failed to queue outbound message: %w", err)
	}

	m.announce(ctx, message)

	return message, nil
}

// StatusChanged announces a persisted delivery status change.
func (m *Messenger) StatusChanged(ctx context.Context, message *models.Message) {
	event := events.MessageUpdated{BaseEvent: events.NewBaseEvent(events.MessageUpdatedEvent), Message: *message}

	err := m.publisher.Publish(ctx, message.ConversationID, event)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish message update", "message_id", message.ID, "error", err)
	}
}

func (m *Messenger) announce(ctx context.Context, message *models.Message) {
	event := events.MessageCreated{BaseEvent: events.NewBaseEvent(events.MessageCreatedEvent), Message: *message}

	err := m.publisher.Publish(ctx, message.ConversationID, event)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish message", "message_id", message.ID, "error", err)
	}
}
