// Package events defines the domain events exchanged over the event bus.
package events

import (
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every domain event; the type travels in the message metadata.
const Topic = "corretor.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	MessageCreatedEvent        EventType = "message.created"
	MessageUpdatedEvent        EventType = "message.updated"
	LeadReceivedEvent          EventType = "lead.received"
	FlowPublishedEvent         EventType = "flow.published"
	ConversationEscalatedEvent EventType = "conversation.escalated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// MessageCreated is published when a message row is inserted.
type MessageCreated struct {
	BaseEvent

	Message models.Message `json:"message"`
}

func (e MessageCreated) GetType() EventType {
	return MessageCreatedEvent
}

// MessageUpdated is published when a message changes status.
type MessageUpdated struct {
	BaseEvent

	Message models.Message `json:"message"`
}

func (e MessageUpdated) GetType() EventType {
	return MessageUpdatedEvent
}

// LeadReceived is published after a portal or landing page lead is ingested.
type LeadReceived struct {
	BaseEvent

	LeadLogID      string            `json:"lead_log_id"`
	Portal         string            `json:"portal"`
	ContactID      string            `json:"contact_id"`
	ConversationID string            `json:"conversation_id"`
	Department     models.Department `json:"department"`
}

func (e LeadReceived) GetType() EventType {
	return LeadReceivedEvent
}

// FlowPublished is published when a flow becomes the active flow of its department.
type FlowPublished struct {
	BaseEvent

	FlowID     string            `json:"flow_id"`
	Department models.Department `json:"department"`
}

func (e FlowPublished) GetType() EventType {
	return FlowPublishedEvent
}

// ConversationEscalated is published when a live flow hands a conversation to a person.
type ConversationEscalated struct {
	BaseEvent

	ConversationID string            `json:"conversation_id"`
	FlowID         string            `json:"flow_id"`
	NodeID         string            `json:"node_id"`
	Reason         string            `json:"reason,omitempty"`
	Department     models.Department `json:"department,omitempty"`
	Priority       string            `json:"priority,omitempty"`
}

func (e ConversationEscalated) GetType() EventType {
	return ConversationEscalatedEvent
}

// Decode returns an empty event value for eventType, ready to be unmarshaled.
func Decode(eventType EventType) (any, bool) {
	switch eventType {
	case MessageCreatedEvent:
		return &MessageCreated{}, true
	case MessageUpdatedEvent:
		return &MessageUpdated{}, true
	case LeadReceivedEvent:
		return &LeadReceived{}, true
	case FlowPublishedEvent:
		return &FlowPublished{}, true
	case ConversationEscalatedEvent:
		return &ConversationEscalated{}, true
	default:
		return nil, false
	}
}
