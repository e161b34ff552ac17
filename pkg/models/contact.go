package models

import (
	"slices"
	"time"
)

// Contact is a person the agency talks to over WhatsApp.
type Contact struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email,omitempty"`
	Department Department `json:"department,omitempty"`
	Tags       []string   `json:"tags"`
	Source     string     `json:"source,omitempty"` // portal, landing_page, import, whatsapp
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// HasTag reports whether the contact carries tag.
func (c *Contact) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// AddTags appends the tags the contact does not have yet.
func (c *Contact) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag != "" && !c.HasTag(tag) {
			c.Tags = append(c.Tags, tag)
		}
	}
}

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "open"
	ConversationStatusClosed ConversationStatus = "closed"
)

// Conversation is a WhatsApp thread between a contact and a department.
type Conversation struct {
	ID                string             `json:"id"`
	ContactID         string             `json:"contact_id"`
	Phone             string             `json:"phone"`
	Department        Department         `json:"department"`
	Status            ConversationStatus `json:"status"`
	ReengagementCount int                `json:"reengagement_count"`
	LastMessageAt     *time.Time         `json:"last_message_at,omitempty"`
	LastInboundAt     *time.Time         `json:"last_inbound_at,omitempty"`
	LastDirection     MessageDirection   `json:"last_direction,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// MessageDirection tells whether a message came from the contact or the agency.
type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "inbound"
	MessageDirectionOutbound MessageDirection = "outbound"
)

// MessageStatus tracks delivery of a message.
type MessageStatus string

const (
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is a single row of a conversation.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Phone          string           `json:"phone"`
	Direction      MessageDirection `json:"direction"`
	Body           string           `json:"body"`
	Status         MessageStatus    `json:"status"`
	Department     Department       `json:"department,omitempty"`
	Sender         string           `json:"sender,omitempty"` // ai, flow, agent, n8n, reengagement
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Touch records msg as the latest activity of the conversation.
func (c *Conversation) Touch(msg *Message) {
	at := msg.CreatedAt
	c.LastMessageAt = &at
	c.LastDirection = msg.Direction
	c.UpdatedAt = at

	if msg.Direction == MessageDirectionInbound {
		c.LastInboundAt = &at
		c.ReengagementCount = 0
	}
}
