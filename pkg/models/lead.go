package models

import "time"

// LeadLogStatus is the outcome of processing a portal lead.
type LeadLogStatus string

const (
	LeadLogStatusProcessed LeadLogStatus = "processed"
	LeadLogStatusFailed    LeadLogStatus = "failed"
)

// PortalLeadLog records every lead received from a listing portal or landing page.
type PortalLeadLog struct {
	ID             string         `json:"id"`
	Portal         string         `json:"portal"`
	Payload        map[string]any `json:"payload"`
	Status         LeadLogStatus  `json:"status"`
	Error          string         `json:"error,omitempty"`
	ContactID      string         `json:"contact_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Lead is the normalized form of an inbound lead, whatever its origin.
type Lead struct {
	Source     string     `json:"source"`
	Portal     string     `json:"portal,omitempty"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email,omitempty"`
	Message    string     `json:"message,omitempty"`
	ListingID  string     `json:"listing_id,omitempty"`
	Department Department `json:"department"`
	Tags       []string   `json:"tags,omitempty"`
}
