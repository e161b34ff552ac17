package models

import "time"

// SessionStatus is the state of a flow walk.
type SessionStatus string

const (
	SessionStatusRunning      SessionStatus = "running"
	SessionStatusWaitingInput SessionStatus = "waiting_input"
	SessionStatusCompleted    SessionStatus = "completed"
	SessionStatusEscalated    SessionStatus = "escalated"
	SessionStatusError        SessionStatus = "error"
)

// Terminal reports whether no further input can advance the session.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusEscalated || s == SessionStatusError
}

// FlowSession is the persisted state of a live flow walk for one conversation.
type FlowSession struct {
	ConversationID string         `json:"conversation_id"`
	FlowID         string         `json:"flow_id"`
	CurrentNodeID  string         `json:"current_node_id"`
	Status         SessionStatus  `json:"status"`
	Variables      map[string]any `json:"variables"`
	Tags           []string       `json:"tags"`
	Error          string         `json:"error,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
