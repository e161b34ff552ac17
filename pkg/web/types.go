// Package web provides the HTTP handlers of the management API and of the
// webhook endpoints.
package web

import (
	"github.com/corretor-crm/corretor/pkg/models"
)

// ErrorResponse is the error body of webhook endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string `json:"name"                  validate:"required,min=3"`
	Description string `json:"description,omitempty"`
	Department  string `json:"department"            validate:"required"`
	TemplateID  string `json:"template_id,omitempty"`
}

// UpdateFlowRequest represents the request body for saving the canvas of a
// flow. All fields are optional.
type UpdateFlowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string        `json:"description,omitempty"`
	Department  *string        `json:"department,omitempty"`
	Nodes       []*models.Node `json:"nodes,omitempty"       validate:"omitempty,dive,required"`
	Edges       []*models.Edge `json:"edges,omitempty"       validate:"omitempty,dive,required"`
}

// TestFlowRequest runs a flow with simulated user replies. Flow, when set,
// is an unsaved definition run instead of the stored one.
type TestFlowRequest struct {
	Inputs    []string       `json:"inputs"`
	Variables map[string]any `json:"variables,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Flow      *models.Flow   `json:"flow,omitempty"`
}

// SetSettingRequest represents the request body of PUT /settings/:key.
type SetSettingRequest struct {
	Value string `json:"value"`
}

// BehaviorRequest represents the AI behavior of a department.
type BehaviorRequest struct {
	AgentName          string   `json:"agent_name"`
	CompanyName        string   `json:"company_name"`
	Tone               string   `json:"tone"`
	BusinessRules      []string `json:"business_rules"`
	Script             string   `json:"script"`
	CustomInstructions string   `json:"custom_instructions"`
	PromptOverride     string   `json:"prompt_override"`
	ReengagementHours  int      `json:"reengagement_hours" validate:"gte=0"`
}

// ImportContactsRequest is the JSON form of import-contacts.
type ImportContactsRequest struct {
	Contacts []ImportContact `json:"contacts" validate:"required"`
}

// ImportContact is one contact of ImportContactsRequest.
type ImportContact struct {
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email,omitempty"`
	Department string   `json:"department,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}
