// Package persistence provides the storage abstraction for flows, contacts,
// conversations and the rest of the CRM state.
package persistence

import (
	"context"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
)

type Persistence interface {
	FlowRepository() FlowRepository
	ContactRepository() ContactRepository
	ConversationRepository() ConversationRepository
	MessageRepository() MessageRepository
	SettingRepository() SettingRepository
	LeadLogRepository() LeadLogRepository
	BehaviorConfigRepository() BehaviorConfigRepository
	FlowSessionRepository() FlowSessionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListFlowsOptions filters, sorts and paginates flows.
type ListFlowsOptions struct {
	Limit  int
	Offset int

	Department *models.Department
	Active     *bool

	SortBy    string
	SortOrder string
}

// FlowListResult is one page of flows.
type FlowListResult struct {
	Flows       []*models.Flow `json:"flows"`
	TotalCount  int64          `json:"total_count"`
	HasNextPage bool           `json:"has_next_page"`
}

// AllowedFlowSorts lists the fields flows can be sorted by.
var AllowedFlowSorts = []string{"created_at", "updated_at", "name"}

type FlowRepository interface {
	ListFlows(ctx context.Context, opts ListFlowsOptions) (*FlowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error
	// ActiveByDepartment returns the published flow of a department.
	ActiveByDepartment(ctx context.Context, department models.Department) (*models.Flow, error)
	// Activate marks a flow active and clears is_active on every other flow
	// of its department in one step.
	Activate(ctx context.Context, id string) (*models.Flow, error)
}

type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	GetByPhone(ctx context.Context, phone string) (*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	// OpenByPhone returns the open conversation of phone in a department.
	OpenByPhone(ctx context.Context, phone string, department models.Department) (*models.Conversation, error)
	Save(ctx context.Context, conversation *models.Conversation) error
	// ListAwaitingReply returns open conversations whose last message is
	// outbound, older than before, with fewer than maxAttempts reengagements.
	ListAwaitingReply(ctx context.Context, before time.Time, maxAttempts int) ([]*models.Conversation, error)
}

type MessageRepository interface {
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Save(ctx context.Context, message *models.Message) error
	// ListByConversation returns the latest limit messages, oldest first.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
	UpdateStatus(ctx context.Context, id string, status models.MessageStatus) (*models.Message, error)
}

type SettingRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Set(ctx context.Context, key, value string) (*models.Setting, error)
}

type LeadLogRepository interface {
	GetByID(ctx context.Context, id string) (*models.PortalLeadLog, error)
	Save(ctx context.Context, log *models.PortalLeadLog) error
	// List returns the latest limit logs, newest first.
	List(ctx context.Context, limit int) ([]*models.PortalLeadLog, error)
}

type BehaviorConfigRepository interface {
	Get(ctx context.Context, department models.Department) (*models.BehaviorConfig, error)
	Save(ctx context.Context, config *models.BehaviorConfig) error
}

type FlowSessionRepository interface {
	Get(ctx context.Context, conversationID string) (*models.FlowSession, error)
	Save(ctx context.Context, session *models.FlowSession) error
	Delete(ctx context.Context, conversationID string) error
}
