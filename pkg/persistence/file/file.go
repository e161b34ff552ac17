// Package file provides file-based persistence for local development and tests.
// Every record is a JSON document under the root directory.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	// mu serializes writes so read-modify-write sequences such as flow
	// activation and status updates stay consistent within a process.
	mu sync.RWMutex

	flows          *FlowRepository
	contacts       *ContactRepository
	conversations  *ConversationRepository
	messages       *MessageRepository
	settings       *SettingRepository
	leadLogs       *LeadLogRepository
	behaviorConfig *BehaviorConfigRepository
	sessions       *FlowSessionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.flows = &FlowRepository{p: p, records: newCollection[models.Flow](cleanRoot, "flows")}
	p.contacts = &ContactRepository{p: p, records: newCollection[models.Contact](cleanRoot, "contacts")}
	p.conversations = &ConversationRepository{p: p, records: newCollection[models.Conversation](cleanRoot, "conversations")}
	p.messages = &MessageRepository{p: p, records: newCollection[models.Message](cleanRoot, "messages")}
	p.settings = &SettingRepository{p: p, records: newCollection[models.Setting](cleanRoot, "settings")}
	p.leadLogs = &LeadLogRepository{p: p, records: newCollection[models.PortalLeadLog](cleanRoot, "portal_leads_log")}
	p.behaviorConfig = &BehaviorConfigRepository{p: p, records: newCollection[models.BehaviorConfig](cleanRoot, "ai_behavior_config")}
	p.sessions = &FlowSessionRepository{p: p, records: newCollection[models.FlowSession](cleanRoot, "flow_sessions")}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) FlowRepository() persistence.FlowRepository { return fp.flows }

func (fp *Persistence) ContactRepository() persistence.ContactRepository { return fp.contacts }

func (fp *Persistence) ConversationRepository() persistence.ConversationRepository {
	return fp.conversations
}

func (fp *Persistence) MessageRepository() persistence.MessageRepository { return fp.messages }

func (fp *Persistence) SettingRepository() persistence.SettingRepository { return fp.settings }

func (fp *Persistence) LeadLogRepository() persistence.LeadLogRepository { return fp.leadLogs }

func (fp *Persistence) BehaviorConfigRepository() persistence.BehaviorConfigRepository {
	return fp.behaviorConfig
}

func (fp *Persistence) FlowSessionRepository() persistence.FlowSessionRepository {
	return fp.sessions
}
