package file

import (
	"context"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// FlowSessionRepository stores the live flow state of each conversation.
type FlowSessionRepository struct {
	p       *Persistence
	records collection[models.FlowSession]
}

func (r *FlowSessionRepository) Get(_ context.Context, conversationID string) (*models.FlowSession, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	session, err := r.records.read(conversationID)
	if err != nil {
		return nil, notFoundOr("Get", "flow session", conversationID, err, persistence.ErrFlowSessionNotFound)
	}

	return session, nil
}

func (r *FlowSessionRepository) Save(_ context.Context, session *models.FlowSession) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}

	err := r.records.write(session.ConversationID, session)
	if err != nil {
		return persistence.NewRecordError("Save", "flow session", session.ConversationID, err)
	}

	return nil
}

func (r *FlowSessionRepository) Delete(_ context.Context, conversationID string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	_, err := r.records.remove(conversationID)
	if err != nil {
		return persistence.NewRecordError("Delete", "flow session", conversationID, err)
	}

	return nil
}
