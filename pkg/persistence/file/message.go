package file

import (
	"context"
	"slices"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// MessageRepository handles message files.
type MessageRepository struct {
	p       *Persistence
	records collection[models.Message]
}

func (r *MessageRepository) GetByID(_ context.Context, id string) (*models.Message, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	message, err := r.records.read(id)
	if err != nil {
		return nil, notFoundOr("GetByID", "message", id, err, persistence.ErrMessageNotFound)
	}

	return message, nil
}

func (r *MessageRepository) Save(_ context.Context, message *models.Message) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if message.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		message.ID = id
	}

	now := time.Now().UTC()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	message.UpdatedAt = now

	err := r.records.write(message.ID, message)
	if err != nil {
		return persistence.NewRecordError("Save", "message", message.ID, err)
	}

	return nil
}

func (r *MessageRepository) ListByConversation(_ context.Context, conversationID string, limit int) ([]*models.Message, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, persistence.NewRecordError("ListByConversation", "message", conversationID, err)
	}

	out := make([]*models.Message, 0)

	for _, message := range all {
		if message.ConversationID == conversationID {
			out = append(out, message)
		}
	}

	slices.SortStableFunc(out, func(a, b *models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out, nil
}

func (r *MessageRepository) UpdateStatus(_ context.Context, id string, status models.MessageStatus) (*models.Message, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	message, err := r.records.read(id)
	if err != nil {
		return nil, notFoundOr("UpdateStatus", "message", id, err, persistence.ErrMessageNotFound)
	}

	message.Status = status
	message.UpdatedAt = time.Now().UTC()

	err = r.records.write(id, message)
	if err != nil {
		return nil, persistence.NewRecordError("UpdateStatus", "message", id, err)
	}

	return message, nil
}
