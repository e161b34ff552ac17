package file

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/google/uuid"
)

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}

	return id.String(), nil
}

func notFoundOr(op, entity, key string, err, notFound error) error {
	if errors.Is(err, errRecordMissing) {
		return persistence.NewRecordError(op, entity, key, notFound)
	}

	return persistence.NewRecordError(op, entity, key, err)
}

// ContactRepository handles contact files.
type ContactRepository struct {
	p       *Persistence
	records collection[models.Contact]
}

func (r *ContactRepository) GetByID(_ context.Context, id string) (*models.Contact, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	contact, err := r.records.read(id)
	if err != nil {
		return nil, notFoundOr("GetByID", "contact", id, err, persistence.ErrContactNotFound)
	}

	return contact, nil
}

func (r *ContactRepository) GetByPhone(_ context.Context, phone string) (*models.Contact, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, persistence.NewRecordError("GetByPhone", "contact", phone, err)
	}

	for _, contact := range all {
		if contact.Phone == phone {
			return contact, nil
		}
	}

	return nil, persistence.NewRecordError("GetByPhone", "contact", phone, persistence.ErrContactNotFound)
}

func (r *ContactRepository) Save(_ context.Context, contact *models.Contact) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if contact.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		contact.ID = id
	}

	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now

	if contact.Tags == nil {
		contact.Tags = []string{}
	}

	err := r.records.write(contact.ID, contact)
	if err != nil {
		return persistence.NewRecordError("Save", "contact", contact.ID, err)
	}

	return nil
}

// ConversationRepository handles conversation files.
type ConversationRepository struct {
	p       *Persistence
	records collection[models.Conversation]
}

func (r *ConversationRepository) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	conversation, err := r.records.read(id)
	if err != nil {
		return nil, notFoundOr("GetByID", "conversation", id, err, persistence.ErrConversationNotFound)
	}

	return conversation, nil
}

func (r *ConversationRepository) OpenByPhone(_ context.Context, phone string, department models.Department) (*models.Conversation, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, persistence.NewRecordError("OpenByPhone", "conversation", phone, err)
	}

	var found *models.Conversation

	for _, conversation := range all {
		if conversation.Phone != phone || conversation.Department != department ||
			conversation.Status != models.ConversationStatusOpen {
			continue
		}

		if found == nil || conversation.CreatedAt.After(found.CreatedAt) {
			found = conversation
		}
	}

	if found == nil {
		return nil, persistence.NewRecordError("OpenByPhone", "conversation", phone, persistence.ErrConversationNotFound)
	}

	return found, nil
}

func (r *ConversationRepository) Save(_ context.Context, conversation *models.Conversation) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if conversation.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		conversation.ID = id
	}

	now := time.Now().UTC()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}

	conversation.UpdatedAt = now

	if conversation.Status == "" {
		conversation.Status = models.ConversationStatusOpen
	}

	err := r.records.write(conversation.ID, conversation)
	if err != nil {
		return persistence.NewRecordError("Save", "conversation", conversation.ID, err)
	}

	return nil
}

func (r *ConversationRepository) ListAwaitingReply(_ context.Context, before time.Time, maxAttempts int) ([]*models.Conversation, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, persistence.NewRecordError("ListAwaitingReply", "conversation", "", err)
	}

	out := make([]*models.Conversation, 0)

	for _, conversation := range all {
		if conversation.Status != models.ConversationStatusOpen ||
			conversation.LastDirection != models.MessageDirectionOutbound ||
			conversation.LastMessageAt == nil ||
			!conversation.LastMessageAt.Before(before) ||
			conversation.ReengagementCount >= maxAttempts {
			continue
		}

		out = append(out, conversation)
	}

	slices.SortFunc(out, func(a, b *models.Conversation) int {
		return a.LastMessageAt.Compare(*b.LastMessageAt)
	})

	return out, nil
}
