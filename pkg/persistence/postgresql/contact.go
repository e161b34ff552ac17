package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/lib/pq"
)

func notFoundOr(op, entity, key string, err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewRecordError(op, entity, key, notFound)
	}

	return persistence.NewRecordError(op, entity, key, err)
}

// ContactRepository handles the contacts table.
type ContactRepository struct {
	repository
}

const contactColumns = `
	id
  , name
  , phone
  , email
  , department
  , tags
  , source
  , created_at
  , updated_at
`

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	contact, err := scanContact(r.db.QueryRowContext(ctx, "SELECT "+contactColumns+" FROM contacts WHERE id = $1", id))
	if err != nil {
		return nil, notFoundOr("GetByID", "contact", id, err, persistence.ErrContactNotFound)
	}

	return contact, nil
}

func (r *ContactRepository) GetByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	contact, err := scanContact(r.db.QueryRowContext(ctx, "SELECT "+contactColumns+" FROM contacts WHERE phone = $1", phone))
	if err != nil {
		return nil, notFoundOr("GetByPhone", "contact", phone, err, persistence.ErrContactNotFound)
	}

	return contact, nil
}

func (r *ContactRepository) Save(ctx context.Context, contact *models.Contact) error {
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

	query := `
		INSERT INTO contacts (id, name, phone, email, department, tags, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , phone = EXCLUDED.phone
		  , email = EXCLUDED.email
		  , department = EXCLUDED.department
		  , tags = EXCLUDED.tags
		  , source = EXCLUDED.source
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		contact.ID, contact.Name, contact.Phone, contact.Email, string(contact.Department),
		pq.Array(contact.Tags), contact.Source, contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "contact", contact.ID, err)
	}

	return nil
}

func scanContact(row scanner) (*models.Contact, error) {
	var (
		contact    models.Contact
		department string
		tags       []string
	)

	err := row.Scan(
		&contact.ID,
		&contact.Name,
		&contact.Phone,
		&contact.Email,
		&department,
		pq.Array(&tags),
		&contact.Source,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	contact.Department = models.Department(department)
	contact.Tags = nonNil(tags)

	return &contact, nil
}

// ConversationRepository handles the conversations table.
type ConversationRepository struct {
	repository
}

const conversationColumns = `
	id
  , contact_id
  , phone
  , department
  , status
  , reengagement_count
  , last_message_at
  , last_inbound_at
  , last_direction
  , created_at
  , updated_at
`

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	conversation, err := scanConversation(r.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = $1", id))
	if err != nil {
		return nil, notFoundOr("GetByID", "conversation", id, err, persistence.ErrConversationNotFound)
	}

	return conversation, nil
}

func (r *ConversationRepository) OpenByPhone(ctx context.Context, phone string, department models.Department) (*models.Conversation, error) {
	query := "SELECT " + conversationColumns + `
		FROM conversations
		WHERE phone = $1 AND department = $2 AND status = 'open'
		ORDER BY created_at DESC
		LIMIT 1
	`

	conversation, err := scanConversation(r.db.QueryRowContext(ctx, query, phone, string(department)))
	if err != nil {
		return nil, notFoundOr("OpenByPhone", "conversation", phone, err, persistence.ErrConversationNotFound)
	}

	return conversation, nil
}

func (r *ConversationRepository) Save(ctx context.Context, conversation *models.Conversation) error {
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

	query := `
		INSERT INTO conversations (
			id, contact_id, phone, department, status, reengagement_count,
			last_message_at, last_inbound_at, last_direction, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			contact_id = EXCLUDED.contact_id
		  , phone = EXCLUDED.phone
		  , department = EXCLUDED.department
		  , status = EXCLUDED.status
		  , reengagement_count = EXCLUDED.reengagement_count
		  , last_message_at = EXCLUDED.last_message_at
		  , last_inbound_at = EXCLUDED.last_inbound_at
		  , last_direction = EXCLUDED.last_direction
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		conversation.ID, conversation.ContactID, conversation.Phone, string(conversation.Department),
		string(conversation.Status), conversation.ReengagementCount,
		conversation.LastMessageAt, conversation.LastInboundAt, string(conversation.LastDirection),
		conversation.CreatedAt, conversation.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "conversation", conversation.ID, err)
	}

	return nil
}

func (r *ConversationRepository) ListAwaitingReply(ctx context.Context, before time.Time, maxAttempts int) ([]*models.Conversation, error) {
	query := "SELECT " + conversationColumns + `
		FROM conversations
		WHERE status = 'open'
		  AND last_direction = 'outbound'
		  AND last_message_at < $1
		  AND reengagement_count < $2
		ORDER BY last_message_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, before, maxAttempts)
	if err != nil {
		return nil, persistence.NewRecordError("ListAwaitingReply", "conversation", "", err)
	}

	defer r.closeRows(ctx, rows)

	conversations := make([]*models.Conversation, 0)

	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, persistence.NewRecordError("ListAwaitingReply", "conversation", "", err)
		}

		conversations = append(conversations, conversation)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewRecordError("ListAwaitingReply", "conversation", "", err)
	}

	return conversations, nil
}

func scanConversation(row scanner) (*models.Conversation, error) {
	var (
		conversation                 models.Conversation
		department, status, lastDir  string
		lastMessageAt, lastInboundAt sql.NullTime
	)

	err := row.Scan(
		&conversation.ID,
		&conversation.ContactID,
		&conversation.Phone,
		&department,
		&status,
		&conversation.ReengagementCount,
		&lastMessageAt,
		&lastInboundAt,
		&lastDir,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conversation.Department = models.Department(department)
	conversation.Status = models.ConversationStatus(status)
	conversation.LastDirection = models.MessageDirection(lastDir)
	conversation.LastMessageAt = nullTime(lastMessageAt)
	conversation.LastInboundAt = nullTime(lastInboundAt)

	return &conversation, nil
}

func nullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}

	t := value.Time.UTC()

	return &t
}
