package postgresql

import (
	"context"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// MessageRepository handles the messages table.
type MessageRepository struct {
	repository
}

const messageColumns = `
	id
  , conversation_id
  , phone
  , direction
  , body
  , status
  , department
  , sender
  , created_at
  , updated_at
`

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	message, err := scanMessage(r.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id))
	if err != nil {
		return nil, notFoundOr("GetByID", "message", id, err, persistence.ErrMessageNotFound)
	}

	return message, nil
}

func (r *MessageRepository) Save(ctx context.Context, message *models.Message) error {
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

	query := `
		INSERT INTO messages (id, conversation_id, phone, direction, body, status, department, sender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id
		  , phone = EXCLUDED.phone
		  , direction = EXCLUDED.direction
		  , body = EXCLUDED.body
		  , status = EXCLUDED.status
		  , department = EXCLUDED.department
		  , sender = EXCLUDED.sender
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		message.ID, message.ConversationID, message.Phone, string(message.Direction), message.Body,
		string(message.Status), string(message.Department), message.Sender, message.CreatedAt, message.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "message", message.ID, err)
	}

	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	var limitArg any = limit
	if limit <= 0 {
		limitArg = nil // LIMIT NULL returns every row
	}

	query := "SELECT * FROM (SELECT " + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	) latest ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, conversationID, limitArg)
	if err != nil {
		return nil, persistence.NewRecordError("ListByConversation", "message", conversationID, err)
	}

	defer r.closeRows(ctx, rows)

	messages := make([]*models.Message, 0)

	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, persistence.NewRecordError("ListByConversation", "message", conversationID, err)
		}

		messages = append(messages, message)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewRecordError("ListByConversation", "message", conversationID, err)
	}

	return messages, nil
}

func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status models.MessageStatus) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx,
		"UPDATE messages SET status = $1, updated_at = $2 WHERE id = $3 RETURNING "+messageColumns,
		string(status), time.Now().UTC(), id)

	message, err := scanMessage(row)
	if err != nil {
		return nil, notFoundOr("UpdateStatus", "message", id, err, persistence.ErrMessageNotFound)
	}

	return message, nil
}

func scanMessage(row scanner) (*models.Message, error) {
	var (
		message                       models.Message
		direction, status, department string
	)

	err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.Phone,
		&direction,
		&message.Body,
		&status,
		&department,
		&message.Sender,
		&message.CreatedAt,
		&message.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.Direction = models.MessageDirection(direction)
	message.Status = models.MessageStatus(status)
	message.Department = models.Department(department)

	return &message, nil
}
