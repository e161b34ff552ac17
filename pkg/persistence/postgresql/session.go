package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/lib/pq"
)

// FlowSessionRepository handles the flow_sessions table.
type FlowSessionRepository struct {
	repository
}

func (r *FlowSessionRepository) Get(ctx context.Context, conversationID string) (*models.FlowSession, error) {
	query := `
		SELECT
			conversation_id
		  , flow_id
		  , current_node_id
		  , status
		  , variables
		  , tags
		  , error
		  , updated_at
		FROM flow_sessions
		WHERE conversation_id = $1
	`

	var (
		session   models.FlowSession
		status    string
		variables []byte
		tags      []string
	)

	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(
		&session.ConversationID,
		&session.FlowID,
		&session.CurrentNodeID,
		&status,
		&variables,
		pq.Array(&tags),
		&session.Error,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr("Get", "flow session", conversationID, err, persistence.ErrFlowSessionNotFound)
	}

	session.Status = models.SessionStatus(status)
	session.Tags = nonNil(tags)

	if len(variables) > 0 {
		err = json.Unmarshal(variables, &session.Variables)
		if err != nil {
			return nil, persistence.NewRecordError("Get", "flow session", conversationID,
				fmt.Errorf("failed to unmarshal variables: %w", err))
		}
	}

	return &session, nil
}

func (r *FlowSessionRepository) Save(ctx context.Context, session *models.FlowSession) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}

	variables, err := json.Marshal(session.Variables)
	if err != nil {
		return persistence.NewRecordError("Save", "flow session", session.ConversationID,
			fmt.Errorf("failed to marshal variables: %w", err))
	}

	query := `
		INSERT INTO flow_sessions (conversation_id, flow_id, current_node_id, status, variables, tags, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (conversation_id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id
		  , current_node_id = EXCLUDED.current_node_id
		  , status = EXCLUDED.status
		  , variables = EXCLUDED.variables
		  , tags = EXCLUDED.tags
		  , error = EXCLUDED.error
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		session.ConversationID, session.FlowID, session.CurrentNodeID, string(session.Status),
		variables, pq.Array(nonNil(session.Tags)), session.Error, session.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "flow session", session.ConversationID, err)
	}

	return nil
}

func (r *FlowSessionRepository) Delete(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM flow_sessions WHERE conversation_id = $1", conversationID)
	if err != nil {
		return persistence.NewRecordError("Delete", "flow session", conversationID, err)
	}

	return nil
}
