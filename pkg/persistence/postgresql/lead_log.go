package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// LeadLogRepository handles the portal_leads_log table.
type LeadLogRepository struct {
	repository
}

const leadLogColumns = `
	id
  , portal
  , payload
  , status
  , error
  , contact_id
  , conversation_id
  , created_at
`

func (r *LeadLogRepository) GetByID(ctx context.Context, id string) (*models.PortalLeadLog, error) {
	log, err := scanLeadLog(r.db.QueryRowContext(ctx, "SELECT "+leadLogColumns+" FROM portal_leads_log WHERE id = $1", id))
	if err != nil {
		return nil, notFoundOr("GetByID", "lead log", id, err, persistence.ErrLeadLogNotFound)
	}

	return log, nil
}

func (r *LeadLogRepository) Save(ctx context.Context, log *models.PortalLeadLog) error {
	if log.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		log.ID = id
	}

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(log.Payload)
	if err != nil {
		return persistence.NewRecordError("Save", "lead log", log.ID, fmt.Errorf("failed to marshal payload: %w", err))
	}

	query := `
		INSERT INTO portal_leads_log (id, portal, payload, status, error, contact_id, conversation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			portal = EXCLUDED.portal
		  , payload = EXCLUDED.payload
		  , status = EXCLUDED.status
		  , error = EXCLUDED.error
		  , contact_id = EXCLUDED.contact_id
		  , conversation_id = EXCLUDED.conversation_id
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.Portal, payload, string(log.Status), log.Error, log.ContactID, log.ConversationID, log.CreatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "lead log", log.ID, err)
	}

	return nil
}

func (r *LeadLogRepository) List(ctx context.Context, limit int) ([]*models.PortalLeadLog, error) {
	var limitArg any = limit
	if limit <= 0 {
		limitArg = nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+leadLogColumns+" FROM portal_leads_log ORDER BY created_at DESC LIMIT $1", limitArg)
	if err != nil {
		return nil, persistence.NewRecordError("List", "lead log", "", err)
	}

	defer r.closeRows(ctx, rows)

	logs := make([]*models.PortalLeadLog, 0)

	for rows.Next() {
		log, err := scanLeadLog(rows)
		if err != nil {
			return nil, persistence.NewRecordError("List", "lead log", "", err)
		}

		logs = append(logs, log)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewRecordError("List", "lead log", "", err)
	}

	return logs, nil
}

func scanLeadLog(row scanner) (*models.PortalLeadLog, error) {
	var (
		log     models.PortalLeadLog
		payload []byte
		status  string
	)

	err := row.Scan(
		&log.ID,
		&log.Portal,
		&payload,
		&status,
		&log.Error,
		&log.ContactID,
		&log.ConversationID,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	log.Status = models.LeadLogStatus(status)

	if len(payload) > 0 {
		err = json.Unmarshal(payload, &log.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &log, nil
}
