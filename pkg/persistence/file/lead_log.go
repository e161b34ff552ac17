package file

import (
	"context"
	"slices"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// LeadLogRepository stores portal_leads_log rows.
type LeadLogRepository struct {
	p       *Persistence
	records collection[models.PortalLeadLog]
}

func (r *LeadLogRepository) GetByID(_ context.Context, id string) (*models.PortalLeadLog, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	log, err := r.records.read(id)
	if err != nil {
		return nil, notFoundOr("GetByID", "lead log", id, err, persistence.ErrLeadLogNotFound)
	}

	return log, nil
}

func (r *LeadLogRepository) Save(_ context.Context, log *models.PortalLeadLog) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

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

	err := r.records.write(log.ID, log)
	if err != nil {
		return persistence.NewRecordError("Save", "lead log", log.ID, err)
	}

	return nil
}

func (r *LeadLogRepository) List(_ context.Context, limit int) ([]*models.PortalLeadLog, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, persistence.NewRecordError("List", "lead log", "", err)
	}

	slices.SortStableFunc(all, func(a, b *models.PortalLeadLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}
