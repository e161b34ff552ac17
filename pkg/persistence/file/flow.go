package file

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/google/uuid"
)

// FlowRepository handles flow-related file operations.
type FlowRepository struct {
	p       *Persistence
	records collection[models.Flow]
}

// ListFlows returns paginated and filtered flows with in-memory operations.
func (r *FlowRepository) ListFlows(_ context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	if !slices.Contains(persistence.AllowedFlowSorts, opts.SortBy) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	r.p.mu.RLock()
	all, err := r.records.all()
	r.p.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	filtered := make([]*models.Flow, 0, len(all))

	for _, flow := range all {
		if opts.Department != nil && flow.Department != *opts.Department {
			continue
		}

		if opts.Active != nil && flow.IsActive != *opts.Active {
			continue
		}

		filtered = append(filtered, flow)
	}

	sortFlows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))
	if opts.Offset >= len(filtered) {
		return &persistence.FlowListResult{Flows: make([]*models.Flow, 0), TotalCount: totalCount}, nil
	}

	end := min(opts.Offset+opts.Limit, len(filtered))

	return &persistence.FlowListResult{
		Flows:       filtered[opts.Offset:end],
		TotalCount:  totalCount,
		HasNextPage: end < len(filtered),
	}, nil
}

// sortFlows sorts flows in-place based on the specified field and order.
func sortFlows(flows []*models.Flow, sortBy, sortOrder string) {
	sort.SliceStable(flows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "updated_at":
			less = flows[i].UpdatedAt.Before(flows[j].UpdatedAt)
		case "name":
			less = flows[i].Name < flows[j].Name
		default:
			less = flows[i].CreatedAt.Before(flows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	return r.get("GetByID", id)
}

func (r *FlowRepository) get(op, id string) (*models.Flow, error) {
	flow, err := r.records.read(id)
	if err != nil {
		if errors.Is(err, errRecordMissing) {
			return nil, persistence.NewFlowError(op, id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError(op, id, err)
	}

	return flow, nil
}

func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.save(flow)
}

func (r *FlowRepository) save(flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	err := r.records.write(flow.ID, flow)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	existed, err := r.records.remove(id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if !existed {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

func (r *FlowRepository) ActiveByDepartment(_ context.Context, department models.Department) (*models.Flow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, persistence.NewDepartmentFlowError("ActiveByDepartment", string(department), err)
	}

	for _, flow := range all {
		if flow.Department == department && flow.IsActive {
			return flow, nil
		}
	}

	return nil, persistence.NewDepartmentFlowError("ActiveByDepartment", string(department), persistence.ErrNoActiveFlow)
}

func (r *FlowRepository) Activate(_ context.Context, id string) (*models.Flow, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	target, err := r.get("Activate", id)
	if err != nil {
		return nil, err
	}

	all, err := r.records.all()
	if err != nil {
		return nil, persistence.NewFlowError("Activate", id, err)
	}

	for _, flow := range all {
		if flow.ID == id || flow.Department != target.Department || !flow.IsActive {
			continue
		}

		flow.IsActive = false

		err := r.save(flow)
		if err != nil {
			return nil, err
		}
	}

	target.IsActive = true

	err = r.save(target)
	if err != nil {
		return nil, err
	}

	return target, nil
}
