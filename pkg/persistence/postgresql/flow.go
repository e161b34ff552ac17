package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	repository
}

const flowColumns = `
	id
  , name
  , description
  , department
  , nodes
  , edges
  , is_active
  , created_at
  , updated_at
`

// ListFlows returns paginated and filtered flows.
func (r *FlowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if !slices.Contains(persistence.AllowedFlowSorts, opts.SortBy) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	order := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		order = "ASC"
	}

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)

	if opts.Department != nil {
		args = append(args, string(*opts.Department))
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}

	if opts.Active != nil {
		args = append(args, *opts.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_flows "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)

	// SortBy is checked against AllowedFlowSorts above.
	query := fmt.Sprintf("SELECT %s FROM ai_flows %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d",
		flowColumns, where, opts.SortBy, order, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer r.closeRows(ctx, rows)

	flows := make([]*models.Flow, 0, opts.Limit)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return &persistence.FlowListResult{
		Flows:       flows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(flows)) < totalCount,
	}, nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+flowColumns+" FROM ai_flows WHERE id = $1", id)

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	return flow, nil
}

// Save inserts or updates the flow.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		flow.ID = id
	}

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	nodes, err := json.Marshal(nonNil(flow.Nodes))
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, fmt.Errorf("failed to marshal nodes: %w", err))
	}

	edges, err := json.Marshal(nonNil(flow.Edges))
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, fmt.Errorf("failed to marshal edges: %w", err))
	}

	query := `
		INSERT INTO ai_flows (id, name, description, department, nodes, edges, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , department = EXCLUDED.department
		  , nodes = EXCLUDED.nodes
		  , edges = EXCLUDED.edges
		  , is_active = EXCLUDED.is_active
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID, flow.Name, flow.Description, string(flow.Department),
		nodes, edges, flow.IsActive, flow.CreatedAt, flow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ai_flows WHERE id = $1", id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

func (r *FlowRepository) ActiveByDepartment(ctx context.Context, department models.Department) (*models.Flow, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+flowColumns+" FROM ai_flows WHERE department = $1 AND is_active", string(department))

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDepartmentFlowError("ActiveByDepartment", string(department), persistence.ErrNoActiveFlow)
		}

		return nil, persistence.NewDepartmentFlowError("ActiveByDepartment", string(department), err)
	}

	return flow, nil
}

// Activate clears the other active flows of the department and marks id
// active in one transaction.
func (r *FlowRepository) Activate(ctx context.Context, id string) (*models.Flow, error) {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence.NewFlowError("Activate", id, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	var department string

	err = transaction.QueryRowContext(ctx, "SELECT department FROM ai_flows WHERE id = $1 FOR UPDATE", id).Scan(&department)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("Activate", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("Activate", id, err)
	}

	now := time.Now().UTC()

	_, err = transaction.ExecContext(ctx,
		"UPDATE ai_flows SET is_active = FALSE, updated_at = $1 WHERE department = $2 AND is_active AND id <> $3",
		now, department, id)
	if err != nil {
		return nil, persistence.NewFlowError("Activate", id, fmt.Errorf("failed to deactivate flows: %w", err))
	}

	row := transaction.QueryRowContext(ctx,
		"UPDATE ai_flows SET is_active = TRUE, updated_at = $1 WHERE id = $2 RETURNING "+flowColumns, now, id)

	flow, err := scanFlow(row)
	if err != nil {
		return nil, persistence.NewFlowError("Activate", id, err)
	}

	err = transaction.Commit()
	if err != nil {
		return nil, persistence.NewFlowError("Activate", id, fmt.Errorf("failed to commit: %w", err))
	}

	return flow, nil
}

func scanFlow(row scanner) (*models.Flow, error) {
	var (
		flow         models.Flow
		department   string
		nodes, edges []byte
	)

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&department,
		&nodes,
		&edges,
		&flow.IsActive,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.Department = models.Department(department)

	err = json.Unmarshal(nodes, &flow.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	err = json.Unmarshal(edges, &flow.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	return &flow, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}
