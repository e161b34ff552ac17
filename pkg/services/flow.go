package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/corretor-crm/corretor/pkg/eventbus"
	"github.com/corretor-crm/corretor/pkg/events"
	"github.com/corretor-crm/corretor/pkg/flow"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Flow manages flow-builder flows: CRUD, publishing and test runs.
type Flow struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	intents     flow.IntentResolver
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewFlow creates a new flow service. intents may be nil.
func NewFlow(
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	intents flow.IntentResolver,
	logger *slog.Logger,
) *Flow {
	return &Flow{
		persistence: persistence,
		publisher:   publisher,
		intents:     intents,
		logger:      logger.With("module", "flow_service"),
		tracer:      otelhelper.Tracer("corretor/services/flow"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListFlowsRequest contains options for listing flows.
type ListFlowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Department *models.Department
	Active     *bool

	// Sorting
	SortBy    string
	SortOrder string
}

// ListFlows retrieves flows with filtering, sorting, and pagination.
func (f *Flow) ListFlows(ctx context.Context, req ListFlowsRequest) (*persistence.FlowListResult, error) {
	err := validateListFlowsRequest(&req)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	result, err := f.persistence.FlowRepository().ListFlows(ctx, persistence.ListFlowsOptions{
		Limit:      req.Limit,
		Offset:     req.Offset,
		Department: req.Department,
		Active:     req.Active,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return result, nil
}

// validateListFlowsRequest validates and sets defaults for the request.
func validateListFlowsRequest(req *ListFlowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	if !slices.Contains(persistence.AllowedFlowSorts, req.SortBy) {
		return NewValidationError(
			"validateListFlowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(persistence.AllowedFlowSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListFlowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Department != nil && !req.Department.Valid() {
		return NewValidationError(
			"validateListFlowsRequest",
			"INVALID_DEPARTMENT",
			fmt.Sprintf("invalid department '%s'", *req.Department),
			ErrInvalidDepartment,
		)
	}

	return nil
}

// FetchByID retrieves a flow by its ID.
func (f *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	return f.persistence.FlowRepository().GetByID(ctx, id)
}

// CreateFlowRequest creates a blank flow or a copy of a built-in template.
type CreateFlowRequest struct {
	Name        string
	Description string
	Department  models.Department
	TemplateID  string
}

// Create stores a new, inactive flow.
func (f *Flow) Create(ctx context.Context, req CreateFlowRequest) (*models.Flow, error) {
	if !req.Department.Valid() {
		return nil, NewValidationError("Create", "INVALID_DEPARTMENT",
			fmt.Sprintf("invalid department '%s'", req.Department), ErrInvalidDepartment)
	}

	templateID := req.TemplateID
	if templateID == "" {
		templateID = flow.BlankTemplateID
	}

	tpl, ok := flow.TemplateByID(templateID)
	if !ok {
		return nil, NewValidationError("Create", "UNKNOWN_TEMPLATE",
			fmt.Sprintf("unknown template '%s'", templateID), ErrUnknownTemplate)
	}

	description := req.Description
	if description == "" {
		description = tpl.Description
	}

	created := &models.Flow{
		Name:        req.Name,
		Description: description,
		Department:  req.Department,
		Nodes:       tpl.Nodes,
		Edges:       tpl.Edges,
	}

	err := f.persistence.FlowRepository().Save(ctx, created)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	return created, nil
}

// UpdateFlowRequest replaces the editable parts of a flow. Nil fields are kept.
type UpdateFlowRequest struct {
	Name        *string
	Description *string
	Department  *models.Department
	Nodes       []*models.Node
	Edges       []*models.Edge
}

// Update saves the canvas of a flow. An active flow must stay valid, and
// cannot move to another department.
func (f *Flow) Update(ctx context.Context, id string, req UpdateFlowRequest) (*models.Flow, error) {
	existing, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Department != nil && *req.Department != existing.Department {
		if !req.Department.Valid() {
			return nil, NewValidationError("Update", "INVALID_DEPARTMENT",
				fmt.Sprintf("invalid department '%s'", *req.Department), ErrInvalidDepartment)
		}

		if existing.IsActive {
			return nil, &ServiceError{Op: "Update", Code: "FLOW_ACTIVE",
				Message: "deactivate the flow before moving it to another department", Err: ErrFlowActive}
		}

		existing.Department = *req.Department
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
	}

	if req.Edges != nil {
		existing.Edges = req.Edges
	}

	if existing.IsActive {
		err = flow.Validate(existing)
		if err != nil {
			return nil, err
		}
	}

	err = f.persistence.FlowRepository().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	return existing, nil
}

// Delete removes a flow. Active flows must be deactivated first.
func (f *Flow) Delete(ctx context.Context, id string) error {
	existing, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing.IsActive {
		return &ServiceError{Op: "Delete", Code: "FLOW_ACTIVE",
			Message: "deactivate the flow before deleting it", Err: ErrFlowActive}
	}

	err = f.persistence.FlowRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	return nil
}

// Publish validates the flow and makes it the only active flow of its department.
func (f *Flow) Publish(ctx context.Context, id string) (*models.Flow, error) {
	ctx, span := otelhelper.StartSpan(ctx, f.tracer, "flow.publish", attribute.String(otelhelper.FlowIDKey, id))
	defer span.End()

	existing, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	err = flow.Validate(existing)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	published, err := f.persistence.FlowRepository().Activate(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to publish flow: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.DepartmentKey, string(published.Department)))

	event := events.FlowPublished{
		BaseEvent:  events.NewBaseEvent(events.FlowPublishedEvent),
		FlowID:     published.ID,
		Department: published.Department,
	}

	err = f.publisher.Publish(ctx, published.ID, event)
	if err != nil {
		f.logger.ErrorContext(ctx, "Failed to publish flow.published event", "flow_id", id, "error", err)
	}

	f.logger.InfoContext(ctx, "Flow published", "flow_id", id, "department", published.Department)

	return published, nil
}

// Deactivate turns the live automation of a flow off.
func (f *Flow) Deactivate(ctx context.Context, id string) (*models.Flow, error) {
	existing, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !existing.IsActive {
		return existing, nil
	}

	existing.IsActive = false

	err = f.persistence.FlowRepository().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate flow: %w", err)
	}

	return existing, nil
}

// TestFlowRequest simulates a conversation against a flow.
type TestFlowRequest struct {
	Inputs    []string
	Variables map[string]any
	Tags      []string
}

// Test runs the flow in a sandbox session. Nothing is stored or sent.
func (f *Flow) Test(ctx context.Context, id string, req TestFlowRequest) (*flow.Result, error) {
	existing, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return f.TestDefinition(ctx, existing, req)
}

// TestDefinition runs an unsaved flow definition, as drawn on the canvas.
func (f *Flow) TestDefinition(ctx context.Context, definition *models.Flow, req TestFlowRequest) (*flow.Result, error) {
	if definition.StartNode() == nil {
		return nil, NewValidationError("Test", "NO_START_NODE", flow.ErrNoStartNode.Error(), ErrInvalidFlow)
	}

	opts := []flow.Option{
		flow.WithLogger(f.logger),
		flow.WithVariables(req.Variables),
		flow.WithTags(req.Tags),
	}

	if f.intents != nil {
		opts = append(opts, flow.WithIntentResolver(f.intents))
	}

	result, err := flow.Run(ctx, definition, req.Inputs, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to run flow: %w", err)
	}

	return result, nil
}

// Templates lists the built-in flow templates.
func (f *Flow) Templates() []models.FlowTemplate {
	return flow.Templates()
}
