package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/corretor-crm/corretor/pkg/eventbus"
	"github.com/corretor-crm/corretor/pkg/events"
	"github.com/corretor-crm/corretor/pkg/flow"
	"github.com/corretor-crm/corretor/pkg/integrations"
	"github.com/corretor-crm/corretor/pkg/integrations/c2s"
	"github.com/corretor-crm/corretor/pkg/integrations/clickup"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/phone"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Lead sources.
const (
	SourcePortal      = "portal"
	SourceLandingPage = "landing_page"
)

var stringOrNumber = map[string]any{"type": []string{"string", "number"}}

// PortalLeadSchema validates portal-leads-webhook payloads.
var PortalLeadSchema = map[string]any{
	"type":     "object",
	"required": []string{"phone"},
	"properties": map[string]any{
		"name":             map[string]any{"type": "string"},
		"phone":            stringOrNumber,
		"email":            map[string]any{"type": "string"},
		"message":          map[string]any{"type": "string"},
		"listing_id":       stringOrNumber,
		"portal":           map[string]any{"type": "string"},
		"transaction_type": map[string]any{"type": "string"},
		"tags":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

// LandingPageLeadSchema validates landing-page-webhook payloads.
var LandingPageLeadSchema = map[string]any{
	"type":     "object",
	"required": []string{"name", "phone"},
	"properties": map[string]any{
		"name":       map[string]any{"type": "string", "minLength": 1},
		"phone":      stringOrNumber,
		"email":      map[string]any{"type": "string"},
		"message":    map[string]any{"type": "string"},
		"interest":   map[string]any{"type": "string"},
		"page":       map[string]any{"type": "string"},
		"utm_source": map[string]any{"type": "string"},
	},
}

// LeadResult reports what ingestion did with a lead.
type LeadResult struct {
	LeadLogID      string            `json:"lead_log_id"`
	ContactID      string            `json:"contact_id"`
	ConversationID string            `json:"conversation_id"`
	Department     models.Department `json:"department"`
	NewContact     bool              `json:"new_contact"`
	// Integrations maps integration name to ok, skipped or the failure message.
	Integrations map[string]string `json:"integrations"`
}

// Leads ingests leads from listing portals and landing pages.
type Leads struct {
	persistence  persistence.Persistence
	integrations *Integrations
	publisher    eventbus.EventPublisher
	logger       *slog.Logger
	tracer       trace.Tracer
}

func NewLeads(
	persistence persistence.Persistence,
	integrations *Integrations,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Leads {
	return &Leads{
		persistence:  persistence,
		integrations: integrations,
		publisher:    publisher,
		logger:       logger.With("module", "leads_service"),
		tracer:       otelhelper.Tracer("corretor/services/leads"),
	}
}

// IngestPortalLead handles a portal-leads-webhook payload. portal names the
// listing portal when the payload does not.
func (l *Leads) IngestPortalLead(ctx context.Context, portal string, payload map[string]any) (*LeadResult, error) {
	if name := stringField(payload, "portal"); name != "" {
		portal = name
	}

	if portal == "" {
		portal = "desconhecido"
	}

	err := validatePayload(PortalLeadSchema, payload)
	if err != nil {
		return nil, l.fail(ctx, portal, payload, err)
	}

	lead := models.Lead{
		Source:     SourcePortal,
		Portal:     portal,
		Name:       stringField(payload, "name"),
		Phone:      stringField(payload, "phone"),
		Email:      stringField(payload, "email"),
		Message:    stringField(payload, "message"),
		ListingID:  stringField(payload, "listing_id"),
		Department: LeadDepartment(stringField(payload, "transaction_type")),
		Tags:       append([]string{"lead", portal}, stringList(payload, "tags")...),
	}

	return l.Ingest(ctx, lead, payload)
}

// IngestLandingPageLead handles a landing-page-webhook payload.
func (l *Leads) IngestLandingPageLead(ctx context.Context, payload map[string]any) (*LeadResult, error) {
	portal := "landing_page"
	if source := stringField(payload, "utm_source"); source != "" {
		portal = "landing_page:" + source
	}

	err := validatePayload(LandingPageLeadSchema, payload)
	if err != nil {
		return nil, l.fail(ctx, portal, payload, err)
	}

	lead := models.Lead{
		Source:     SourceLandingPage,
		Portal:     portal,
		Name:       stringField(payload, "name"),
		Phone:      stringField(payload, "phone"),
		Email:      stringField(payload, "email"),
		Message:    stringField(payload, "message"),
		Department: LeadDepartment(stringField(payload, "interest")),
		Tags:       []string{"lead", "landing_page"},
	}

	return l.Ingest(ctx, lead, payload)
}

// Ingest stores a normalized lead: contact upsert, conversation, lead log,
// then the optional integrations and the lead.received event. Integration
// failures are reported in the result and never fail the ingestion.
func (l *Leads) Ingest(ctx context.Context, lead models.Lead, payload map[string]any) (*LeadResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "leads.ingest",
		attribute.String(otelhelper.LeadPortalKey, lead.Portal),
		attribute.String(otelhelper.DepartmentKey, string(lead.Department)),
	)
	defer span.End()

	number, err := phone.Parse(lead.Phone)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, l.fail(ctx, lead.Portal, payload,
			NewValidationError("Ingest", "INVALID_PHONE", fmt.Sprintf("invalid phone '%s'", lead.Phone), ErrInvalidPhone))
	}

	contact, created, err := upsertContact(ctx, l.persistence, contactDetails{
		Phone:      number,
		Name:       lead.Name,
		Email:      lead.Email,
		Department: lead.Department,
		Source:     lead.Source,
		Tags:       lead.Tags,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, l.fail(ctx, lead.Portal, payload, err)
	}

	conversation, err := openConversation(ctx, l.persistence, contact, lead.Department)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, l.fail(ctx, lead.Portal, payload, err)
	}

	span.SetAttributes(attribute.String(otelhelper.ConversationIDKey, conversation.ID))

	leadLog := &models.PortalLeadLog{
		Portal:         lead.Portal,
		Payload:        payload,
		Status:         models.LeadLogStatusProcessed,
		ContactID:      contact.ID,
		ConversationID: conversation.ID,
	}

	err = l.persistence.LeadLogRepository().Save(ctx, leadLog)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save lead log: %w", err)
	}

	result := &LeadResult{
		LeadLogID:      leadLog.ID,
		ContactID:      contact.ID,
		ConversationID: conversation.ID,
		Department:     lead.Department,
		NewContact:     created,
		Integrations:   l.forward(ctx, lead, number, conversation),
	}

	event := events.LeadReceived{
		BaseEvent:      events.NewBaseEvent(events.LeadReceivedEvent),
		LeadLogID:      leadLog.ID,
		Portal:         lead.Portal,
		ContactID:      contact.ID,
		ConversationID: conversation.ID,
		Department:     lead.Department,
	}

	err = l.publisher.Publish(ctx, conversation.ID, event)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish lead.received", "lead_log_id", leadLog.ID, "error", err)
	}

	l.logger.InfoContext(ctx, "Lead ingested",
		"portal", lead.Portal, "contact_id", contact.ID, "conversation_id", conversation.ID, "new_contact", created)

	return result, nil
}

func (l *Leads) forward(ctx context.Context, lead models.Lead, number string, conversation *models.Conversation) map[string]string {
	statuses := map[string]string{}

	record := func(name string, err error) {
		switch {
		case err == nil:
			statuses[name] = "ok"
		case errors.Is(err, integrations.ErrNotConfigured):
			statuses[name] = "skipped"
		default:
			statuses[name] = "failed: " + err.Error()
			l.logger.WarnContext(ctx, "Lead integration failed", "integration", name, "error", err)
		}
	}

	record(IntegrationClickUp, l.createTask(ctx, lead, number))
	record(IntegrationC2S, l.forwardC2S(ctx, lead, number))
	record("n8n", l.triggerN8N(ctx, lead, number, conversation))

	return statuses
}

func (l *Leads) createTask(ctx context.Context, lead models.Lead, number string) error {
	client, listID, err := l.integrations.ClickUp(ctx)
	if err != nil {
		return err
	}

	if listID == "" {
		return integrations.ErrNotConfigured
	}

	name := lead.Name
	if name == "" {
		name = number
	}

	description := fmt.Sprintf("Telefone: %s\nE-mail: %s\nOrigem: %s\nDepartamento: %s", number, lead.Email, lead.Portal, lead.Department)
	if lead.ListingID != "" {
		description += "\nImóvel: " + lead.ListingID
	}

	if lead.Message != "" {
		description += "\n\n" + lead.Message
	}

	_, err = client.CreateTask(ctx, listID, clickup.TaskRequest{
		Name:        "Lead: " + name,
		Description: description,
		Tags:        []string{string(lead.Department), lead.Source},
	})

	return err
}

func (l *Leads) forwardC2S(ctx context.Context, lead models.Lead, number string) error {
	client, err := l.integrations.C2S(ctx)
	if err != nil {
		return err
	}

	leadType := "sale"
	if lead.Department == models.DepartmentLocacao {
		leadType = "rent"
	}

	_, err = client.CreateLead(ctx, c2s.Lead{
		Name:        lead.Name,
		Phone:       number,
		Email:       lead.Email,
		Source:      lead.Portal,
		Description: lead.Message,
		ProductID:   lead.ListingID,
		Type:        leadType,
	})

	return err
}

func (l *Leads) triggerN8N(ctx context.Context, lead models.Lead, number string, conversation *models.Conversation) error {
	client, err := l.integrations.N8N(ctx)
	if err != nil {
		return err
	}

	return client.Trigger(ctx, string(events.LeadReceivedEvent), map[string]any{
		"name":            lead.Name,
		"phone":           number,
		"email":           lead.Email,
		"message":         lead.Message,
		"portal":          lead.Portal,
		"department":      lead.Department,
		"conversation_id": conversation.ID,
	})
}

// Recent returns the latest lead logs, newest first.
func (l *Leads) Recent(ctx context.Context, limit int) ([]*models.PortalLeadLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	return l.persistence.LeadLogRepository().List(ctx, limit)
}

// fail records the rejected lead in portal_leads_log and returns cause.
func (l *Leads) fail(ctx context.Context, portal string, payload map[string]any, cause error) error {
	leadLog := &models.PortalLeadLog{
		Portal:  portal,
		Payload: payload,
		Status:  models.LeadLogStatusFailed,
		Error:   cause.Error(),
	}

	err := l.persistence.LeadLogRepository().Save(ctx, leadLog)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to save failed lead log", "error", err)
	}

	l.logger.WarnContext(ctx, "Lead rejected", "portal", portal, "error", cause)

	return cause
}

// LeadDepartment maps a transaction type or interest to a department:
// rentals go to locacao, everything else to vendas.
func LeadDepartment(kind string) models.Department {
	switch flow.Fold(kind) {
	case "rent", "aluguel", "alugar", "locacao", "locar":
		return models.DepartmentLocacao
	default:
		return models.DepartmentVendas
	}
}

func validatePayload(schema, payload map[string]any) error {
	if payload == nil {
		return NewValidationError("validatePayload", "INVALID_PAYLOAD", "payload must be a JSON object", ErrInvalidPayload)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(payload))
	if err != nil {
		return NewValidationError("validatePayload", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return NewValidationError("validatePayload", "INVALID_PAYLOAD", strings.Join(details, "; "), ErrInvalidPayload)
	}

	return nil
}

func stringField(payload map[string]any, key string) string {
	switch value := payload[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return ""
	}
}

func stringList(payload map[string]any, key string) []string {
	raw, _ := payload[key].([]any)

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}

	return out
}
