package web

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/corretor-crm/corretor/pkg/integrations/n8n"
	"github.com/corretor-crm/corretor/pkg/reengagement"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Reengager runs one reengagement pass.
type Reengager interface {
	RunOnce(ctx context.Context) (*reengagement.Result, error)
}

// WebhookHandlers serves the endpoints under /functions/v1 that portals,
// landing pages, the WhatsApp gateway and N8N call.
type WebhookHandlers struct {
	settings     *services.Settings
	leads        *services.Leads
	communicator *services.Communicator
	importer     *services.Importer
	reengager    Reengager
	validator    *validator.Validate
	logger       *slog.Logger
}

func NewWebhookHandlers(
	settings *services.Settings,
	leads *services.Leads,
	communicator *services.Communicator,
	importer *services.Importer,
	reengager Reengager,
	validator *validator.Validate,
	logger *slog.Logger,
) *WebhookHandlers {
	return &WebhookHandlers{
		settings:     settings,
		leads:        leads,
		communicator: communicator,
		importer:     importer,
		reengager:    reengager,
		validator:    validator,
		logger:       logger.With("module", "webhooks"),
	}
}

// Register mounts the webhook routes on router, behind the token check.
func (h *WebhookHandlers) Register(router fiber.Router) {
	fn := router.Group("/functions/v1", h.RequireToken)
	fn.Post("/portal-leads-webhook", h.PortalLead)
	fn.Post("/landing-page-webhook", h.LandingPageLead)
	fn.Post("/ai-communicator", h.Communicate)
	fn.Post("/ai-reengagement", h.Reengage)
	fn.Post("/import-contacts", h.ImportContacts)
	fn.Post("/n8n-callback", h.N8NCallback)
}

// RequireToken rejects requests whose token query parameter does not match
// the webhook_token setting.
func (h *WebhookHandlers) RequireToken(c fiber.Ctx) error {
	err := h.settings.VerifyWebhookToken(c.Context(), c.Query("token"))
	if err != nil {
		if !services.IsUnauthorizedError(err) {
			h.logger.ErrorContext(c.Context(), "Failed to verify webhook token", "error", err)
		}

		return webhookError(c, err)
	}

	return c.Next()
}

func (h *WebhookHandlers) PortalLead(c fiber.Ctx) error {
	payload, err := decodeObject(c.Body())
	if err != nil {
		return webhookError(c, err)
	}

	result, err := h.leads.IngestPortalLead(c.Context(), c.Query("portal"), payload)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(result)
}

func (h *WebhookHandlers) LandingPageLead(c fiber.Ctx) error {
	payload, err := decodeObject(c.Body())
	if err != nil {
		return webhookError(c, err)
	}

	result, err := h.leads.IngestLandingPageLead(c.Context(), payload)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(result)
}

func (h *WebhookHandlers) Communicate(c fiber.Ctx) error {
	var req services.InboundMessage
	if err := c.Bind().JSON(&req); err != nil {
		return webhookError(c, invalid("invalid JSON body"))
	}

	if err := h.validator.Struct(req); err != nil {
		return webhookError(c, invalid(err.Error()))
	}

	result, err := h.communicator.Receive(c.Context(), req)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(result)
}

func (h *WebhookHandlers) Reengage(c fiber.Ctx) error {
	result, err := h.reengager.RunOnce(c.Context())
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(result)
}

// ImportContacts accepts a CSV body (Content-Type containing "csv"), a JSON
// array of contacts or an object with a "contacts" array.
func (h *WebhookHandlers) ImportContacts(c fiber.Ctx) error {
	var rows []services.ImportRow

	if strings.Contains(strings.ToLower(c.Get(fiber.HeaderContentType)), "csv") {
		parsed, err := services.ParseCSV(bytes.NewReader(c.Body()))
		if err != nil {
			return webhookError(c, err)
		}

		rows = parsed
	} else {
		contacts, err := h.decodeContacts(c.Body())
		if err != nil {
			return webhookError(c, err)
		}

		rows = make([]services.ImportRow, 0, len(contacts))
		for _, contact := range contacts {
			rows = append(rows, services.ImportRow{
				Name:       contact.Name,
				Phone:      contact.Phone,
				Email:      contact.Email,
				Department: contact.Department,
				Tags:       contact.Tags,
			})
		}
	}

	result, err := h.importer.Import(c.Context(), rows)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(result)
}

func (h *WebhookHandlers) decodeContacts(body []byte) ([]ImportContact, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, invalid("request body is empty")
	}

	if trimmed[0] == '[' {
		var contacts []ImportContact
		if err := json.Unmarshal(trimmed, &contacts); err != nil {
			return nil, invalid("invalid JSON body")
		}

		return contacts, nil
	}

	var req ImportContactsRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, invalid("invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, invalid(err.Error())
	}

	return req.Contacts, nil
}

func (h *WebhookHandlers) N8NCallback(c fiber.Ctx) error {
	var req n8n.Callback
	if err := c.Bind().JSON(&req); err != nil {
		return webhookError(c, invalid("invalid JSON body"))
	}

	message, err := h.communicator.Callback(c.Context(), req)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(message)
}

// decodeObject decodes a JSON object keeping numbers as json.Number, so
// phone numbers sent as numbers keep every digit.
func decodeObject(body []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, invalid("invalid JSON body")
	}

	object, ok := payload.(map[string]any)
	if !ok {
		return nil, invalid("request body must be a JSON object")
	}

	return object, nil
}

func invalid(message string) error {
	return services.NewValidationError("webhook", "INVALID_REQUEST", message, services.ErrInvalidRequest)
}

