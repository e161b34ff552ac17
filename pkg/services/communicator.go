package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corretor-crm/corretor/pkg/integrations/n8n"
	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/phone"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultHistoryLimit is the number of past messages sent to the LLM.
const DefaultHistoryLimit = 20

// Reply modes of an inbound message.
const (
	ReplyModeFlow = "flow"
	ReplyModeAI   = "ai"
	ReplyModeNone = "none"
)

// InboundMessage is a WhatsApp message received by ai-communicator.
type InboundMessage struct {
	Phone      string `json:"phone" validate:"required"`
	Message    string `json:"message" validate:"required"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
}

// InboundResult reports how an inbound message was handled.
type InboundResult struct {
	ContactID      string            `json:"contact_id"`
	ConversationID string            `json:"conversation_id"`
	MessageID      string            `json:"message_id"`
	Department     models.Department `json:"department"`
	Mode           string            `json:"mode"`
	Reply          *models.Message   `json:"reply,omitempty"`
	ReplyError     string            `json:"reply_error,omitempty"`
}

// Communicator receives WhatsApp messages and answers them with the AI agent
// when the department has no published flow. Flow replies are produced by
// the FlowRunner from the message.created event.
type Communicator struct {
	persistence  persistence.Persistence
	settings     *Settings
	messenger    *Messenger
	completer    llm.Completer
	logger       *slog.Logger
	tracer       trace.Tracer
	historyLimit int
}

// NewCommunicator builds a Communicator. completer may be nil, in which case
// messages are stored without an AI reply.
func NewCommunicator(
	persistence persistence.Persistence,
	settings *Settings,
	messenger *Messenger,
	completer llm.Completer,
	logger *slog.Logger,
) *Communicator {
	return &Communicator{
		persistence:  persistence,
		settings:     settings,
		messenger:    messenger,
		completer:    completer,
		logger:       logger.With("module", "communicator"),
		tracer:       otelhelper.Tracer("corretor/services/communicator"),
		historyLimit: DefaultHistoryLimit,
	}
}

// Receive stores an inbound message and replies to it.
func (c *Communicator) Receive(ctx context.Context, in InboundMessage) (*InboundResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "communicator.receive")
	defer span.End()

	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, NewValidationError("Receive", "EMPTY_MESSAGE", "message is required", ErrInvalidRequest)
	}

	number, err := phone.Parse(in.Phone)
	if err != nil {
		return nil, NewValidationError("Receive", "INVALID_PHONE", fmt.Sprintf("invalid phone '%s'", in.Phone), ErrInvalidPhone)
	}

	department, err := c.department(ctx, in.Department)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.DepartmentKey, string(department)))

	contact, _, err := upsertContact(ctx, c.persistence, contactDetails{
		Phone:      number,
		Name:       in.Name,
		Department: department,
		Source:     "whatsapp",
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	conversation, err := openConversation(ctx, c.persistence, contact, department)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ConversationIDKey, conversation.ID))

	message, err := c.messenger.RecordInbound(ctx, conversation, text)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	result := &InboundResult{
		ContactID:      contact.ID,
		ConversationID: conversation.ID,
		MessageID:      message.ID,
		Department:     department,
		Mode:           ReplyModeNone,
	}

	_, err = c.persistence.FlowRepository().ActiveByDepartment(ctx, department)

	switch {
	case err == nil:
		result.Mode = ReplyModeFlow

		return result, nil
	case !persistence.IsNotFound(err):
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to look up active flow: %w", err)
	}

	if c.completer == nil {
		return result, nil
	}

	result.Mode = ReplyModeAI

	reply, err := c.reply(ctx, conversation)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to reply with AI", "conversation_id", conversation.ID, "error", err)
		otelhelper.SetError(span, err)

		result.ReplyError = err.Error()
		result.Reply = reply

		return result, nil
	}

	result.Reply = reply

	return result, nil
}

// reply asks the LLM for the next agent message and queues it.
func (c *Communicator) reply(ctx context.Context, conversation *models.Conversation) (*models.Message, error) {
	systemPrompt, err := c.settings.Prompt(ctx, conversation.Department)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	history, err := c.persistence.MessageRepository().ListByConversation(ctx, conversation.ID, c.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	text, err := c.completer.Complete(ctx, llm.Request{
		System:   systemPrompt.Text,
		Messages: toLLMHistory(history),
	})
	if err != nil {
		return nil, err
	}

	return c.messenger.SendOutbound(ctx, conversation, text, SenderAI, 0)
}

// Callback queues the message an N8N workflow posted back. The conversation
// is taken from the callback, or found by phone and department.
func (c *Communicator) Callback(ctx context.Context, callback n8n.Callback) (*models.Message, error) {
	text := strings.TrimSpace(callback.Message)
	if text == "" {
		return nil, NewValidationError("Callback", "EMPTY_MESSAGE", "message is required", ErrInvalidRequest)
	}

	var conversation *models.Conversation

	if callback.ConversationID != "" {
		found, err := c.persistence.ConversationRepository().GetByID(ctx, callback.ConversationID)
		if err != nil {
			return nil, err
		}

		conversation = found
	} else {
		number, err := phone.Parse(callback.Phone)
		if err != nil {
			return nil, NewValidationError("Callback", "INVALID_PHONE",
				"conversation_id or a valid phone is required", ErrInvalidPhone)
		}

		department, err := c.department(ctx, callback.Department)
		if err != nil {
			return nil, err
		}

		contact, _, err := upsertContact(ctx, c.persistence, contactDetails{Phone: number, Department: department, Source: "n8n"})
		if err != nil {
			return nil, err
		}

		conversation, err = openConversation(ctx, c.persistence, contact, department)
		if err != nil {
			return nil, err
		}
	}

	return c.messenger.SendOutbound(ctx, conversation, text, SenderN8N, 0)
}

// department picks the explicit department, then the active_department
// setting, then vendas.
func (c *Communicator) department(ctx context.Context, raw string) (models.Department, error) {
	if raw != "" {
		department, err := models.ParseDepartment(raw)
		if err != nil {
			return "", NewValidationError("department", "INVALID_DEPARTMENT", err.Error(), ErrInvalidDepartment)
		}

		return department, nil
	}

	active, err := c.settings.ActiveDepartment(ctx)
	if err != nil {
		return "", err
	}

	if active != "" {
		return active, nil
	}

	return models.DepartmentVendas, nil
}

func toLLMHistory(messages []*models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))

	for _, msg := range messages {
		role := llm.RoleUser
		if msg.Direction == models.MessageDirectionOutbound {
			role = llm.RoleAssistant
		}

		out = append(out, llm.Message{Role: role, Content: msg.Body})
	}

	return out
}
