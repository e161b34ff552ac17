// Package reengagement follows up on conversations the contact stopped
// answering.
package reengagement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/corretor-crm/corretor/pkg/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultThreshold   = 24 * time.Hour
	DefaultMaxAttempts = 3
)

const instruction = `O cliente não responde há algum tempo. Escreva uma única mensagem curta de WhatsApp ` +
	`retomando a conversa de forma natural, sem repetir mensagens anteriores. Esta é a tentativa %d de %d.`

// fallbackMessages are used, by attempt, when no LLM is configured or it fails.
var fallbackMessages = []string{
	"Olá{{ with firstName .nome }} {{ . }}{{ end }}! Ainda posso ajudar na sua busca por um imóvel?",
	"Oi{{ with firstName .nome }} {{ . }}{{ end }}, passando para saber se você ainda tem interesse. Estou à disposição!",
	"{{ with firstName .nome }}{{ . }}, {{ end }}vou encerrar o atendimento por aqui. Quando precisar, é só chamar!",
}

// Result summarizes one reengagement pass.
type Result struct {
	Checked int      `json:"checked"`
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// Runner sends reengagement messages to open conversations whose last
// message is outbound and older than the department threshold.
type Runner struct {
	persistence persistence.Persistence
	settings    *services.Settings
	messenger   *services.Messenger
	completer   llm.Completer
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       func() time.Time
	threshold   time.Duration
	maxAttempts int
}

type Option func(*Runner)

// WithThreshold sets the silence after which a conversation is followed up,
// for departments without reengagement_hours.
func WithThreshold(threshold time.Duration) Option {
	return func(r *Runner) {
		if threshold > 0 {
			r.threshold = threshold
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(r *Runner) { r.clock = clock }
}

// NewRunner builds a Runner. completer may be nil; the fixed messages are
// used then.
func NewRunner(
	persistence persistence.Persistence,
	settings *services.Settings,
	messenger *services.Messenger,
	completer llm.Completer,
	logger *slog.Logger,
	opts ...Option,
) *Runner {
	r := &Runner{
		persistence: persistence,
		settings:    settings,
		messenger:   messenger,
		completer:   completer,
		logger:      logger.With("module", "reengagement"),
		tracer:      otelhelper.Tracer("corretor/reengagement"),
		clock:       time.Now,
		threshold:   DefaultThreshold,
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RunOnce runs a single reengagement pass.
func (r *Runner) RunOnce(ctx context.Context) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "reengagement.run")
	defer span.End()

	now := r.clock().UTC()

	candidates, err := r.persistence.ConversationRepository().ListAwaitingReply(ctx, now, r.maxAttempts)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list conversations awaiting reply: %w", err)
	}

	result := &Result{Errors: []string{}}
	thresholds := map[models.Department]time.Duration{}

	for _, conversation := range candidates {
		result.Checked++

		threshold, ok := thresholds[conversation.Department]
		if !ok {
			threshold = r.departmentThreshold(ctx, conversation.Department)
			thresholds[conversation.Department] = threshold
		}

		if conversation.LastMessageAt == nil || now.Sub(*conversation.LastMessageAt) < threshold {
			result.Skipped++

			continue
		}

		err := r.reengage(ctx, conversation)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", conversation.ID, err))
			r.logger.ErrorContext(ctx, "Failed to reengage conversation", "conversation_id", conversation.ID, "error", err)

			continue
		}

		result.Sent++
	}

	span.SetAttributes(attribute.Int("corretor.reengagement.sent", result.Sent))

	r.logger.InfoContext(ctx, "Reengagement pass finished",
		"checked", result.Checked, "sent", result.Sent, "skipped", result.Skipped, "failed", result.Failed)

	return result, nil
}

func (r *Runner) departmentThreshold(ctx context.Context, department models.Department) time.Duration {
	if !department.Valid() {
		return r.threshold
	}

	behavior, err := r.settings.Behavior(ctx, department)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to load behavior config", "department", department, "error", err)

		return r.threshold
	}

	if behavior.ReengagementHours > 0 {
		return time.Duration(behavior.ReengagementHours) * time.Hour
	}

	return r.threshold
}

func (r *Runner) reengage(ctx context.Context, conversation *models.Conversation) error {
	text := r.compose(ctx, conversation)

	_, err := r.messenger.SendOutbound(ctx, conversation, text, services.SenderReengagement, 0)
	if err != nil {
		return err
	}

	conversation.ReengagementCount++

	err = r.persistence.ConversationRepository().Save(ctx, conversation)
	if err != nil {
		return fmt.Errorf("failed to update reengagement count: %w", err)
	}

	return nil
}

// compose asks the LLM for the follow-up and falls back to the fixed message
// of the attempt.
func (r *Runner) compose(ctx context.Context, conversation *models.Conversation) string {
	attempt := conversation.ReengagementCount + 1

	if r.completer != nil {
		text, err := r.generate(ctx, conversation, attempt)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}

		r.logger.WarnContext(ctx, "Falling back to fixed reengagement message",
			"conversation_id", conversation.ID, "error", err)
	}

	return r.fallback(ctx, conversation, attempt)
}

func (r *Runner) generate(ctx context.Context, conversation *models.Conversation, attempt int) (string, error) {
	systemPrompt, err := r.settings.Prompt(ctx, conversation.Department)
	if err != nil {
		return "", err
	}

	history, err := r.persistence.MessageRepository().ListByConversation(ctx, conversation.ID, services.DefaultHistoryLimit)
	if err != nil {
		return "", err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		role := llm.RoleUser
		if msg.Direction == models.MessageDirectionOutbound {
			role = llm.RoleAssistant
		}

		messages = append(messages, llm.Message{Role: role, Content: msg.Body})
	}

	return r.completer.Complete(ctx, llm.Request{
		System:   systemPrompt.Text + "\n\n" + fmt.Sprintf(instruction, attempt, r.maxAttempts),
		Messages: messages,
	})
}

func (r *Runner) fallback(ctx context.Context, conversation *models.Conversation, attempt int) string {
	tpl := fallbackMessages[min(attempt, len(fallbackMessages))-1]

	vars := map[string]any{"nome": ""}

	contact, err := r.persistence.ContactRepository().GetByID(ctx, conversation.ContactID)
	if err == nil {
		vars["nome"] = contact.Name
	}

	text, err := template.RenderString(tpl, vars)
	if err != nil {
		return strings.TrimSpace(tpl)
	}

	return text
}
