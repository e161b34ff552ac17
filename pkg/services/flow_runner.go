package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/corretor-crm/corretor/pkg/eventbus"
	"github.com/corretor-crm/corretor/pkg/events"
	"github.com/corretor-crm/corretor/pkg/flow"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRunnerBuffer is the number of inbound messages the runner holds
// while a previous one is being processed.
const DefaultRunnerBuffer = 256

// FlowRunner drives the published flow of a department for live WhatsApp
// conversations. It is fed by the realtime hub and processes messages one
// at a time, so a session never sees two inputs concurrently.
type FlowRunner struct {
	persistence persistence.Persistence
	messenger   *Messenger
	publisher   eventbus.EventPublisher
	intents     flow.IntentResolver
	logger      *slog.Logger
	tracer      trace.Tracer
	inbox       chan models.Message
	clock       func() time.Time
}

type FlowRunnerOption func(*FlowRunner)

// WithRunnerBuffer overrides DefaultRunnerBuffer.
func WithRunnerBuffer(size int) FlowRunnerOption {
	return func(r *FlowRunner) {
		if size > 0 {
			r.inbox = make(chan models.Message, size)
		}
	}
}

// WithRunnerClock sets the time source of time conditions.
func WithRunnerClock(clock func() time.Time) FlowRunnerOption {
	return func(r *FlowRunner) { r.clock = clock }
}

func NewFlowRunner(
	persistence persistence.Persistence,
	messenger *Messenger,
	publisher eventbus.EventPublisher,
	intents flow.IntentResolver,
	logger *slog.Logger,
	opts ...FlowRunnerOption,
) *FlowRunner {
	r := &FlowRunner{
		persistence: persistence,
		messenger:   messenger,
		publisher:   publisher,
		intents:     intents,
		logger:      logger.With("module", "flow_runner"),
		tracer:      otelhelper.Tracer("corretor/services/flow_runner"),
		inbox:       make(chan models.Message, DefaultRunnerBuffer),
		clock:       time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Listener returns the hub listener feeding the runner. Inbound inserts are
// queued without blocking; they are dropped with a warning when the buffer
// is full.
func (r *FlowRunner) Listener() realtime.Listener {
	return func(ctx context.Context, event realtime.Event) {
		if event.Kind != realtime.KindInsert || event.Message.Direction != models.MessageDirectionInbound {
			return
		}

		select {
		case r.inbox <- event.Message:
		default:
			r.logger.WarnContext(ctx, "Flow runner buffer full, dropping message",
				"message_id", event.Message.ID, "conversation_id", event.Message.ConversationID)
		}
	}
}

// Run processes queued messages until ctx is done.
func (r *FlowRunner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.inbox:
			err := r.Handle(ctx, msg)
			if err != nil {
				r.logger.ErrorContext(ctx, "Failed to run flow", "message_id", msg.ID,
					"conversation_id", msg.ConversationID, "error", err)
			}
		}
	}
}

// Handle advances the flow of the conversation msg belongs to. A waiting
// session receives msg as input. A new, finished or failed session starts
// over from the start node. Escalated sessions are left to the operators.
func (r *FlowRunner) Handle(ctx context.Context, msg models.Message) error {
	if msg.Direction != models.MessageDirectionInbound || msg.ConversationID == "" {
		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "flow_runner.handle",
		attribute.String(otelhelper.ConversationIDKey, msg.ConversationID),
		attribute.String(otelhelper.MessageIDKey, msg.ID),
	)
	defer span.End()

	conversation, err := r.persistence.ConversationRepository().GetByID(ctx, msg.ConversationID)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load conversation: %w", err)
	}

	if conversation.Status != models.ConversationStatusOpen {
		return nil
	}

	active, err := r.persistence.FlowRepository().ActiveByDepartment(ctx, conversation.Department)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil
		}

		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load active flow: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.FlowIDKey, active.ID))

	opts := []flow.Option{
		flow.WithIntentResolver(r.intents),
		flow.WithClock(r.clock),
		flow.WithLogger(r.logger),
	}

	snapshot, err := r.persistence.FlowSessionRepository().Get(ctx, conversation.ID)
	if err != nil && !persistence.IsNotFound(err) {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load flow session: %w", err)
	}

	resume := snapshot != nil && snapshot.FlowID == active.ID

	if resume && snapshot.Status == models.SessionStatusEscalated {
		return nil
	}

	var session *flow.Session

	if resume && snapshot.Status == models.SessionStatusWaitingInput {
		session = flow.Restore(active, *snapshot, opts...)

		err = session.Send(ctx, msg.Body)
	} else {
		contact, lookupErr := r.persistence.ContactRepository().GetByID(ctx, conversation.ContactID)
		if lookupErr != nil && !persistence.IsNotFound(lookupErr) {
			return fmt.Errorf("failed to load contact: %w", lookupErr)
		}

		session = flow.NewSession(active, append(opts, sessionSeed(conversation, contact)...)...)

		err = session.Start(ctx)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to advance flow %s: %w", active.ID, err)
	}

	r.deliver(ctx, conversation, session.Drain())

	result := session.Result()
	for _, escalation := range result.Escalations {
		r.escalate(ctx, conversation, active, escalation)
	}

	state := session.Snapshot(conversation.ID)

	err = r.persistence.FlowSessionRepository().Save(ctx, &state)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to save flow session: %w", err)
	}

	r.syncTags(ctx, conversation.ContactID, state.Tags)

	r.logger.DebugContext(ctx, "Flow advanced", "conversation_id", conversation.ID,
		"flow_id", active.ID, "status", state.Status, "node_id", state.CurrentNodeID)

	return nil
}

func sessionSeed(conversation *models.Conversation, contact *models.Contact) []flow.Option {
	variables := map[string]any{
		"telefone":     conversation.Phone,
		"departamento": string(conversation.Department),
	}

	if contact == nil {
		return []flow.Option{flow.WithVariables(variables)}
	}

	variables["nome"] = contact.Name
	variables["email"] = contact.Email

	return []flow.Option{flow.WithVariables(variables), flow.WithTags(contact.Tags)}
}

// deliver queues the bot messages of entries, each delayed by the waits and
// message delays that precede it.
func (r *FlowRunner) deliver(ctx context.Context, conversation *models.Conversation, entries []flow.TranscriptEntry) {
	var delay time.Duration

	for _, entry := range entries {
		switch entry.Kind {
		case flow.EntryKindWait:
			delay += entry.Delay
		case flow.EntryKindBot:
			delay += entry.Delay

			_, err := r.messenger.SendOutbound(ctx, conversation, entry.Text, SenderFlow, delay)
			if err != nil {
				r.logger.ErrorContext(ctx, "Failed to queue flow message",
					"conversation_id", conversation.ID, "node_id", entry.NodeID, "error", err)
			}
		}
	}
}

func (r *FlowRunner) escalate(ctx context.Context, conversation *models.Conversation, active *models.Flow, escalation flow.Escalation) {
	event := events.ConversationEscalated{
		BaseEvent:      events.NewBaseEvent(events.ConversationEscalatedEvent),
		ConversationID: conversation.ID,
		FlowID:         active.ID,
		NodeID:         escalation.NodeID,
		Reason:         escalation.Reason,
		Department:     escalation.Department,
		Priority:       escalation.Priority,
	}

	err := r.publisher.Publish(ctx, conversation.ID, event)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish escalation", "conversation_id", conversation.ID, "error", err)
	}

	r.logger.InfoContext(ctx, "Conversation escalated", "conversation_id", conversation.ID,
		"flow_id", active.ID, "reason", escalation.Reason)
}

// syncTags stores the tags the flow added or removed on the contact.
func (r *FlowRunner) syncTags(ctx context.Context, contactID string, tags []string) {
	if contactID == "" {
		return
	}

	contact, err := r.persistence.ContactRepository().GetByID(ctx, contactID)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to load contact for tag update", "contact_id", contactID, "error", err)

		return
	}

	if slices.Equal(contact.Tags, tags) || (len(contact.Tags) == 0 && len(tags) == 0) {
		return
	}

	contact.Tags = slices.Clone(tags)
	if contact.Tags == nil {
		contact.Tags = []string{}
	}

	err = r.persistence.ContactRepository().Save(ctx, contact)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to update contact tags", "contact_id", contactID, "error", err)
	}
}
