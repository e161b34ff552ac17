// Package realtime fans message rows out to in-process listeners. A single
// feed (the event bus) is deduplicated through a bounded set of recently seen
// message keys and redistributed by conversation and by phone.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/corretor-crm/corretor/pkg/eventbus"
	"github.com/corretor-crm/corretor/pkg/events"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/phone"
)

// Kind tells whether a message row was inserted or updated.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
)

// Event is one row change delivered to listeners.
type Event struct {
	Kind    Kind           `json:"kind"`
	Message models.Message `json:"message"`
}

// Listener receives events. It runs on the publishing goroutine and must not block.
type Listener func(ctx context.Context, event Event)

// Notifier is told about inbound messages of the active department.
type Notifier interface {
	Notify(ctx context.Context, msg models.Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg models.Message)

func (f NotifierFunc) Notify(ctx context.Context, msg models.Message) {
	f(ctx, msg)
}

// DepartmentLookup resolves the department of a conversation for messages
// that do not carry one.
type DepartmentLookup func(ctx context.Context, conversationID string) (models.Department, error)

type subscription struct {
	id       uint64
	listener Listener
}

// Hub is safe for concurrent use.
type Hub struct {
	logger   *slog.Logger
	notifier Notifier
	lookup   DepartmentLookup

	mu             sync.Mutex
	seen           *seenSet
	nextID         uint64
	activeDept     models.Department
	byConversation map[string][]subscription
	byPhone        map[string][]subscription
	all            []subscription
}

type Option func(*Hub)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(capacity int) Option {
	return func(h *Hub) { h.seen = newSeenSet(capacity) }
}

func WithNotifier(notifier Notifier) Option {
	return func(h *Hub) { h.notifier = notifier }
}

func WithDepartmentLookup(lookup DepartmentLookup) Option {
	return func(h *Hub) { h.lookup = lookup }
}

func WithActiveDepartment(dept models.Department) Option {
	return func(h *Hub) { h.activeDept = dept }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:         slog.New(slog.DiscardHandler),
		seen:           newSeenSet(DefaultCapacity),
		byConversation: make(map[string][]subscription),
		byPhone:        make(map[string][]subscription),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// SetActiveDepartment changes the department whose inbound messages trigger
// notifications. An empty department disables notifications.
func (h *Hub) SetActiveDepartment(dept models.Department) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.activeDept = dept
}

func (h *Hub) ActiveDepartment() models.Department {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.activeDept
}

// SubscribeConversation delivers the events of one conversation.
func (h *Hub) SubscribeConversation(conversationID string, listener Listener) func() {
	return h.subscribe(h.byConversation, conversationID, listener)
}

// SubscribePhone delivers the events of every conversation with phone.
func (h *Hub) SubscribePhone(number string, listener Listener) func() {
	return h.subscribe(h.byPhone, phone.Normalize(number), listener)
}

// SubscribeAll delivers every event.
func (h *Hub) SubscribeAll(listener Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.all = append(h.all, subscription{id: id, listener: listener})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		h.all = without(h.all, id)
	}
}

func (h *Hub) subscribe(index map[string][]subscription, key string, listener Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	index[key] = append(index[key], subscription{id: id, listener: listener})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		remaining := without(index[key], id)
		if len(remaining) == 0 {
			delete(index, key)

			return
		}

		index[key] = remaining
	}
}

func without(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))

	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}

	return out
}

// dedupeKey is the message ID for inserts and the (ID, status) pair for
// updates, so a status change is delivered once.
func dedupeKey(event Event) string {
	if event.Kind == KindUpdate {
		return event.Message.ID + "#" + string(event.Message.Status)
	}

	return event.Message.ID
}

// Publish delivers event to the interested listeners unless it was already
// seen. It reports whether the event was delivered.
func (h *Hub) Publish(ctx context.Context, event Event) bool {
	if event.Message.ID == "" {
		h.logger.WarnContext(ctx, "Dropping message event without id")

		return false
	}

	h.mu.Lock()

	if !h.seen.add(dedupeKey(event)) {
		h.mu.Unlock()

		return false
	}

	targets := make([]Listener, 0, len(h.all)+1)
	for _, sub := range h.byConversation[event.Message.ConversationID] {
		targets = append(targets, sub.listener)
	}

	if number := phone.Normalize(event.Message.Phone); number != "" {
		for _, sub := range h.byPhone[number] {
			targets = append(targets, sub.listener)
		}
	}

	for _, sub := range h.all {
		targets = append(targets, sub.listener)
	}

	active := h.activeDept
	h.mu.Unlock()

	for _, listener := range targets {
		listener(ctx, event)
	}

	if event.Kind == KindInsert && event.Message.Direction == models.MessageDirectionInbound {
		h.maybeNotify(ctx, event.Message, active)
	}

	return true
}

func (h *Hub) maybeNotify(ctx context.Context, msg models.Message, active models.Department) {
	if h.notifier == nil || active == "" {
		return
	}

	dept := msg.Department
	if dept == "" && h.lookup != nil && msg.ConversationID != "" {
		resolved, err := h.lookup(ctx, msg.ConversationID)
		if err != nil {
			h.logger.WarnContext(ctx, "Failed to resolve message department", "conversation_id", msg.ConversationID, "error", err)

			return
		}

		dept = resolved
	}

	if dept == active {
		h.notifier.Notify(ctx, msg)
	}
}

// Seen returns the number of keys currently held by the dedupe set.
func (h *Hub) Seen() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.seen.len()
}

// Run feeds the hub from the message events of bus until ctx is done.
func (h *Hub) Run(ctx context.Context, bus eventbus.EventSubscriber) error {
	err := bus.Handle(events.MessageCreatedEvent, func(ctx context.Context, event any) error {
		created, ok := event.(*events.MessageCreated)
		if ok {
			h.Publish(ctx, Event{Kind: KindInsert, Message: created.Message})
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.MessageUpdatedEvent, func(ctx context.Context, event any) error {
		updated, ok := event.(*events.MessageUpdated)
		if ok {
			h.Publish(ctx, Event{Kind: KindUpdate, Message: updated.Message})
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "Realtime hub subscribed to message events")

	<-ctx.Done()

	return nil
}
