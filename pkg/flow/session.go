// Package flow walks flow graphs: it runs test sessions for the flow builder
// and drives the live automation of WhatsApp conversations.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/template"
)

// DefaultMaxSteps bounds the nodes visited between two inputs. Flows may
// contain cycles and the canvas does not enforce termination.
const DefaultMaxSteps = 100

// EntryKind tells who produced a transcript entry.
type EntryKind string

const (
	EntryKindBot        EntryKind = "bot"
	EntryKindUser       EntryKind = "user"
	EntryKindWait       EntryKind = "wait"
	EntryKindEscalation EntryKind = "escalation"
)

// TranscriptEntry is one line of the simulated conversation.
type TranscriptEntry struct {
	Kind   EntryKind     `json:"kind"`
	NodeID string        `json:"node_id,omitempty"`
	Text   string        `json:"text,omitempty"`
	Delay  time.Duration `json:"delay,omitempty"`
}

// LogLevel is the severity of a session log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry reports something noteworthy about a node, such as a malformed config.
type LogEntry struct {
	Level   LogLevel `json:"level"`
	NodeID  string   `json:"node_id,omitempty"`
	Message string   `json:"message"`
}

// Escalation marks the point where the bot hands the conversation to a person.
type Escalation struct {
	NodeID     string            `json:"node_id"`
	Reason     string            `json:"reason,omitempty"`
	Department models.Department `json:"department,omitempty"`
	Priority   string            `json:"priority,omitempty"`
}

// Result is a snapshot of a session for callers and the test endpoint.
type Result struct {
	Status        models.SessionStatus `json:"status"`
	CurrentNodeID string               `json:"current_node_id,omitempty"`
	Transcript    []TranscriptEntry    `json:"transcript"`
	Variables     map[string]any       `json:"variables"`
	Tags          []string             `json:"tags"`
	Logs          []LogEntry           `json:"logs"`
	Escalations   []Escalation         `json:"escalations"`
	Error         string               `json:"error,omitempty"`
}

type options struct {
	intents   IntentResolver
	clock     func() time.Time
	logger    *slog.Logger
	maxSteps  int
	variables map[string]any
	tags      []string
}

// Option customizes a session.
type Option func(*options)

// WithIntentResolver sets the resolver used by intent conditions.
func WithIntentResolver(resolver IntentResolver) Option {
	return func(o *options) {
		if resolver != nil {
			o.intents = resolver
		}
	}
}

// WithClock sets the time source used by time conditions.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger mirrors session log entries to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithVariables seeds the variable bag, e.g. with the contact name.
func WithVariables(vars map[string]any) Option {
	return func(o *options) { o.variables = vars }
}

// WithTags seeds the contact tags seen by tag conditions.
func WithTags(tags []string) Option {
	return func(o *options) { o.tags = tags }
}

// Session is a single walk over a flow. It is not safe for concurrent use.
type Session struct {
	flow      *models.Flow
	opts      options
	eval      *evaluator
	started   bool
	current   string
	status    models.SessionStatus
	variables map[string]any
	tags      []string

	transcript  []TranscriptEntry
	logs        []LogEntry
	escalations []Escalation
	err         string
	drained     int
}

// NewSession prepares a walk over flow. Nothing happens until Start.
func NewSession(flow *models.Flow, opts ...Option) *Session {
	o := options{
		intents:  literalIntents,
		clock:    time.Now,
		logger:   slog.New(slog.DiscardHandler),
		maxSteps: DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		flow:      flow,
		opts:      o,
		status:    models.SessionStatusRunning,
		variables: make(map[string]any),
		tags:      slices.Clone(o.tags),
	}

	maps.Copy(s.variables, o.variables)

	s.eval = &evaluator{intents: o.intents, clock: o.clock, logf: s.logf}

	return s
}

// Restore rebuilds a session from a persisted snapshot.
func Restore(flow *models.Flow, snapshot models.FlowSession, opts ...Option) *Session {
	s := NewSession(flow, opts...)
	s.started = true
	s.current = snapshot.CurrentNodeID
	s.status = snapshot.Status
	s.err = snapshot.Error
	s.tags = slices.Clone(snapshot.Tags)
	s.variables = make(map[string]any, len(snapshot.Variables))
	maps.Copy(s.variables, snapshot.Variables)

	return s
}

// Snapshot captures the state needed to resume the walk later.
func (s *Session) Snapshot(conversationID string) models.FlowSession {
	return models.FlowSession{
		ConversationID: conversationID,
		FlowID:         s.flow.ID,
		CurrentNodeID:  s.current,
		Status:         s.status,
		Variables:      maps.Clone(s.variables),
		Tags:           slices.Clone(s.tags),
		Error:          s.err,
		UpdatedAt:      s.opts.clock().UTC(),
	}
}

// Status returns the current state of the walk.
func (s *Session) Status() models.SessionStatus {
	return s.status
}

// Start positions the session on the start node and advances until the flow
// waits for input or terminates.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return ErrAlreadyStarted
	}

	start := s.flow.StartNode()
	if start == nil {
		return ErrNoStartNode
	}

	s.started = true
	s.current = start.ID
	s.advance(ctx, nil)

	return nil
}

// Send feeds a user reply to the condition node the session is waiting on.
func (s *Session) Send(ctx context.Context, input string) error {
	if !s.started {
		return ErrNotStarted
	}

	if s.status != models.SessionStatusWaitingInput {
		return ErrNotWaiting
	}

	s.transcript = append(s.transcript, TranscriptEntry{Kind: EntryKindUser, NodeID: s.current, Text: input})
	s.variables["last_input"] = input
	s.status = models.SessionStatusRunning
	s.advance(ctx, &input)

	return nil
}

// Drain returns the transcript entries produced since the previous call.
func (s *Session) Drain() []TranscriptEntry {
	entries := slices.Clone(s.transcript[s.drained:])
	s.drained = len(s.transcript)

	return entries
}

// Result returns a copy of the session state.
func (s *Session) Result() *Result {
	return &Result{
		Status:        s.status,
		CurrentNodeID: s.current,
		Transcript:    slices.Clone(s.transcript),
		Variables:     maps.Clone(s.variables),
		Tags:          slices.Clone(s.tags),
		Logs:          slices.Clone(s.logs),
		Escalations:   slices.Clone(s.escalations),
		Error:         s.err,
	}
}

// advance walks nodes until the session waits or stops. input is consumed by
// the first condition node that needs it.
func (s *Session) advance(ctx context.Context, input *string) {
	for steps := 0; ; steps++ {
		if steps >= s.opts.maxSteps {
			s.fail(s.current, fmt.Sprintf("step limit of %d reached without waiting for input", s.opts.maxSteps))

			return
		}

		if ctx.Err() != nil {
			s.fail(s.current, "walk cancelled: "+ctx.Err().Error())

			return
		}

		node := s.flow.NodeByID(s.current)
		if node == nil {
			s.fail(s.current, fmt.Sprintf("node %q does not exist", s.current))

			return
		}

		var next string

		var ok bool

		switch node.Type {
		case models.NodeTypeCondition:
			cfg, err := node.ConditionConfig()
			if err != nil {
				s.logf(LogLevelError, node.ID, "malformed condition config: %v", err)

				next, ok = s.follow(node)

				break
			}

			if needsInput(cfg.ConditionType) {
				if input == nil {
					s.status = models.SessionStatusWaitingInput

					return
				}

				if cfg.Variable != "" {
					s.variables[cfg.Variable] = *input
				}
			}

			text := ""
			if input != nil {
				text = *input
			}

			if needsInput(cfg.ConditionType) {
				input = nil
			}

			branch := s.eval.selectBranch(ctx, node.ID, cfg, text, s.variables, s.tags)
			if branch == nil {
				s.fail(node.ID, "no branch matched and the condition has no default branch")

				return
			}

			s.logf(LogLevelInfo, node.ID, "branch %s selected", branch.ID)

			next, ok = s.followBranch(node, *branch)

		case models.NodeTypeEnd:
			s.runEnd(node)

			return

		case models.NodeTypeEscalation:
			s.runEscalation(node)

			if len(s.flow.OutgoingEdges(node.ID)) == 0 {
				s.status = models.SessionStatusEscalated

				return
			}

			next, ok = s.follow(node)

		default:
			s.runEffect(node)

			next, ok = s.follow(node)
		}

		if !ok {
			return
		}

		s.current = next
	}
}

// runEffect applies the side effect of start, message, delay and action nodes.
func (s *Session) runEffect(node *models.Node) {
	switch node.Type {
	case models.NodeTypeStart:
	case models.NodeTypeMessage:
		var cfg models.MessageConfig
		if err := node.DecodeConfig(&cfg); err != nil {
			s.logf(LogLevelError, node.ID, "malformed message config: %v", err)

			return
		}

		if cfg.Text == "" {
			s.logf(LogLevelWarn, node.ID, "message node has no text")

			return
		}

		text, err := template.RenderString(cfg.Text, s.variables)
		if err != nil {
			s.logf(LogLevelError, node.ID, "failed to render message: %v", err)

			text = cfg.Text
		}

		s.transcript = append(s.transcript, TranscriptEntry{
			Kind:   EntryKindBot,
			NodeID: node.ID,
			Text:   text,
			Delay:  time.Duration(cfg.DelaySeconds) * time.Second,
		})

	case models.NodeTypeDelay:
		var cfg models.DelayConfig
		if err := node.DecodeConfig(&cfg); err != nil {
			s.logf(LogLevelError, node.ID, "malformed delay config: %v", err)

			return
		}

		s.transcript = append(s.transcript, TranscriptEntry{
			Kind:   EntryKindWait,
			NodeID: node.ID,
			Delay:  time.Duration(cfg.Seconds) * time.Second,
		})

	case models.NodeTypeAction:
		s.runAction(node)

	default:
		s.logf(LogLevelError, node.ID, "unknown node type %q", node.Type)
	}
}

func (s *Session) runAction(node *models.Node) {
	var cfg models.ActionConfig
	if err := node.DecodeConfig(&cfg); err != nil {
		s.logf(LogLevelError, node.ID, "malformed action config: %v", err)

		return
	}

	switch cfg.ActionType {
	case models.ActionTypeSetVariable:
		if cfg.Variable == "" {
			s.logf(LogLevelError, node.ID, "set_variable action has no variable name")

			return
		}

		value := cfg.Value
		if text, ok := value.(string); ok {
			rendered, err := template.Render(text, s.variables)
			if err != nil {
				s.logf(LogLevelWarn, node.ID, "failed to render value of %s: %v", cfg.Variable, err)
			} else {
				value = rendered
			}
		}

		s.variables[cfg.Variable] = value

	case models.ActionTypeAddTag:
		if cfg.Tag != "" && !slices.Contains(s.tags, cfg.Tag) {
			s.tags = append(s.tags, cfg.Tag)
		}

	case models.ActionTypeRemoveTag:
		s.tags = slices.DeleteFunc(s.tags, func(tag string) bool { return tag == cfg.Tag })

	default:
		s.logf(LogLevelError, node.ID, "unknown action type %q", cfg.ActionType)
	}
}

func (s *Session) runEscalation(node *models.Node) {
	var cfg models.EscalationConfig
	if err := node.DecodeConfig(&cfg); err != nil {
		s.logf(LogLevelError, node.ID, "malformed escalation config: %v", err)
	}

	s.escalations = append(s.escalations, Escalation{
		NodeID:     node.ID,
		Reason:     cfg.Reason,
		Department: cfg.Department,
		Priority:   cfg.Priority,
	})
	s.transcript = append(s.transcript, TranscriptEntry{Kind: EntryKindEscalation, NodeID: node.ID, Text: cfg.Reason})
}

func (s *Session) runEnd(node *models.Node) {
	var cfg models.EndConfig
	if err := node.DecodeConfig(&cfg); err != nil {
		s.logf(LogLevelError, node.ID, "malformed end config: %v", err)
	}

	if cfg.Message != "" {
		text, err := template.RenderString(cfg.Message, s.variables)
		if err != nil {
			s.logf(LogLevelError, node.ID, "failed to render message: %v", err)

			text = cfg.Message
		}

		s.transcript = append(s.transcript, TranscriptEntry{Kind: EntryKindBot, NodeID: node.ID, Text: text})
	}

	s.current = node.ID
	s.status = models.SessionStatusCompleted
}

// follow takes the first outgoing edge of a non-branching node.
func (s *Session) follow(node *models.Node) (string, bool) {
	edges := s.flow.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		s.fail(node.ID, "dead end: node has no outgoing edge")

		return "", false
	}

	return edges[0].Target, true
}

// followBranch takes the edge leaving through the branch handle.
func (s *Session) followBranch(node *models.Node, branch models.Branch) (string, bool) {
	handle := models.BranchHandle(branch.ID)

	for _, edge := range s.flow.OutgoingEdges(node.ID) {
		if edge.SourceHandle == handle || edge.SourceHandle == branch.ID {
			return edge.Target, true
		}
	}

	s.fail(node.ID, fmt.Sprintf("dead end: no edge for branch %s", branch.ID))

	return "", false
}

func (s *Session) fail(nodeID, message string) {
	s.status = models.SessionStatusError
	s.err = message
	s.logf(LogLevelError, nodeID, "%s", message)
}

func (s *Session) logf(level LogLevel, nodeID, format string, args ...any) {
	entry := LogEntry{Level: level, NodeID: nodeID, Message: fmt.Sprintf(format, args...)}
	s.logs = append(s.logs, entry)

	attrs := []any{"flow_id", s.flow.ID, "node_id", nodeID}

	switch level {
	case LogLevelError:
		s.opts.logger.Error(entry.Message, attrs...)
	case LogLevelWarn:
		s.opts.logger.Warn(entry.Message, attrs...)
	default:
		s.opts.logger.Debug(entry.Message, attrs...)
	}
}

// Run executes a test walk: it starts the session and feeds inputs one by
// one while the flow waits for a reply. Leftover inputs are ignored.
func Run(ctx context.Context, flow *models.Flow, inputs []string, opts ...Option) (*Result, error) {
	session := NewSession(flow, opts...)

	err := session.Start(ctx)
	if err != nil {
		return nil, err
	}

	for _, input := range inputs {
		if session.Status() != models.SessionStatusWaitingInput {
			break
		}

		err := session.Send(ctx, input)
		if err != nil {
			return nil, err
		}
	}

	return session.Result(), nil
}
