package reengagement

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/corretor-crm/corretor/pkg/mocks"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/corretor-crm/corretor/pkg/persistence/file"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	persistence *file.Persistence
	queue       *outbox.MemoryQueue
	settings    *services.Settings
	messenger   *services.Messenger
	logger      *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	queue := outbox.NewMemoryQueue(100)
	logger := slog.New(slog.DiscardHandler)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return &fixture{
		persistence: persistence,
		queue:       queue,
		settings:    services.NewSettings(persistence),
		messenger:   services.NewMessenger(persistence, queue, bus, logger),
		logger:      logger,
	}
}

// silentConversation creates a conversation whose last message is an
// unanswered agent message.
func (f *fixture) silentConversation(t *testing.T, department models.Department) *models.Conversation {
	t.Helper()

	contact := &models.Contact{Name: "Maria Souza", Phone: "5511987654321", Tags: []string{}}
	require.NoError(t, f.persistence.ContactRepository().Save(t.Context(), contact))

	conversation := &models.Conversation{
		ContactID:  contact.ID,
		Phone:      contact.Phone,
		Department: department,
		Status:     models.ConversationStatusOpen,
	}
	require.NoError(t, f.persistence.ConversationRepository().Save(t.Context(), conversation))

	_, err := f.messenger.RecordInbound(t.Context(), conversation, "Oi, vi o anúncio")
	require.NoError(t, err)

	_, err = f.messenger.SendOutbound(t.Context(), conversation, "Olá! Qual imóvel te interessou?", services.SenderAI, 0)
	require.NoError(t, err)

	return conversation
}

func (f *fixture) texts(t *testing.T) []string {
	t.Helper()

	var texts []string

	for f.queue.Len() > 0 {
		item, err := f.queue.Dequeue(t.Context())
		require.NoError(t, err)

		texts = append(texts, item.Text)
	}

	return texts
}

func later(d time.Duration) func() time.Time {
	return func() time.Time { return time.Now().Add(d) }
}

type fakeCompleter struct {
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)

	return f.reply, f.err
}

func TestRunner_RunOnce_Fallback(t *testing.T) {
	f := newFixture(t)
	conversation := f.silentConversation(t, models.DepartmentVendas)
	f.texts(t)

	runner := NewRunner(f.persistence, f.settings, f.messenger, nil, f.logger, WithClock(later(25*time.Hour)))

	result, err := runner.RunOnce(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []string{"Olá Maria! Ainda posso ajudar na sua busca por um imóvel?"}, f.texts(t))

	stored, err := f.persistence.ConversationRepository().GetByID(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ReengagementCount)
	assert.Equal(t, models.MessageDirectionOutbound, stored.LastDirection)
}

func TestRunner_RunOnce_NotYetDue(t *testing.T) {
	f := newFixture(t)
	f.silentConversation(t, models.DepartmentVendas)
	f.texts(t)

	runner := NewRunner(f.persistence, f.settings, f.messenger, nil, f.logger, WithClock(later(time.Hour)))

	result, err := runner.RunOnce(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, f.texts(t))
}

func TestRunner_RunOnce_DepartmentThreshold(t *testing.T) {
	f := newFixture(t)
	f.silentConversation(t, models.DepartmentLocacao)
	f.texts(t)

	_, err := f.settings.SaveBehavior(t.Context(), &models.BehaviorConfig{
		Department:        models.DepartmentLocacao,
		ReengagementHours: 48,
		BusinessRules:     []string{},
	})
	require.NoError(t, err)

	runner := NewRunner(f.persistence, f.settings, f.messenger, nil, f.logger, WithClock(later(25*time.Hour)))

	result, err := runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)

	runner = NewRunner(f.persistence, f.settings, f.messenger, nil, f.logger, WithClock(later(49*time.Hour)))

	result, err = runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}

func TestRunner_RunOnce_MaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.silentConversation(t, models.DepartmentVendas)
	f.texts(t)

	runner := NewRunner(f.persistence, f.settings, f.messenger, nil, f.logger, WithClock(later(25*time.Hour)))

	for range 3 {
		result, err := runner.RunOnce(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
	}

	texts := f.texts(t)
	require.Len(t, texts, 3)
	assert.Equal(t, "Maria, vou encerrar o atendimento por aqui. Quando precisar, é só chamar!", texts[2])

	result, err := runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Checked)
}

func TestRunner_RunOnce_InboundLast(t *testing.T) {
	f := newFixture(t)
	conversation := f.silentConversation(t, models.DepartmentVendas)

	_, err := f.messenger.RecordInbound(t.Context(), conversation, "Ainda estou vendo")
	require.NoError(t, err)

	runner := NewRunner(f.persistence, f.settings, f.messenger, nil, f.logger, WithClock(later(25*time.Hour)))

	result, err := runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Checked)
}

func TestRunner_RunOnce_LLM(t *testing.T) {
	f := newFixture(t)
	f.silentConversation(t, models.DepartmentVendas)
	f.texts(t)

	completer := &fakeCompleter{reply: " Maria, ainda procurando apartamento? "}
	runner := NewRunner(f.persistence, f.settings, f.messenger, completer, f.logger, WithClock(later(25*time.Hour)))

	result, err := runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []string{"Maria, ainda procurando apartamento?"}, f.texts(t))

	require.Len(t, completer.requests, 1)
	assert.Contains(t, completer.requests[0].System, "tentativa 1 de 3")
	assert.Len(t, completer.requests[0].Messages, 2)
}

func TestRunner_RunOnce_LLMFailure(t *testing.T) {
	f := newFixture(t)
	f.silentConversation(t, models.DepartmentVendas)
	f.texts(t)

	completer := &fakeCompleter{err: errors.New("timeout")}
	runner := NewRunner(f.persistence, f.settings, f.messenger, completer, f.logger, WithClock(later(25*time.Hour)))

	result, err := runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []string{"Olá Maria! Ainda posso ajudar na sua busca por um imóvel?"}, f.texts(t))
}

func TestNewScheduler(t *testing.T) {
	f := newFixture(t)
	runner := NewRunner(f.persistence, f.settings, f.messenger, nil, f.logger)

	_, err := NewScheduler(runner, "not a cron", f.logger)
	require.Error(t, err)

	scheduler, err := NewScheduler(runner, "", f.logger)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, scheduler.spec)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- scheduler.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
