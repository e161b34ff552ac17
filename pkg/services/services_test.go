package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/corretor-crm/corretor/pkg/mocks"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/corretor-crm/corretor/pkg/persistence/file"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	persistence *file.Persistence
	queue       *outbox.MemoryQueue
	bus         *mocks.MockEventBus
	settings    *Settings
	messenger   *Messenger
	logger      *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	queue := outbox.NewMemoryQueue(100)
	logger := slog.New(slog.DiscardHandler)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return &testEnv{
		persistence: persistence,
		queue:       queue,
		bus:         bus,
		settings:    NewSettings(persistence),
		messenger:   NewMessenger(persistence, queue, bus, logger),
		logger:      logger,
	}
}

// queued drains the outbox without blocking.
func (e *testEnv) queued(t *testing.T) []outbox.Item {
	t.Helper()

	var items []outbox.Item

	for e.queue.Len() > 0 {
		item, err := e.queue.Dequeue(t.Context())
		require.NoError(t, err)

		items = append(items, item)
	}

	return items
}

func (e *testEnv) setting(t *testing.T, key, value string) {
	t.Helper()

	_, err := e.settings.Set(t.Context(), key, value)
	require.NoError(t, err)
}

func (e *testEnv) conversation(t *testing.T, number string, department models.Department) *models.Conversation {
	t.Helper()

	contact, _, err := upsertContact(t.Context(), e.persistence, contactDetails{Phone: number, Name: "Maria", Department: department})
	require.NoError(t, err)

	conversation, err := openConversation(t.Context(), e.persistence, contact, department)
	require.NoError(t, err)

	return conversation
}

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	return f.reply, f.err
}
