package outbox_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	queue := outbox.NewMemoryQueue(10)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "1"}))
	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "2"}))
	assert.Equal(t, 2, queue.Len())

	first, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", first.MessageID)

	second, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", second.MessageID)
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	queue := outbox.NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := queue.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_Close(t *testing.T) {
	queue := outbox.NewMemoryQueue(1)
	require.NoError(t, queue.Close())
	require.NoError(t, queue.Close())

	assert.ErrorIs(t, queue.Enqueue(context.Background(), outbox.Item{}), outbox.ErrQueueClosed)

	_, err := queue.Dequeue(context.Background())
	assert.ErrorIs(t, err, outbox.ErrQueueClosed)
}

type recordingStatus struct {
	mu       sync.Mutex
	statuses map[string]models.MessageStatus
}

func (r *recordingStatus) UpdateStatus(_ context.Context, id string, status models.MessageStatus) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses[id] = status

	return &models.Message{ID: id, Status: status}, nil
}

func (r *recordingStatus) get(id string) models.MessageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.statuses[id]
}

func TestDispatcher_DeliversAndRecordsStatus(t *testing.T) {
	queue := outbox.NewMemoryQueue(10)
	status := &recordingStatus{statuses: map[string]models.MessageStatus{}}

	var (
		mu   sync.Mutex
		sent []string
	)

	sender := outbox.SenderFunc(func(_ context.Context, item outbox.Item) error {
		mu.Lock()
		defer mu.Unlock()

		if item.Text == "boom" {
			return errors.New("gateway down")
		}

		sent = append(sent, item.Text)

		return nil
	})

	updates := make(chan *models.Message, 10)
	dispatcher := outbox.NewDispatcher(queue, sender, slog.New(slog.DiscardHandler),
		outbox.WithStatusUpdater(status),
		outbox.WithStatusListener(func(_ context.Context, msg *models.Message) { updates <- msg }),
	)

	ctx := context.Background()
	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "m1", Phone: "5511", Text: "Olá"}))
	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "m2", Phone: "5511", Text: "boom"}))

	done := make(chan error, 1)

	go func() { done <- dispatcher.Run(ctx) }()

	for range 2 {
		select {
		case <-updates:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for deliveries")
		}
	}

	require.NoError(t, queue.Close())
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, []string{"Olá"}, sent)
	mu.Unlock()

	assert.Equal(t, models.MessageStatusSent, status.get("m1"))
	assert.Equal(t, models.MessageStatusFailed, status.get("m2"))
}

func TestDispatcher_WaitsForNotBefore(t *testing.T) {
	queue := outbox.NewMemoryQueue(10)
	delivered := make(chan time.Time, 1)

	dispatcher := outbox.NewDispatcher(queue, outbox.SenderFunc(func(context.Context, outbox.Item) error {
		delivered <- time.Now()

		return nil
	}), slog.New(slog.DiscardHandler))

	start := time.Now()
	require.NoError(t, queue.Enqueue(context.Background(), outbox.Item{Text: "depois", NotBefore: start.Add(50 * time.Millisecond)}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = dispatcher.Run(ctx) }()

	select {
	case at := <-delivered:
		assert.GreaterOrEqual(t, at.Sub(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestDispatcher_DelayedItemDoesNotBlockOthers(t *testing.T) {
	queue := outbox.NewMemoryQueue(10)
	delivered := make(chan string, 2)

	dispatcher := outbox.NewDispatcher(queue, outbox.SenderFunc(func(_ context.Context, item outbox.Item) error {
		delivered <- item.MessageID

		return nil
	}), slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Enqueue(ctx, outbox.Item{
		MessageID: "later", ConversationID: "conv-1", Text: "depois", NotBefore: time.Now().Add(time.Minute),
	}))
	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "now", ConversationID: "conv-2", Text: "agora"}))

	go func() { _ = dispatcher.Run(ctx) }()

	select {
	case id := <-delivered:
		assert.Equal(t, "now", id)
	case <-time.After(2 * time.Second):
		t.Fatal("undelayed message was held back")
	}

	select {
	case id := <-delivered:
		t.Fatalf("delayed message %s was sent early", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcher_KeepsConversationOrder(t *testing.T) {
	queue := outbox.NewMemoryQueue(10)
	delivered := make(chan string, 3)

	dispatcher := outbox.NewDispatcher(queue, outbox.SenderFunc(func(_ context.Context, item outbox.Item) error {
		delivered <- item.MessageID

		return nil
	}), slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Enqueue(ctx, outbox.Item{
		MessageID: "first", ConversationID: "conv-1", NotBefore: time.Now().Add(100 * time.Millisecond),
	}))
	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "second", ConversationID: "conv-1"}))
	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "other", ConversationID: "conv-2"}))

	go func() { _ = dispatcher.Run(ctx) }()

	var got []string

	for range 3 {
		select {
		case id := <-delivered:
			got = append(got, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("delivered only %v", got)
		}
	}

	assert.Equal(t, []string{"other", "first", "second"}, got)
}

func TestDispatcher_RequeuesHeldItemsOnStop(t *testing.T) {
	queue := outbox.NewMemoryQueue(10)
	dispatcher := outbox.NewDispatcher(queue, outbox.SenderFunc(func(context.Context, outbox.Item) error {
		t.Error("held item must not be sent")

		return nil
	}), slog.New(slog.DiscardHandler))

	require.NoError(t, queue.Enqueue(context.Background(), outbox.Item{
		MessageID: "later", ConversationID: "conv-1", NotBefore: time.Now().Add(time.Hour),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- dispatcher.Run(ctx) }()

	require.Eventually(t, func() bool { return queue.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, queue.Len())
}

func TestDispatcher_StopsOnContextCancel(t *testing.T) {
	queue := outbox.NewMemoryQueue(1)
	dispatcher := outbox.NewDispatcher(queue, outbox.SenderFunc(func(context.Context, outbox.Item) error { return nil }),
		slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- dispatcher.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
