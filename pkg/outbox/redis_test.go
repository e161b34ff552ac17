package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	redisURL, err := container.PortEndpoint(ctx, "6379/tcp", "redis")
	require.NoError(t, err)

	return ctx, redisURL
}

func TestRedisQueue(t *testing.T) {
	ctx, redisURL := setupRedis(t)

	queue, err := outbox.NewRedisQueue(ctx, redisURL, "test:outbox")
	require.NoError(t, err)

	defer queue.Close()

	notBefore := time.Now().UTC().Add(time.Minute).Truncate(time.Second)

	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "m1", Phone: "5511", Text: "Olá", NotBefore: notBefore}))
	require.NoError(t, queue.Enqueue(ctx, outbox.Item{MessageID: "m2", Phone: "5511", Text: "Tudo bem?"}))

	first, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", first.MessageID)
	assert.True(t, notBefore.Equal(first.NotBefore))

	second, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tudo bem?", second.Text)
	assert.True(t, second.NotBefore.IsZero())

	shortCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()

	_, err = queue.Dequeue(shortCtx)
	assert.Error(t, err)
}

func TestNewRedisQueue_InvalidURL(t *testing.T) {
	_, err := outbox.NewRedisQueue(context.Background(), "://nope", "")
	assert.Error(t, err)
}
