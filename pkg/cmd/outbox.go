package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corretor-crm/corretor/pkg/integrations/whatsapp"
	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/services"
)

const (
	// OutboxKey is the Redis list holding queued WhatsApp messages.
	OutboxKey = "corretor:outbox"

	memoryQueueCapacity = 1000
)

var ErrGatewayNotConfigured = errors.New("whatsapp gateway not configured")

// NewQueue returns the Redis queue when redisURL is set. Without it the
// queue lives in memory and only the current process can drain it.
//
//nolint:ireturn
func NewQueue(ctx context.Context, logger *slog.Logger, redisURL string) (outbox.Queue, error) {
	if redisURL == "" {
		logger.WarnContext(ctx, "REDIS_URL not set, using in-memory outbox")

		return outbox.NewMemoryQueue(memoryQueueCapacity), nil
	}

	queue, err := outbox.NewRedisQueue(ctx, redisURL, OutboxKey)
	if err != nil {
		return nil, fmt.Errorf("failed to connect outbox to redis: %w", err)
	}

	return queue, nil
}

// NewWhatsAppSender delivers outbox items through the WhatsApp gateway. With
// no gateway URL every delivery fails with ErrGatewayNotConfigured.
func NewWhatsAppSender(baseURL, token string) outbox.SenderFunc {
	if baseURL == "" {
		return func(context.Context, outbox.Item) error {
			return ErrGatewayNotConfigured
		}
	}

	client := whatsapp.NewClient(baseURL, token)

	return func(ctx context.Context, item outbox.Item) error {
		_, err := client.SendText(ctx, item.Phone, item.Text)

		return err
	}
}

// NewDispatcher drains queue into sender, persisting each delivery status and
// announcing it as message.updated.
func NewDispatcher(
	queue outbox.Queue,
	sender outbox.Sender,
	p persistence.Persistence,
	messenger *services.Messenger,
	logger *slog.Logger,
) *outbox.Dispatcher {
	return outbox.NewDispatcher(queue, sender, logger,
		outbox.WithStatusUpdater(p.MessageRepository()),
		outbox.WithStatusListener(messenger.StatusChanged),
	)
}
