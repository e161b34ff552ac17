package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const popTimeout = time.Second

// RedisQueue keeps items in a Redis list: RPUSH to enqueue, BLPOP to dequeue.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
}

// NewRedisQueue connects to redisURL (redis://[:password@]host:port/db).
func NewRedisQueue(ctx context.Context, redisURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisQueueWithClient(client, key), nil
}

func NewRedisQueueWithClient(client redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}

	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, item Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode outbox item: %w", err)
	}

	err = q.client.RPush(ctx, q.key, raw).Err()
	if err != nil {
		return fmt.Errorf("failed to push outbox item: %w", err)
	}

	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Item, error) {
	for {
		result, err := q.client.BLPop(ctx, popTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return Item{}, ctx.Err()
				}

				continue
			}

			if errors.Is(err, redis.ErrClosed) {
				return Item{}, ErrQueueClosed
			}

			if ctx.Err() != nil {
				return Item{}, ctx.Err()
			}

			return Item{}, fmt.Errorf("failed to pop outbox item: %w", err)
		}

		if len(result) < 2 {
			continue
		}

		var item Item

		err = json.Unmarshal([]byte(result[1]), &item)
		if err != nil {
			return Item{}, fmt.Errorf("failed to decode outbox item: %w", err)
		}

		return item, nil
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
