package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisListenerConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// redisConnectionEventListener receives connection events published per
// workspace on "<prefix>:connections:<workspace-id>" channels.
type redisConnectionEventListener struct {
	client  *redis.Client
	pattern string

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

func NewRedisConnectionEventListener(ctx context.Context, cfg RedisListenerConfig) (domain.ConnectionEventListener, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "dsentr"
	}

	return &redisConnectionEventListener{
		client:  client,
		pattern: fmt.Sprintf("%s:connections:*", prefix),
	}, nil
}

func (l *redisConnectionEventListener) Listen(ctx context.Context, handler domain.ConnectionEventHandler) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return fmt.Errorf("listener is closed")
	}

	pubsub := l.client.PSubscribe(ctx, l.pattern)
	l.pubsub = pubsub
	l.mu.Unlock()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event domain.ConnectionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed connection event")
				continue
			}

			if err := handler(ctx, event); err != nil {
				log.Warn().
					Err(err).
					Str("workspace_id", event.WorkspaceID).
					Str("event_type", string(event.Type)).
					Msg("Connection event handler failed")
			}
		}
	}
}

func (l *redisConnectionEventListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.pubsub != nil {
		if err := l.pubsub.Close(); err != nil {
			return err
		}
	}

	return l.client.Close()
}
