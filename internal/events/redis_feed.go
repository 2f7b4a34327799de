// Package events carries store change events between API replicas.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/portal/internal/store"
	"github.com/redis/go-redis/v9"
)

// RedisFeed publishes change events on a Redis channel and relays everything
// received on it to local listeners, so each replica sees every replica's writes.
type RedisFeed struct {
	client  *redis.Client
	channel string
	local   *store.LocalFeed
	logger  *slog.Logger
	started sync.Once
}

func NewRedisFeed(client *redis.Client, channel string, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{
		client:  client,
		channel: channel,
		local:   store.NewLocalFeed(logger),
		logger:  logger,
	}
}

func (f *RedisFeed) Publish(ctx context.Context, ev store.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

func (f *RedisFeed) Listen(ctx context.Context) (<-chan store.ChangeEvent, error) {
	return f.local.Listen(ctx)
}

// Start runs the shared subscriber until ctx is done. It reconnects with
// exponential backoff capped at 30s.
func (f *RedisFeed) Start(ctx context.Context) {
	f.started.Do(func() {
		go f.run(ctx)
	})
}

func (f *RedisFeed) run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := f.receive(ctx, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}

		f.logger.Warn("change feed subscriber disconnected",
			slog.String("channel", f.channel),
			slog.Duration("retry_in", backoff),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func (f *RedisFeed) receive(ctx context.Context, onMessage func()) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	f.logger.Info("change feed subscriber started", slog.String("channel", f.channel))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		onMessage()

		var ev store.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			f.logger.Warn("dropping malformed change event", slog.Any("error", err))
			continue
		}
		_ = f.local.Publish(ctx, ev)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
