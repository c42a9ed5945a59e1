package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// RedisBus delivers updates over Redis pub/sub so several processes see
// the same document changes.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
}

// NewRedisBus publishes on Channel. The client is shared, not owned: Close
// leaves it open.
func NewRedisBus(client *redis.Client, logger *log.Logger) *RedisBus {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisBus{client: client, channel: Channel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, e DocumentUpdated) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan DocumentUpdated, func()) {
	ps := b.client.Subscribe(ctx, b.channel)
	out := make(chan DocumentUpdated, subscriberBuffer)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e DocumentUpdated
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.logger.Warn("dropping malformed document update", "error", err)
					continue
				}
				select {
				case out <- e:
				case <-done:
					return
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()
	return out, cancel
}

func (b *RedisBus) Close() error { return nil }

var _ Bus = (*RedisBus)(nil)
