package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel shared by every process.
const Channel = "dirigo:events"

// RedisBus broadcasts events to every process through Redis pub/sub and
// delivers them locally through an embedded LocalBus. Events published by
// this process are delivered locally once, not again when they echo back.
type RedisBus struct {
	local  *LocalBus
	rdb    *redis.Client
	pubsub *redis.PubSub
	origin string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus subscribes to the shared channel and starts the receive loop.
func NewRedisBus(ctx context.Context, rdb *redis.Client) (*RedisBus, error) {
	pubsub := rdb.Subscribe(ctx, Channel)

	// Wait for the subscription to be confirmed so no early publish is missed
	_, err := pubsub.Receive(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		local:  NewLocalBus(),
		rdb:    rdb,
		pubsub: pubsub,
		origin: uuid.New().String(),
		cancel: cancel,
	}

	b.wg.Add(1)
	go b.receive(loopCtx)

	slog.Info("event bus connected to redis", "channel", Channel)
	return b, nil
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	event.Origin = b.origin
	b.local.dispatch(ctx, event)

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = b.rdb.Publish(ctx, Channel, raw).Err()
	if err != nil {
		return fmt.Errorf("failed to broadcast event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(topic string, h Handler) func() {
	return b.local.Subscribe(topic, h)
}

func (b *RedisBus) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	_ = b.local.Close()
	return err
}

func (b *RedisBus) receive(ctx context.Context) {
	defer b.wg.Done()

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			err := json.Unmarshal([]byte(msg.Payload), &event)
			if err != nil {
				slog.Warn("invalid event payload", "error", err)
				continue
			}
			if event.Origin == b.origin {
				continue
			}

			b.local.dispatch(ctx, event)
		}
	}
}
