package events

import (
	"context"
	"log/slog"
	"sync"
)

type subscription struct {
	id      uint64
	topic   string
	handler Handler
}

// LocalBus delivers events in-process. Handlers run synchronously in
// subscription order; a panicking handler is recovered and logged.
type LocalBus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, event Event) error {
	b.dispatch(ctx, event)
	return nil
}

func (b *LocalBus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, topic: topic, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
	return nil
}

func (b *LocalBus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.topic != "" && s.topic != event.Topic {
			continue
		}
		b.call(ctx, s, event)
	}
}

func (b *LocalBus) call(ctx context.Context, s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "topic", event.Topic, "panic", r)
		}
	}()
	s.handler(ctx, event)
}
