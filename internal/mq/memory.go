package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const memoryBuffer = 64

// MemoryBackend is an in-process broker. Every subscriber of a channel
// receives every message published after it subscribed.
type MemoryBackend struct {
	mu          sync.Mutex
	subscribers map[string][]chan Message
	closed      bool
}

// NewMemoryBackend constructs an empty in-process broker.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{subscribers: make(map[string][]chan Message)}
}

// Publish delivers a copy of the message to every current subscriber.
// Slow subscribers with full buffers miss the message.
func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", errors.New("memory backend closed")
	}

	msg := Message{
		ID:         uuid.NewString(),
		Data:       append([]byte(nil), data...),
		Attributes: copyAttributes(attrs),
	}
	for _, sub := range b.subscribers[channel] {
		select {
		case sub <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe blocks, invoking handler for each message, until ctx is done or
// the backend is closed. Handler errors are ignored; there is no redelivery.
func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	sub := make(chan Message, memoryBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("memory backend closed")
	}
	b.subscribers[channel] = append(b.subscribers[channel], sub)
	b.mu.Unlock()

	defer b.unsubscribe(channel, sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub:
			if !ok {
				return errors.New("memory backend closed")
			}
			_ = handler(ctx, msg)
		}
	}
}

// Close stops all subscriptions.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub)
		}
		delete(b.subscribers, channel)
	}
	return nil
}

func (b *MemoryBackend) unsubscribe(channel string, target chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[channel]
	for i, sub := range subs {
		if sub == target {
			b.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func copyAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
