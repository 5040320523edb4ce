package mq

import (
	"context"
	"fmt"

	"github.com/quillpost/apiserver/config"
)

// Open connects the backend selected by cfg.Events.Driver. It returns a nil
// MQ when events are disabled.
func Open(ctx context.Context, cfg config.Config) (*MQ, error) {
	switch cfg.Events.Driver {
	case "", config.EventsDriverNone:
		return nil, nil
	case config.EventsDriverRabbitMQ:
		backend, err := DialRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(backend), nil
	case config.EventsDriverPubSub:
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}
