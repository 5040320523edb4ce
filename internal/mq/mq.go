// Package mq hides the message broker behind a small publish/subscribe API.
// Channels map to RabbitMQ queues or Pub/Sub topics depending on the backend.
package mq

import (
	"context"
	"errors"
)

// Well-known message attributes understood by the backends.
const (
	// AttrContentType is copied into the broker's content type field where one exists.
	AttrContentType = "content-type"
	// AttrOrderingKey groups messages that must be delivered in publish order.
	AttrOrderingKey = "ordering-key"
)

// ErrDisabled is returned when publishing through an MQ with no backend.
var ErrDisabled = errors.New("message queue disabled")

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend. A nil *MQ is valid and rejects every call with
// ErrDisabled, except Close.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Publish sends a message to the named channel and returns the broker's id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if m == nil || m.backend == nil {
		return "", ErrDisabled
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe blocks, consuming messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if m == nil || m.backend == nil {
		return ErrDisabled
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	if m == nil || m.backend == nil {
		return nil
	}
	return m.backend.Close()
}
