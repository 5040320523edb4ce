package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quillpost/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultContentType = "application/octet-stream"

// RabbitBackend publishes to and consumes from RabbitMQ queues named after
// channels, using the default exchange. Publishes go through one channel in
// confirm mode; each subscription gets its own channel.
type RabbitBackend struct {
	conn *amqp.Connection
	opts queueOptions

	mu       sync.Mutex
	pub      *amqp.Channel
	declared map[string]bool
}

type queueOptions struct {
	durable    bool
	autoDelete bool
	prefetch   int
}

// DialRabbitMQ connects to the broker at cfg.URL.
func DialRabbitMQ(cfg config.RabbitMQConfig) (*RabbitBackend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := pub.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &RabbitBackend{
		conn: conn,
		opts: queueOptions{
			durable:    cfg.QueueDurable,
			autoDelete: cfg.QueueAutoDelete,
			prefetch:   cfg.PrefetchCount,
		},
		pub:      pub,
		declared: make(map[string]bool),
	}, nil
}

// Publish sends data to the named queue and waits for the broker to confirm
// it.
func (r *RabbitBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	msg := buildPublishing(data, attrs, r.opts.durable, time.Now())

	r.mu.Lock()
	if !r.declared[channel] {
		if _, err := declareQueue(r.pub, channel, r.opts); err != nil {
			r.mu.Unlock()
			return "", err
		}
		r.declared[channel] = true
	}
	confirm, err := r.pub.PublishWithDeferredConfirmWithContext(ctx, "", channel, false, false, msg)
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !acked {
		return "", fmt.Errorf("rabbitmq nacked message %s", msg.MessageId)
	}
	return msg.MessageId, nil
}

// Subscribe consumes the named queue on a dedicated channel until ctx is
// cancelled or the channel closes.
func (r *RabbitBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if r.opts.prefetch > 0 {
		if err := ch.Qos(r.opts.prefetch, 0, false); err != nil {
			return err
		}
	}
	if _, err := declareQueue(ch, channel, r.opts); err != nil {
		return err
	}

	deliveries, err := ch.Consume(channel, "quillpost-"+uuid.NewString(), false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			err := handler(ctx, Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			})
			_ = settle(delivery, err)
		}
	}
}

// Close closes the publish channel and the connection, which ends every
// subscription.
func (r *RabbitBackend) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pub != nil {
		_ = r.pub.Close()
		r.pub = nil
	}
	if r.conn != nil {
		err := r.conn.Close()
		r.conn = nil
		return err
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string, opts queueOptions) (amqp.Queue, error) {
	return ch.QueueDeclare(name, opts.durable, opts.autoDelete, false, false, nil)
}

// buildPublishing turns attrs into headers. The content type comes from
// AttrContentType; durable queues get persistent messages.
func buildPublishing(data []byte, attrs map[string]string, durable bool, now time.Time) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:  defaultContentType,
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    now.UTC(),
		Body:         data,
	}
	if durable {
		msg.DeliveryMode = amqp.Persistent
	}
	if ct := attrs[AttrContentType]; ct != "" {
		msg.ContentType = ct
	}
	if len(attrs) > 0 {
		msg.Headers = make(amqp.Table, len(attrs))
		for key, value := range attrs {
			msg.Headers[key] = value
		}
	}
	return msg
}

// settle acks a handled delivery. A failed delivery is requeued once; if it
// fails again after redelivery it is dropped.
func settle(delivery amqp.Delivery, handlerErr error) error {
	if handlerErr == nil {
		return delivery.Ack(false)
	}
	return delivery.Nack(false, !delivery.Redelivered)
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
