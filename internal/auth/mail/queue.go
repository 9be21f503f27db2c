package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the durable queue jobs are published to.
const DefaultQueue = "mail.outbound"

// Publisher is the part of *amqp.Channel QueueSender uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueSender publishes messages as persistent JSON jobs for cmd/mailer to
// deliver. It is safe for concurrent use.
type QueueSender struct {
	mu    sync.Mutex
	ch    Publisher
	queue string
	conn  *amqp.Connection
}

// NewQueueSender publishes to queue through ch.
func NewQueueSender(ch Publisher, queue string) *QueueSender {
	if queue == "" {
		queue = DefaultQueue
	}
	return &QueueSender{ch: ch, queue: queue}
}

// DialQueueSender connects to the broker at url and declares queue.
func DialQueueSender(url, queue string) (*QueueSender, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := declareQueue(ch, queue); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s := NewQueueSender(ch, queue)
	s.conn = conn
	return s, nil
}

func declareQueue(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	return nil
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         msg.Kind,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("amqp publish %s: %w", msg.Kind, err)
	}
	return nil
}

// Close closes the broker connection if DialQueueSender opened one.
func (s *QueueSender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
