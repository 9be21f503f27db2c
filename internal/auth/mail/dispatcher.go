package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Dispatcher consumes queued jobs and delivers them through a Sender.
type Dispatcher struct {
	URL      string
	Queue    string
	Delivery Sender
	Logger   *slog.Logger

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDispatcher creates a dispatcher for queue on the broker at url.
func NewDispatcher(url, queue string, delivery Sender, logger *slog.Logger) *Dispatcher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Dispatcher{
		URL:      url,
		Queue:    queue,
		Delivery: delivery,
		Logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins consuming in the background. Call Stop to shut down.
func (d *Dispatcher) Start() {
	go d.run()
	d.Logger.Info("mail dispatcher started", "queue", d.Queue)
}

// Stop stops consuming and blocks until the in-flight job has finished.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	<-d.doneCh
	d.Logger.Info("mail dispatcher stopped")
}

// run dials the broker, consumes until the connection drops, and dials again
// with exponential back-off.
func (d *Dispatcher) run() {
	defer close(d.doneCh)

	backoff := minBackoff
	for {
		conn, err := amqp.Dial(d.URL)
		if err != nil {
			d.Logger.Warn("failed to dial broker", "error", err, "retry_in", backoff)
			if !d.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		err = d.session(conn)
		_ = conn.Close()
		if err == nil {
			return
		}

		d.Logger.Warn("consume loop ended, reconnecting", "error", err)
		if !d.sleep(2 * time.Second) {
			return
		}
	}
}

// sleep waits for delay and reports false if Stop was called meanwhile.
func (d *Dispatcher) sleep(delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.stopCh:
		return false
	}
}

// session consumes from one connection. It returns nil only when stopped.
func (d *Dispatcher) session(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		d.Logger.Warn("set QoS failed", "error", err)
	}

	if err := declareQueue(ch, d.Queue); err != nil {
		return err
	}

	msgs, err := ch.Consume(d.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	return d.consume(msgs)
}

// consume processes deliveries until Stop is called or msgs closes.
func (d *Dispatcher) consume(msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-d.stopCh:
			return nil
		case m, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			d.process(m)
		}
	}
}

var errMalformedJob = errors.New("malformed mail job")

// process delivers one job and settles it. Malformed jobs are dropped. A
// failed delivery is requeued once.
func (d *Dispatcher) process(m amqp.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := d.handle(ctx, m.Body)
	switch {
	case err == nil:
		_ = m.Ack(false)
	case errors.Is(err, errMalformedJob):
		d.Logger.Error("dropping mail job", "error", err)
		_ = m.Nack(false, false)
	default:
		d.Logger.Error("mail delivery failed", "error", err, "redelivered", m.Redelivered)
		_ = m.Nack(false, !m.Redelivered)
	}
}

func (d *Dispatcher) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", errMalformedJob, err)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errMalformedJob, err)
	}

	if err := d.Delivery.Send(ctx, msg); err != nil {
		return err
	}
	d.Logger.Info("mail delivered", "kind", msg.Kind)
	return nil
}
