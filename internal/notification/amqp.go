package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueuePublisher sends messages to a durable queue over one long-lived
// channel.
type QueuePublisher struct {
	queue    string
	conn     *amqp.Connection
	ch       *amqp.Channel
	mu       sync.Mutex
	recorder Recorder
	logger   *slog.Logger
}

// DialQueuePublisher connects to url and declares queue.
func DialQueuePublisher(url, queue string, recorder Recorder, logger *slog.Logger) (*QueuePublisher, error) {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &QueuePublisher{
		queue:    queue,
		conn:     conn,
		ch:       ch,
		recorder: recorder,
		logger:   logger,
	}, nil
}

func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

func (p *QueuePublisher) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	// channels are not safe for concurrent publishing
	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub)
	p.mu.Unlock()

	if err != nil {
		p.recorder.Notification(TransportQueue, OutcomeFailed)
		p.logger.ErrorContext(ctx, "failed to queue notification", "message_id", msg.ID, "error", err)
		return fmt.Errorf("publish: %w", err)
	}
	p.recorder.Notification(TransportQueue, OutcomeQueued)
	p.logger.DebugContext(ctx, "notification queued", "message_id", msg.ID, "purpose", msg.Purpose)
	return nil
}

func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.ch.Close(), p.conn.Close())
}

// Consumer drains the queue into a Mailer.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	workers  int
	mailer   Mailer
	recorder Recorder
	logger   *slog.Logger
}

func NewConsumer(url, queue string, mailer Mailer, recorder Recorder, logger *slog.Logger) *Consumer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Consumer{
		url:      url,
		queue:    queue,
		prefetch: 50,
		workers:  defaultWorkers,
		mailer:   mailer,
		recorder: recorder,
		logger:   logger,
	}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
// whenever the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("notification consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("notification consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("notification consumer: set QoS failed", "error", err)
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.logger.Info("notification consumer started", "queue", c.queue, "workers", c.workers)
	return c.Drain(ctx, deliveries)
}

var errDeliveriesClosed = errors.New("deliveries channel closed")

// WithWorkers sets how many deliveries are handled concurrently.
func (c *Consumer) WithWorkers(n int) *Consumer {
	if n > 0 {
		c.workers = n
	}
	return c
}

// Handle delivers one message and settles it. Undecodable bodies are
// dropped; delivery failures are requeued.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("notification consumer: dropping malformed message", "error", err)
		c.recorder.Notification(TransportQueue, OutcomeFailed)
		_ = d.Nack(false, false)
		return
	}

	if err := c.mailer.Deliver(ctx, msg); err != nil {
		c.logger.Error("notification consumer: delivery failed", "message_id", msg.ID, "error", err)
		c.recorder.Notification(TransportQueue, OutcomeFailed)
		_ = d.Nack(false, true)
		return
	}

	c.recorder.Notification(TransportQueue, OutcomeDelivered)
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
