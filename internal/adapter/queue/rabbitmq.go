package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/ports"
)

// EventsExchange is the topic exchange every subject is published to.
// Subjects such as "voice.turns.recorded" become routing keys, so a
// consumer may bind "voice.turns.*" to follow all turn events.
const EventsExchange = "hiya.events"

const (
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

type subscription struct {
	bindingKey string
	handler    func(data []byte) error
}

// RabbitMQQueue publishes turn events to a durable topic exchange.
// Subscriptions are replayed after a reconnect.
type RabbitMQQueue struct {
	url string
	log *zap.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	subs    []subscription
	closed  bool
}

func NewRabbitMQQueue(url string, log *zap.Logger) (ports.MessageQueue, error) {
	q := &RabbitMQQueue{url: url, log: log}
	if err := q.connect(); err != nil {
		return nil, err
	}

	go q.watch(q.conn)

	log.Info("Connected to RabbitMQ", zap.String("exchange", EventsExchange))
	return q, nil
}

// connect dials, opens a channel and declares the exchange. Callers hold
// no lock; the new handles are swapped in under mu.
func (q *RabbitMQQueue) connect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange %s: %w", EventsExchange, err)
	}

	q.mu.Lock()
	q.conn, q.channel = conn, ch
	q.mu.Unlock()
	return nil
}

func (q *RabbitMQQueue) Publish(subject string, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}
	if err := q.channel.Publish(EventsExchange, subject, false, false, eventPublishing(data, time.Now())); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", subject, err)
	}
	return nil
}

// eventPublishing wraps an encoded turn event. Events are persistent so
// durable consumer queues survive a broker restart.
func eventPublishing(data []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now.UTC(),
		AppId:        "hiya-assistant",
		Body:         data,
	}
}

// Subscribe binds an exclusive queue to the exchange with subject as the
// binding key. A handler error rejects the delivery without requeueing it.
func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	sub := subscription{bindingKey: subject, handler: handler}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}
	if err := q.consume(q.channel, sub); err != nil {
		return err
	}
	q.subs = append(q.subs, sub)

	q.log.Info("Subscribed to turn events", zap.String("binding_key", subject))
	return nil
}

func (q *RabbitMQQueue) consume(ch *amqp.Channel, sub subscription) error {
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, sub.bindingKey, EventsExchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind %s: %w", sub.bindingKey, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for d := range deliveries {
			if err := sub.handler(d.Body); err != nil {
				q.log.Error("Turn event handler failed",
					zap.String("routing_key", d.RoutingKey),
					zap.String("message_id", d.MessageId),
					zap.Error(err),
				)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}()
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	if q.channel != nil {
		_ = q.channel.Close()
	}
	if q.conn != nil && !q.conn.IsClosed() {
		return q.conn.Close()
	}
	return nil
}

func (q *RabbitMQQueue) Healthy() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.closed && q.conn != nil && !q.conn.IsClosed()
}

// watch reconnects with capped backoff when the broker drops conn, then
// replays every subscription on the new channel.
func (q *RabbitMQQueue) watch(conn *amqp.Connection) {
	for {
		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok || q.isClosed() {
			return
		}
		q.log.Warn("RabbitMQ connection lost", zap.String("reason", reason.Reason))

		for attempt := 0; ; attempt++ {
			time.Sleep(reconnectDelay(attempt))
			if q.isClosed() {
				return
			}
			if err := q.connect(); err != nil {
				q.log.Error("RabbitMQ reconnect failed", zap.Int("attempt", attempt+1), zap.Error(err))
				continue
			}
			break
		}

		q.mu.Lock()
		conn = q.conn
		for _, sub := range q.subs {
			if err := q.consume(q.channel, sub); err != nil {
				q.log.Error("Failed to restore subscription",
					zap.String("binding_key", sub.bindingKey),
					zap.Error(err),
				)
			}
		}
		restored := len(q.subs)
		q.mu.Unlock()

		q.log.Info("Reconnected to RabbitMQ", zap.Int("subscriptions", restored))
	}
}

func (q *RabbitMQQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// reconnectDelay doubles from minReconnectDelay up to maxReconnectDelay.
func reconnectDelay(attempt int) time.Duration {
	delay := minReconnectDelay
	for i := 0; i < attempt && delay < maxReconnectDelay; i++ {
		delay *= 2
	}
	if delay > maxReconnectDelay {
		return maxReconnectDelay
	}
	return delay
}
