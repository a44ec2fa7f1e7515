package queue

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/ports"
)

const (
	DriverNATS     = "nats"
	DriverRabbitMQ = "rabbitmq"
	DriverMemory   = "memory"
)

// New connects the queue selected by driver.
func New(driver, url string, log *zap.Logger) (ports.MessageQueue, error) {
	switch driver {
	case DriverNATS:
		return NewNATSQueue(url, log)
	case DriverRabbitMQ:
		return NewRabbitMQQueue(url, log)
	case DriverMemory, "":
		return NewMemoryQueue(log), nil
	}
	return nil, fmt.Errorf("queue: unknown driver %q", driver)
}

// HealthChecker is implemented by queues that can report connectivity.
type HealthChecker interface {
	Healthy() bool
}

// MemoryQueue delivers messages to in-process subscribers synchronously.
// It serves single-instance deployments and tests.
type MemoryQueue struct {
	mu       sync.RWMutex
	handlers map[string][]func(data []byte) error
	closed   bool
	log      *zap.Logger
}

func NewMemoryQueue(log *zap.Logger) *MemoryQueue {
	return &MemoryQueue{
		handlers: make(map[string][]func(data []byte) error),
		log:      log,
	}
}

func (q *MemoryQueue) Publish(subject string, data []byte) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("memory queue: closed")
	}
	handlers := append([]func([]byte) error(nil), q.handlers[subject]...)
	q.mu.RUnlock()

	for _, h := range handlers {
		if err := h(data); err != nil {
			q.log.Error("Error processing message", zap.String("subject", subject), zap.Error(err))
		}
	}
	return nil
}

func (q *MemoryQueue) Subscribe(subject string, handler func(data []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("memory queue: closed")
	}
	q.handlers[subject] = append(q.handlers[subject], handler)
	return nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.handlers = make(map[string][]func(data []byte) error)
	return nil
}

func (q *MemoryQueue) Healthy() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.closed
}
