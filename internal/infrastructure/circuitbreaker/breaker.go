package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Errors
var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Settings configures a breaker. The breaker trips once at least
// MinRequests were seen in the current interval and the failure ratio
// reaches FailureRatio.
type Settings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64

	// IsSuccessful decides whether an error counts against the breaker.
	// Context cancellation by the caller never does.
	IsSuccessful func(err error) bool
}

// DefaultSettings returns default circuit breaker settings
func DefaultSettings(name string) Settings {
	return Settings{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// Breaker guards calls to one downstream dependency.
type Breaker struct {
	cb  *gobreaker.CircuitBreaker
	log *zap.Logger
}

func New(settings Settings, log *zap.Logger) *Breaker {
	if settings.MinRequests == 0 {
		settings.MinRequests = 5
	}
	if settings.FailureRatio <= 0 {
		settings.FailureRatio = 0.6
	}
	isSuccessful := settings.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})

	return &Breaker{cb: cb, log: log}
}

// Execute runs fn unless the breaker is open. Open and half-open rejections
// are returned as *Error wrapping ErrCircuitOpen or ErrTooManyRequests.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return b.translate(err)
}

func (b *Breaker) translate(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return &Error{Name: b.cb.Name(), State: b.State(), Err: ErrCircuitOpen}
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return &Error{Name: b.cb.Name(), State: b.State(), Err: ErrTooManyRequests}
	}
	return err
}

// State returns the current state name: closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// ExecuteWithResult runs fn through the breaker and returns its result.
func ExecuteWithResult[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Manager manages multiple circuit breakers
type Manager struct {
	breakers map[string]*Breaker
	defaults Settings
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewManager creates a manager whose breakers start from defaults.
func NewManager(defaults Settings, log *zap.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
		log:      log,
	}
}

// Get returns a circuit breaker by name, creating it if it doesn't exist
func (m *Manager) Get(name string) *Breaker {
	m.mu.RLock()
	b, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists = m.breakers[name]; exists {
		return b
	}

	settings := m.defaults
	settings.Name = name
	b = New(settings, m.log)
	m.breakers[name] = b

	return b
}

// Status returns the status of all circuit breakers
func (m *Manager) Status() map[string]BreakerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]BreakerStatus, len(m.breakers))
	for name, b := range m.breakers {
		status[name] = BreakerStatus{
			Name:  name,
			State: b.State(),
		}
	}
	return status
}

// BreakerStatus represents the status of a circuit breaker
type BreakerStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Error wraps an error with circuit breaker context
type Error struct {
	Name  string
	State string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("circuit breaker %s (%s): %v", e.Name, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCircuitOpen checks if the error is due to an open circuit
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsTooManyRequests checks if the error is due to too many requests
func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}
