package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// Pinger is satisfied by the turn stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CachePinger is satisfied by ports.Cache.
type CachePinger interface {
	Ping() error
}

// QueueHealth is satisfied by the queue adapters.
type QueueHealth interface {
	Healthy() bool
}

type Service struct {
	startTime time.Time
	version   string
	timeout   time.Duration
	checkers  map[string]Checker
	log       *zap.Logger
	mu        sync.RWMutex
}

// Config holds health service configuration. Nil dependencies are not
// checked.
type Config struct {
	Version string
	Timeout time.Duration
	Ledger  Pinger
	Cache   CachePinger
	Queue   QueueHealth
}

func NewService(config *Config, log *zap.Logger) *Service {
	s := &Service{
		startTime: time.Now(),
		version:   config.Version,
		timeout:   config.Timeout,
		checkers:  make(map[string]Checker),
		log:       log,
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	if config.Ledger != nil {
		s.RegisterChecker("ledger", PingChecker("ledger", config.Ledger.Ping, StatusUnhealthy, log))
	}
	if config.Cache != nil {
		cache := config.Cache
		// The session cache failing degrades clarification but turns still run.
		s.RegisterChecker("cache", PingChecker("cache", func(context.Context) error { return cache.Ping() }, StatusDegraded, log))
	}
	if config.Queue != nil {
		s.RegisterChecker("queue", s.queueChecker(config.Queue))
	}

	return s
}

// RegisterChecker registers a custom health checker
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.log.Info("Registered health checker", zap.String("name", name))
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now(),
	}
}

// Ready runs every registered checker concurrently.
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	s.mu.RUnlock()

	results := make(map[string]CheckResult)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			result := checker(checkCtx)

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overallStatus := StatusHealthy
	allReady := true

	for _, result := range results {
		if result.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			allReady = false
		} else if result.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return &ReadyResponse{
		Ready:     allReady,
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// PingChecker adapts a ping func. failStatus is reported when the ping
// errors.
func PingChecker(name string, ping func(ctx context.Context) error, failStatus Status, log *zap.Logger) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		err := ping(ctx)
		result := CheckResult{
			Name:      name,
			Duration:  time.Since(start),
			Timestamp: start,
			Status:    StatusHealthy,
			Message:   "connection ok",
		}
		if err != nil {
			result.Status = failStatus
			result.Message = fmt.Sprintf("ping failed: %v", err)
			log.Warn("Health check failed", zap.String("name", name), zap.Error(err))
		}
		return result
	}
}

func (s *Service) queueChecker(q QueueHealth) Checker {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{
			Name:      "queue",
			Timestamp: time.Now(),
			Status:    StatusHealthy,
			Message:   "connected",
		}
		// Turn events are best effort.
		if !q.Healthy() {
			result.Status = StatusDegraded
			result.Message = "disconnected"
		}
		return result
	}
}
