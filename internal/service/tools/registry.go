package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/observability/telemetry"
)

// Handler executes one external capability for one intent kind.
type Handler interface {
	Kind() domain.IntentKind
	// Validate checks presence and type of every parameter before Execute
	// is allowed to touch the outside world.
	Validate(params map[string]string) error
	Execute(ctx context.Context, params map[string]string) domain.ToolResult
}

// Registry is the fixed mapping from intent kind to handler.
type Registry struct {
	handlers map[domain.IntentKind]Handler
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger, handlers ...Handler) (*Registry, error) {
	r := &Registry{
		handlers: make(map[domain.IntentKind]Handler, len(handlers)),
		log:      log,
	}
	for _, h := range handlers {
		kind := h.Kind()
		if !kind.Actionable() {
			return nil, fmt.Errorf("tools: %q is not an actionable intent", kind)
		}
		if _, dup := r.handlers[kind]; dup {
			return nil, fmt.Errorf("tools: duplicate handler for %q", kind)
		}
		r.handlers[kind] = h
	}
	return r, nil
}

// Kinds lists the registered intent kinds.
func (r *Registry) Kinds() []domain.IntentKind {
	var out []domain.IntentKind
	for _, k := range domain.ActionableKinds() {
		if _, ok := r.handlers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Dispatch runs the handler for intent exactly once and always returns a
// result. Validation failures never reach the handler's external call.
func (r *Registry) Dispatch(ctx context.Context, intent domain.Intent) domain.ToolResult {
	start := time.Now()

	h, ok := r.handlers[intent.Kind]
	if !ok {
		r.log.Warn("No tool registered for intent", zap.String("intent", string(intent.Kind)))
		result := domain.FailedResult(intent.Kind, domain.KindValidation,
			"no tool for intent", "that request is not something I can act on")
		return r.finish(result, start)
	}

	params := intent.ParamsCopy()
	if err := h.Validate(params); err != nil {
		r.log.Info("Tool parameters rejected",
			zap.String("tool", string(intent.Kind)),
			zap.Error(err),
		)
		result := domain.FailedResult(intent.Kind, domain.KindValidation,
			"invalid parameters", validationReason(intent.Kind, params))
		return r.finish(result, start)
	}

	result := h.Execute(ctx, params)
	result.Tool = intent.Kind
	return r.finish(result, start)
}

func (r *Registry) finish(result domain.ToolResult, start time.Time) domain.ToolResult {
	result.Duration = time.Since(start)

	status := "success"
	if !result.Success {
		status = "failure"
	}
	telemetry.ToolCallsTotal.WithLabelValues(string(result.Tool), status).Inc()

	r.log.Debug("Tool dispatched",
		zap.String("tool", string(result.Tool)),
		zap.Bool("success", result.Success),
		zap.Int("attempts", result.Attempts),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func validationReason(kind domain.IntentKind, params map[string]string) string {
	bad := append(domain.MissingParams(kind, params), domain.InvalidOptionalParams(kind, params)...)
	if len(bad) == 0 {
		return "some details were missing or invalid"
	}
	return "missing or invalid " + strings.Join(bad, ", ")
}

// attempt bounds a single external call.
func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(actx)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("timed out after %s: %w", timeout, err)
	}
	return err
}

func retryCounter(kind domain.IntentKind, log *zap.Logger) func(int, error) {
	return func(n int, err error) {
		telemetry.ToolRetriesTotal.WithLabelValues(string(kind)).Inc()
		log.Warn("Retrying tool call",
			zap.String("tool", string(kind)),
			zap.Int("attempt", n),
			zap.Error(err),
		)
	}
}
