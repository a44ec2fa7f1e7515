package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

type CalendarConfig struct {
	DefaultWindow time.Duration
	MaxResults    int
	MaxRetries    int
	RetryDelay    time.Duration
	Timeout       time.Duration
	Now           func() time.Time
}

// CalendarHandler answers calendar_query intents from a read-only provider.
type CalendarHandler struct {
	provider ports.CalendarProvider
	mirror   ports.CalendarEventRepository
	cfg      CalendarConfig
	log      *zap.Logger
}

// NewCalendarHandler builds the handler. mirror may be nil.
func NewCalendarHandler(provider ports.CalendarProvider, mirror ports.CalendarEventRepository, cfg CalendarConfig, log *zap.Logger) *CalendarHandler {
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 7 * 24 * time.Hour
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CalendarHandler{
		provider: provider,
		mirror:   mirror,
		cfg:      cfg,
		log:      log,
	}
}

func (h *CalendarHandler) Kind() domain.IntentKind {
	return domain.IntentCalendarQuery
}

func (h *CalendarHandler) Validate(params map[string]string) error {
	return domain.ValidateParams(domain.IntentCalendarQuery, params)
}

func (h *CalendarHandler) Execute(ctx context.Context, params map[string]string) domain.ToolResult {
	query := h.query(params)

	var events []domain.CalendarEvent
	attempts, err := circuitbreaker.Retry(ctx, circuitbreaker.RetryPolicy{
		MaxAttempts:  h.cfg.MaxRetries + 1,
		InitialDelay: h.cfg.RetryDelay,
		OnRetry:      retryCounter(domain.IntentCalendarQuery, h.log),
	}, func(ctx context.Context, _ int) error {
		return attempt(ctx, h.cfg.Timeout, func(ctx context.Context) error {
			found, err := h.provider.ListEvents(ctx, query)
			if err != nil {
				return err
			}
			events = found
			return nil
		})
	})
	if err != nil {
		h.log.Error("Calendar lookup failed", zap.Int("attempts", attempts), zap.Error(err))
		result := domain.FailedResult(domain.IntentCalendarQuery, domain.KindCalendarUnavailable,
			"calendar lookup failed", "I couldn't reach your calendar")
		result.Attempts = attempts
		return result
	}

	events = selectEvents(events, query)
	h.mirrorEvents(ctx, events)

	result := domain.SucceededResult(domain.IntentCalendarQuery, calendarSummary(len(events), query), domain.ToolPayload{
		Events:      events,
		WindowStart: query.From,
		WindowEnd:   query.To,
		Category:    query.Category,
		Keyword:     query.Keyword,
	})
	result.Attempts = attempts
	return result
}

func (h *CalendarHandler) query(params map[string]string) domain.CalendarQuery {
	now := h.cfg.Now()

	window := h.cfg.DefaultWindow
	if raw := params["range"]; raw != "" {
		if d, err := domain.ParseRange(raw); err == nil {
			window = d
		}
	}

	category, _ := domain.NormalizeCategory(params["category"])
	return domain.CalendarQuery{
		From:       now,
		To:         now.Add(window),
		Category:   category,
		Keyword:    strings.TrimSpace(params["keyword"]),
		MaxResults: h.cfg.MaxResults,
	}
}

// mirrorEvents is best-effort; a failed upsert never fails the lookup.
func (h *CalendarHandler) mirrorEvents(ctx context.Context, events []domain.CalendarEvent) {
	if h.mirror == nil || len(events) == 0 {
		return
	}
	userID := domain.UserIDFromContext(ctx)
	if userID == "" {
		return
	}
	if err := h.mirror.UpsertForUser(ctx, userID, events); err != nil {
		h.log.Warn("Failed to mirror calendar events", zap.String("user_id", userID), zap.Error(err))
	}
}

// selectEvents filters by window, category and keyword, then orders by start
// time. Provider ordering is not trusted.
func selectEvents(events []domain.CalendarEvent, q domain.CalendarQuery) []domain.CalendarEvent {
	out := make([]domain.CalendarEvent, 0, len(events))
	for _, e := range events {
		if !inWindow(e, q.From, q.To) {
			continue
		}
		if q.Category != "" && !matchesCategory(e, q.Category) {
			continue
		}
		if q.Keyword != "" && !matchesKeyword(e, q.Keyword) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})

	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out
}

func inWindow(e domain.CalendarEvent, from, to time.Time) bool {
	end := e.End
	if end.IsZero() {
		end = e.Start
	}
	return !end.Before(from) && e.Start.Before(to)
}

func matchesCategory(e domain.CalendarEvent, category string) bool {
	if c, ok := domain.NormalizeCategory(e.Category); ok {
		return c == category
	}
	return strings.Contains(strings.ToLower(e.Title), category)
}

func matchesKeyword(e domain.CalendarEvent, keyword string) bool {
	k := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(e.Title), k) ||
		strings.Contains(strings.ToLower(e.Description), k) ||
		strings.Contains(strings.ToLower(e.Location), k)
}

func calendarSummary(n int, q domain.CalendarQuery) string {
	label := "events"
	if q.Category != "" {
		label = q.Category + " events"
	}
	return fmt.Sprintf("found %d %s", n, label)
}
