package calendar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
)

const (
	op = "google_calendar.list"

	// categoryProperty is the private extended property that tags an event
	// explicitly. Untagged events are categorized from their title.
	categoryProperty = "category"

	minFetch = 50
)

var ErrNotConfigured = errors.New("google calendar: credentials not configured")

type Config struct {
	CredentialsFile string
	CredentialsJSON string
	DelegatedUser   string
	CalendarID      string
}

// GoogleProvider reads events from one Google calendar with a service
// account, optionally impersonating a workspace user.
type GoogleProvider struct {
	svc        *gcal.Service
	calendarID string
	breaker    *circuitbreaker.Breaker
	log        *zap.Logger
}

func NewGoogleProvider(ctx context.Context, cfg Config, breaker *circuitbreaker.Breaker, log *zap.Logger) (*GoogleProvider, error) {
	creds := []byte(cfg.CredentialsJSON)
	if len(creds) == 0 && cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("google calendar: read credentials: %w", err)
		}
		creds = data
	}
	if len(creds) == 0 {
		return nil, ErrNotConfigured
	}

	jwtCfg, err := google.JWTConfigFromJSON(creds, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("google calendar: parse credentials: %w", err)
	}
	if cfg.DelegatedUser != "" {
		jwtCfg.Subject = cfg.DelegatedUser
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("google calendar: create service: %w", err)
	}
	return newGoogleProvider(svc, cfg.CalendarID, breaker, log), nil
}

func newGoogleProvider(svc *gcal.Service, calendarID string, breaker *circuitbreaker.Breaker, log *zap.Logger) *GoogleProvider {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleProvider{svc: svc, calendarID: calendarID, breaker: breaker, log: log}
}

// ListEvents returns single events in the window ordered by start time.
// Category filtering is left to the caller, so the fetch is not capped at
// query.MaxResults.
func (p *GoogleProvider) ListEvents(ctx context.Context, query domain.CalendarQuery) ([]domain.CalendarEvent, error) {
	fetch := int64(minFetch)
	if query.MaxResults > minFetch {
		fetch = int64(query.MaxResults)
	}

	call := p.svc.Events.List(p.calendarID).
		TimeMin(query.From.Format(time.RFC3339)).
		TimeMax(query.To.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(fetch)
	if query.Keyword != "" {
		call = call.Q(query.Keyword)
	}

	list := func(ctx context.Context) (*gcal.Events, error) {
		return call.Context(ctx).Do()
	}

	var (
		events *gcal.Events
		err    error
	)
	if p.breaker != nil {
		events, err = circuitbreaker.ExecuteWithResult(ctx, p.breaker, list)
	} else {
		events, err = list(ctx)
	}
	if err != nil {
		return nil, domain.NewError(domain.KindCalendarUnavailable, op, err)
	}

	out := make([]domain.CalendarEvent, 0, len(events.Items))
	for _, item := range events.Items {
		ev, ok := toDomainEvent(item)
		if !ok {
			p.log.Debug("Skipping calendar event without start", zap.String("event_id", item.Id))
			continue
		}
		out = append(out, ev)
	}

	p.log.Debug("Fetched events from Google Calendar", zap.Int("count", len(out)))
	return out, nil
}

func toDomainEvent(item *gcal.Event) (domain.CalendarEvent, bool) {
	if item == nil || item.Status == "cancelled" {
		return domain.CalendarEvent{}, false
	}
	start, allDay, ok := eventTime(item.Start)
	if !ok {
		return domain.CalendarEvent{}, false
	}
	end, _, ok := eventTime(item.End)
	if !ok {
		end = start
	}

	title := strings.TrimSpace(item.Summary)
	if title == "" {
		title = "(untitled event)"
	}

	return domain.CalendarEvent{
		ID:          item.Id,
		Title:       title,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Category:    eventCategory(item),
		Location:    strings.TrimSpace(item.Location),
		Description: item.Description,
	}, true
}

func eventTime(t *gcal.EventDateTime) (time.Time, bool, bool) {
	if t == nil {
		return time.Time{}, false, false
	}
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, false, err == nil
	}
	if t.Date != "" {
		loc := time.UTC
		if t.TimeZone != "" {
			if l, err := time.LoadLocation(t.TimeZone); err == nil {
				loc = l
			}
		}
		v, err := time.ParseInLocation("2006-01-02", t.Date, loc)
		return v, true, err == nil
	}
	return time.Time{}, false, false
}

var categoryHints = []struct {
	category string
	words    []string
}{
	{domain.CategoryFlight, []string{"flight", "fly to", "boarding", "airport"}},
	{domain.CategoryAppointment, []string{"appointment", "dentist", "doctor", "checkup", "haircut"}},
	{domain.CategoryMeeting, []string{"meeting", "sync", "standup", "1:1", "call with"}},
}

func eventCategory(item *gcal.Event) string {
	if item.ExtendedProperties != nil {
		if c, ok := domain.NormalizeCategory(item.ExtendedProperties.Private[categoryProperty]); ok {
			return c
		}
	}
	title := strings.ToLower(item.Summary)
	for _, hint := range categoryHints {
		for _, w := range hint.words {
			if strings.Contains(title, w) {
				return hint.category
			}
		}
	}
	return ""
}
