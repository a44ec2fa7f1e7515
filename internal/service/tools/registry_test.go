package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	calendar *mocks.MockCalendarProvider
	mirror   *mocks.MockCalendarEventRepository
	push     *mocks.MockPushNotifier
	email    *mocks.MockEmailSender
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		calendar: &mocks.MockCalendarProvider{},
		mirror:   &mocks.MockCalendarEventRepository{},
		push:     &mocks.MockPushNotifier{},
		email:    &mocks.MockEmailSender{},
	}
	log := newTestLogger()

	registry, err := NewRegistry(log,
		NewCalendarHandler(f.calendar, f.mirror, CalendarConfig{
			MaxRetries: 2,
			RetryDelay: time.Millisecond,
			Timeout:    time.Second,
			Now:        func() time.Time { return testNow },
		}, log),
		NewNotificationHandler(f.push, NotificationConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}, log),
		NewEmailHandler(f.email, EmailConfig{Timeout: time.Second}, log),
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	f.registry = registry
	return f
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	log := newTestLogger()
	h := NewEmailHandler(&mocks.MockEmailSender{}, EmailConfig{}, log)

	if _, err := NewRegistry(log, h, h); err == nil {
		t.Fatal("expected duplicate handler error")
	}
}

func TestDispatch_NonActionableNeverRuns(t *testing.T) {
	// Arrange
	f := newFixture(t)
	intent := domain.Clarification(domain.IntentSendEmail, "Who?", []string{"to"}, nil, 0.5)

	// Act
	result := f.registry.Dispatch(context.Background(), intent)

	// Assert
	if result.Success || result.Error == nil || result.Error.Kind != domain.KindValidation {
		t.Fatalf("expected validation failure, got %+v", result)
	}
	if f.email.Calls()+f.push.Calls()+f.calendar.Calls() != 0 {
		t.Error("expected no external calls")
	}
}

func TestDispatch_CalendarOrderedAndFiltered(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.calendar.ListEventsFunc = func(ctx context.Context, q domain.CalendarQuery) ([]domain.CalendarEvent, error) {
		return []domain.CalendarEvent{
			{ID: "3", Title: "Flight to Lisbon", Start: testNow.Add(72 * time.Hour), End: testNow.Add(75 * time.Hour)},
			{ID: "2", Title: "Dentist", Category: "appointment", Start: testNow.Add(24 * time.Hour), End: testNow.Add(25 * time.Hour)},
			{ID: "1", Title: "UA 455 SFO-JFK", Category: "flight", Start: testNow.Add(26 * time.Hour), End: testNow.Add(31 * time.Hour)},
			{ID: "4", Title: "Flight home", Start: testNow.Add(30 * 24 * time.Hour)},
		}, nil
	}
	intent := domain.NewIntent(domain.IntentCalendarQuery, map[string]string{"category": "flight", "range": "7d"}, 0.9)
	ctx := domain.WithUserID(context.Background(), "user-1")

	// Act
	result := f.registry.Dispatch(ctx, intent)

	// Assert
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	events := result.Payload.Events
	if len(events) != 2 || events[0].ID != "1" || events[1].ID != "3" {
		t.Fatalf("unexpected events %+v", events)
	}
	if !result.Payload.WindowEnd.Equal(testNow.Add(7 * 24 * time.Hour)) {
		t.Errorf("unexpected window end %v", result.Payload.WindowEnd)
	}
	if got := f.mirror.UpsertedFor("user-1"); len(got) != 2 {
		t.Errorf("expected 2 mirrored events, got %d", len(got))
	}
}

func TestDispatch_CalendarEmptyIsSuccess(t *testing.T) {
	// Arrange
	f := newFixture(t)
	intent := domain.NewIntent(domain.IntentCalendarQuery, nil, 0.9)

	// Act
	result := f.registry.Dispatch(context.Background(), intent)

	// Assert
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if len(result.Payload.Events) != 0 {
		t.Errorf("expected no events, got %d", len(result.Payload.Events))
	}
}

func TestDispatch_CalendarRetriesThenFails(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.calendar.ListEventsFunc = func(ctx context.Context, q domain.CalendarQuery) ([]domain.CalendarEvent, error) {
		return nil, errors.New("oauth token expired")
	}
	intent := domain.NewIntent(domain.IntentCalendarQuery, nil, 0.9)

	// Act
	result := f.registry.Dispatch(context.Background(), intent)

	// Assert
	if result.Success || result.Error.Kind != domain.KindCalendarUnavailable {
		t.Fatalf("expected calendar unavailable, got %+v", result)
	}
	if f.calendar.Calls() != 3 || result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got calls=%d attempts=%d", f.calendar.Calls(), result.Attempts)
	}
	if strings.Contains(result.Error.Message, "oauth") {
		t.Error("provider detail leaked into user-facing reason")
	}
}

func TestDispatch_NotificationRetriesTransientFailure(t *testing.T) {
	// Arrange
	f := newFixture(t)
	calls := 0
	f.push.PushFunc = func(ctx context.Context, msg domain.PushMessage) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection reset")
		}
		return "req-42", nil
	}
	intent := domain.NewIntent(domain.IntentSendNotification, map[string]string{"message": "dentist", "time": "tomorrow 9am"}, 0.9)

	// Act
	result := f.registry.Dispatch(context.Background(), intent)

	// Assert
	if !result.Success || result.Payload.DeliveryID != "req-42" {
		t.Fatalf("expected delivery req-42, got %+v", result)
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
	msg := f.push.Messages[1]
	if msg.Title != DefaultReminderTitle || msg.Message != "dentist (tomorrow 9am)" {
		t.Errorf("unexpected push message %+v", msg)
	}
}

func TestDispatch_NotificationExhausted(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.push.PushFunc = func(ctx context.Context, msg domain.PushMessage) (string, error) {
		return "", errors.New("503")
	}
	intent := domain.NewIntent(domain.IntentSendNotification, map[string]string{"message": "stretch", "time": "now"}, 0.9)

	// Act
	result := f.registry.Dispatch(context.Background(), intent)

	// Assert
	if result.Success || result.Error.Kind != domain.KindNotificationDelivery {
		t.Fatalf("expected delivery failure, got %+v", result)
	}
	if f.push.Calls() != 3 {
		t.Errorf("expected 3 push attempts, got %d", f.push.Calls())
	}
}

func TestDispatch_NotificationTimeoutEachAttempt(t *testing.T) {
	// Arrange
	log := newTestLogger()
	push := &mocks.MockPushNotifier{
		PushFunc: func(ctx context.Context, msg domain.PushMessage) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	registry, err := NewRegistry(log, NewNotificationHandler(push, NotificationConfig{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Timeout:     20 * time.Millisecond,
	}, log))
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	intent := domain.NewIntent(domain.IntentSendNotification, map[string]string{"message": "stretch", "time": "now"}, 0.9)

	// Act
	start := time.Now()
	result := registry.Dispatch(context.Background(), intent)

	// Assert
	if result.Success || result.Error == nil || result.Error.Kind != domain.KindNotificationDelivery {
		t.Fatalf("expected delivery failure, got %+v", result)
	}
	if result.Attempts != 3 || push.Calls() != 3 {
		t.Errorf("expected 3 timed-out attempts, got attempts=%d calls=%d", result.Attempts, push.Calls())
	}
	if time.Since(start) > 2*time.Second {
		t.Error("expected each attempt to be bounded by the tool timeout")
	}
}

func TestDispatch_CalendarTimeoutFails(t *testing.T) {
	// Arrange
	log := newTestLogger()
	calendar := &mocks.MockCalendarProvider{
		ListEventsFunc: func(ctx context.Context, q domain.CalendarQuery) ([]domain.CalendarEvent, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	registry, err := NewRegistry(log, NewCalendarHandler(calendar, nil, CalendarConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Timeout:    20 * time.Millisecond,
		Now:        func() time.Time { return testNow },
	}, log))
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	// Act
	result := registry.Dispatch(context.Background(), domain.NewIntent(domain.IntentCalendarQuery, map[string]string{"range": "7d"}, 0.9))

	// Assert
	if result.Success || result.Error == nil || result.Error.Kind != domain.KindCalendarUnavailable {
		t.Fatalf("expected calendar failure, got %+v", result)
	}
	if calendar.Calls() != 2 {
		t.Errorf("expected first call plus one retry, got %d", calendar.Calls())
	}
}

func TestDispatch_EmailFailureNotRetried(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.email.SendFunc = func(ctx context.Context, msg domain.EmailMessage) (string, error) {
		return "", errors.New("sendgrid: 401 unauthorized")
	}
	intent := domain.NewIntent(domain.IntentSendEmail, map[string]string{"to": "Bob <bob@example.com>", "body": "running late"}, 0.9)

	// Act
	result := f.registry.Dispatch(context.Background(), intent)

	// Assert
	if result.Success || result.Error.Kind != domain.KindEmailDelivery {
		t.Fatalf("expected email delivery failure, got %+v", result)
	}
	if f.email.Calls() != 1 || result.Attempts != 1 {
		t.Errorf("expected exactly one send, got %d", f.email.Calls())
	}
	if f.email.Messages[0].To != "bob@example.com" || f.email.Messages[0].Subject != DefaultEmailSubject {
		t.Errorf("unexpected message %+v", f.email.Messages[0])
	}
}

func TestDispatch_EmailInvalidRecipientSkipsSend(t *testing.T) {
	// Arrange
	f := newFixture(t)
	intent := domain.Intent{
		Kind:     domain.IntentSendEmail,
		Params:   map[string]string{"to": "bob at work", "body": "hi"},
		Complete: true,
	}

	// Act
	result := f.registry.Dispatch(context.Background(), intent)

	// Assert
	if result.Error == nil || result.Error.Kind != domain.KindValidation {
		t.Fatalf("expected validation failure, got %+v", result)
	}
	if !strings.Contains(result.Error.Message, "to") {
		t.Errorf("expected reason to name the recipient, got %q", result.Error.Message)
	}
	if f.email.Calls() != 0 {
		t.Error("expected no send for invalid recipient")
	}
}
