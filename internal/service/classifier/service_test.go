package classifier

import (
	"context"
	"errors"
	"reflect"
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

func newTestService(model *mocks.MockLanguageModel) *Service {
	return NewService(model, Config{
		MinConfidence: 0.6,
		HistoryTurns:  4,
		Timezone:      "America/New_York",
		Now: func() time.Time {
			return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		},
	}, newTestLogger())
}

func verdict(v domain.ModelVerdict) func(context.Context, domain.ClassificationRequest) (*domain.ModelVerdict, error) {
	return func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		return &v, nil
	}
}

func TestClassify_EmptyText(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{}
	svc := newTestService(model)

	// Act
	_, err := svc.Classify(context.Background(), "   ", nil)

	// Assert
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if model.Calls() != 0 {
		t.Errorf("expected no model calls, got %d", model.Calls())
	}
}

func TestClassify_ModelFailure(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{
		ClassifyFunc: func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
			return nil, errors.New("503 from provider")
		},
	}
	svc := newTestService(model)

	// Act
	_, err := svc.Classify(context.Background(), "what's on my calendar", nil)

	// Assert
	if !errors.Is(err, domain.ErrClassification) {
		t.Fatalf("expected classification error, got %v", err)
	}
}

func TestClassify_CalendarQuery(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "calendar_query",
		Confidence: 0.93,
		Parameters: map[string]string{"category": "Flights", "range": "7d"},
	})}
	svc := newTestService(model)

	// Act
	intent, err := svc.Classify(context.Background(), "Do I have any upcoming flights?", nil)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != domain.IntentCalendarQuery || !intent.Complete {
		t.Fatalf("expected complete calendar_query, got %+v", intent)
	}
	if intent.Param("category") != domain.CategoryFlight {
		t.Errorf("expected category flight, got %q", intent.Param("category"))
	}
	req := model.Requests[0]
	if req.Mode != domain.ModeClassify || req.Timezone != "America/New_York" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestClassify_MissingNotificationParams(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "send_notification",
		Confidence: 0.88,
	})}
	svc := newTestService(model)

	// Act
	intent, err := svc.Classify(context.Background(), "Remind me", nil)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != domain.IntentClarify || intent.Target != domain.IntentSendNotification {
		t.Fatalf("expected clarify targeting send_notification, got %+v", intent)
	}
	if intent.Question != "Remind you about what, and when?" {
		t.Errorf("unexpected question %q", intent.Question)
	}
	if !reflect.DeepEqual(intent.Missing, []string{"message", "time"}) {
		t.Errorf("unexpected missing %v", intent.Missing)
	}
}

func TestClassify_InvalidEmailIsMissing(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "send_email",
		Confidence: 0.9,
		Parameters: map[string]string{"to": "bob", "body": "running late"},
	})}
	svc := newTestService(model)

	// Act
	intent, err := svc.Classify(context.Background(), "email bob that I'm running late", nil)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != domain.IntentClarify || !reflect.DeepEqual(intent.Missing, []string{"to"}) {
		t.Fatalf("expected clarification for to, got %+v", intent)
	}
	if intent.Param("body") != "running late" {
		t.Errorf("expected body to be kept, got %q", intent.Param("body"))
	}
	if _, ok := intent.Params["to"]; ok {
		t.Error("expected malformed address to be dropped")
	}
}

func TestClassify_UnknownBecomesClarify(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "smalltalk",
		Confidence: 0.97,
	})}
	svc := newTestService(model)

	// Act
	intent, err := svc.Classify(context.Background(), "how's the weather", nil)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != domain.IntentClarify || intent.Target != domain.IntentUnknown {
		t.Fatalf("expected clarify with unknown target, got %+v", intent)
	}
	if intent.Question != capabilitiesQuestion {
		t.Errorf("unexpected question %q", intent.Question)
	}
}

func TestClassify_LowConfidence(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "calendar_query",
		Confidence: 0.3,
	})}
	svc := newTestService(model)

	// Act
	intent, _ := svc.Classify(context.Background(), "uh flights maybe", nil)

	// Assert
	if intent.Kind != domain.IntentClarify {
		t.Fatalf("expected clarify, got %s", intent.Kind)
	}
	if intent.Question != confirmQuestion(domain.IntentCalendarQuery) {
		t.Errorf("unexpected question %q", intent.Question)
	}
}

func TestClassify_AmbiguousAlternatives(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:       "calendar_query",
		Confidence:   0.7,
		Alternatives: []string{"send_notification", "calendar_query"},
	})}
	svc := newTestService(model)

	// Act
	intent, _ := svc.Classify(context.Background(), "my dentist thing tomorrow", nil)

	// Assert
	if intent.Kind != domain.IntentClarify {
		t.Fatalf("expected clarify, got %s", intent.Kind)
	}
	want := "Do you want me to check your calendar or send you a reminder?"
	if intent.Question != want {
		t.Errorf("expected %q, got %q", want, intent.Question)
	}
}

func TestClassify_AnswerMergesPending(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "send_notification",
		Confidence: 0.9,
		Parameters: map[string]string{"message": "dentist", "time": "tomorrow 9am", "bogus": "x"},
	})}
	svc := newTestService(model)

	session := domain.NewSession("user-1", time.Now())
	session.Pending = &domain.PendingClarification{
		Intent: domain.Clarification(domain.IntentSendNotification, "Remind you about what, and when?",
			[]string{"message", "time"}, nil, 0.8),
		Round: 1,
	}

	// Act
	intent, err := svc.Classify(context.Background(), "dentist tomorrow at 9am", session)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !intent.Actionable() || intent.Kind != domain.IntentSendNotification {
		t.Fatalf("expected actionable send_notification, got %+v", intent)
	}
	if intent.Param("message") != "dentist" || intent.Param("time") != "tomorrow 9am" {
		t.Errorf("unexpected params %v", intent.Params)
	}
	if _, ok := intent.Params["bogus"]; ok {
		t.Error("unknown parameter leaked into intent")
	}
	req := model.Requests[0]
	if req.Mode != domain.ModeAnswer || req.Target != domain.IntentSendNotification {
		t.Errorf("expected answer-mode request, got %+v", req)
	}
}

func TestClassify_AnswerStillIncomplete(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "send_email",
		Confidence: 0.8,
		Parameters: map[string]string{"to": "not an address"},
	})}
	svc := newTestService(model)

	session := domain.NewSession("user-1", time.Now())
	session.Pending = &domain.PendingClarification{
		Intent: domain.Clarification(domain.IntentSendEmail, "Who should I email?",
			[]string{"to"}, map[string]string{"body": "see you at 5"}, 0.8),
		Round: 1,
	}

	// Act
	intent, err := svc.Classify(context.Background(), "to my boss", session)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != domain.IntentClarify || intent.Target != domain.IntentSendEmail {
		t.Fatalf("expected another email clarification, got %+v", intent)
	}
	if intent.Param("body") != "see you at 5" {
		t.Errorf("expected known body to survive, got %v", intent.Params)
	}
}

func TestClassify_AnswerSwitchesIntent(t *testing.T) {
	// Arrange
	model := &mocks.MockLanguageModel{ClassifyFunc: verdict(domain.ModelVerdict{
		Intent:     "calendar_query",
		Confidence: 0.95,
		Parameters: map[string]string{"category": "meeting"},
	})}
	svc := newTestService(model)

	session := domain.NewSession("user-1", time.Now())
	session.Pending = &domain.PendingClarification{
		Intent: domain.Clarification(domain.IntentSendEmail, "Who should I email?", []string{"to", "body"}, nil, 0.8),
		Round:  1,
	}

	// Act
	intent, _ := svc.Classify(context.Background(), "never mind, what meetings do I have", session)

	// Assert
	if intent.Kind != domain.IntentCalendarQuery || !intent.Complete {
		t.Fatalf("expected switch to calendar_query, got %+v", intent)
	}
}

func TestQuestionFor_Deterministic(t *testing.T) {
	tests := []struct {
		kind    domain.IntentKind
		missing []string
		want    string
	}{
		{domain.IntentSendNotification, []string{"time", "message"}, "Remind you about what, and when?"},
		{domain.IntentSendNotification, []string{"time"}, "When should I remind you?"},
		{domain.IntentSendEmail, []string{"to", "body"}, "Who should I email, and what should it say?"},
		{domain.IntentSendEmail, []string{"body"}, "What would you like the email to say?"},
		{domain.IntentCalendarQuery, nil, capabilitiesQuestion},
	}

	for _, tt := range tests {
		if got := QuestionFor(tt.kind, tt.missing); got != tt.want {
			t.Errorf("QuestionFor(%s, %v) = %q, want %q", tt.kind, tt.missing, got, tt.want)
		}
	}
}
