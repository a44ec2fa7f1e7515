package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/adapter/cache"
	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/mocks"
	"github.com/seu-repo/hiya-assistant/internal/service/classifier"
	"github.com/seu-repo/hiya-assistant/internal/service/composer"
	"github.com/seu-repo/hiya-assistant/internal/service/ledger"
	"github.com/seu-repo/hiya-assistant/internal/service/tools"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	model       *mocks.MockLanguageModel
	transcriber *mocks.MockTranscriber
	calendar    *mocks.MockCalendarProvider
	push        *mocks.MockPushNotifier
	email       *mocks.MockEmailSender
	turns       *mocks.MockTurnRepository
	ledger      *ledger.Service
	orch        *Orchestrator
}

func newHarness(t *testing.T, maxRounds int) *harness {
	t.Helper()
	log := newTestLogger()
	now := func() time.Time { return testNow }

	h := &harness{
		model:       &mocks.MockLanguageModel{},
		transcriber: &mocks.MockTranscriber{},
		calendar:    &mocks.MockCalendarProvider{},
		push:        &mocks.MockPushNotifier{},
		email:       &mocks.MockEmailSender{},
		turns:       &mocks.MockTurnRepository{},
	}

	registry, err := tools.NewRegistry(log,
		tools.NewCalendarHandler(h.calendar, nil, tools.CalendarConfig{MaxRetries: 1, RetryDelay: time.Millisecond, Now: now}, log),
		tools.NewNotificationHandler(h.push, tools.NotificationConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}, log),
		tools.NewEmailHandler(h.email, tools.EmailConfig{}, log),
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	h.ledger = ledger.NewService(h.turns, mocks.NewMockCache(), nil, ledger.Config{Now: now}, log)

	var seq int64
	h.orch = New(Dependencies{
		Transcriber: h.transcriber,
		Classifier:  classifier.NewService(h.model, classifier.Config{MinConfidence: 0.5, HistoryTurns: 4, Now: now}, log),
		Tools:       registry,
		Composer:    composer.NewService(nil, nil, composer.Config{}, log),
		Ledger:      h.ledger,
		Locker:      cache.NewLocalLocker(),
	}, Config{
		MaxClarificationRounds: maxRounds,
		Timeouts:               Timeouts{Classification: time.Second, Persistence: time.Second},
		Now:                    now,
		NewID: func() string {
			return fmt.Sprintf("turn-%d", atomic.AddInt64(&seq, 1))
		},
	}, log)
	return h
}

func (h *harness) toolCalls() int {
	return h.calendar.Calls() + h.push.Calls() + h.email.Calls()
}

func states(turn domain.Turn) []domain.TurnState {
	out := []domain.TurnState{domain.StateAwaitingInput}
	for _, tr := range turn.Transitions {
		out = append(out, tr.To)
	}
	return out
}

func TestHandleTurn_FlightQuery(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		return &domain.ModelVerdict{
			Intent:     "calendar_query",
			Confidence: 0.92,
			Parameters: map[string]string{"category": "flight", "range": "7d"},
		}, nil
	}
	h.calendar.ListEventsFunc = func(ctx context.Context, q domain.CalendarQuery) ([]domain.CalendarEvent, error) {
		return []domain.CalendarEvent{{
			ID:       "ev-1",
			Title:    "UA 455 SFO-JFK",
			Category: "flight",
			Start:    time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC),
			End:      time.Date(2026, 3, 4, 20, 30, 0, 0, time.UTC),
		}}, nil
	}

	// Act
	out, err := h.orch.HandleTurn(context.Background(), domain.Submission{UserID: "user-1", Text: "What flights do I have this week?"})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != domain.StateDone || out.Outcome != domain.OutcomeCompleted {
		t.Fatalf("expected DONE/completed, got %s/%s", out.State, out.Outcome)
	}
	if out.Result == nil || !out.Result.Success {
		t.Fatalf("expected successful result, got %+v", out.Result)
	}
	for _, want := range []string{"UA 455 SFO-JFK", "Mar 04", "03:00 PM"} {
		if !strings.Contains(out.Response.Text, want) {
			t.Errorf("response %q does not mention %q", out.Response.Text, want)
		}
	}
	if h.turns.Count() != 1 || !out.Persisted {
		t.Fatalf("expected one persisted turn, got %d", h.turns.Count())
	}

	wantTrail := []domain.TurnState{
		domain.StateAwaitingInput, domain.StateClassifying, domain.StateDispatching,
		domain.StateComposing, domain.StateLogging, domain.StateDone,
	}
	if got := states(h.turns.Turns[0]); !reflect.DeepEqual(got, wantTrail) {
		t.Errorf("unexpected trail %v", got)
	}
}

func TestHandleTurn_ClarifyThenDispatch(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		if req.Mode == domain.ModeAnswer {
			return &domain.ModelVerdict{
				Intent:     "send_notification",
				Confidence: 0.9,
				Parameters: map[string]string{"message": "dentist", "time": "tomorrow 9am"},
			}, nil
		}
		return &domain.ModelVerdict{Intent: "send_notification", Confidence: 0.85}, nil
	}
	ctx := context.Background()

	// Act
	first, err := h.orch.HandleTurn(ctx, domain.Submission{UserID: "user-1", Text: "remind me"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := h.orch.HandleTurn(ctx, domain.Submission{UserID: "user-1", Text: "the dentist tomorrow at 9am"})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}

	// Assert
	if first.Outcome != domain.OutcomeClarification || first.Response.Text != "Remind you about what, and when?" {
		t.Fatalf("unexpected first outcome %+v", first)
	}
	if first.Result != nil {
		t.Error("clarification must not produce a tool result")
	}

	if second.Outcome != domain.OutcomeCompleted || second.Intent.Kind != domain.IntentSendNotification {
		t.Fatalf("unexpected second outcome %+v", second)
	}
	if second.Intent.Param("message") != "dentist" || second.Intent.Param("time") != "tomorrow 9am" {
		t.Errorf("unexpected merged params %v", second.Intent.Params)
	}
	if h.push.Calls() != 1 {
		t.Errorf("expected one push, got %d", h.push.Calls())
	}
	if pending, _ := h.ledger.GetPendingClarification(ctx, "user-1"); pending != nil {
		t.Errorf("expected pending clarification to be cleared, got %+v", pending)
	}
	if h.turns.Count() != 2 {
		t.Errorf("expected 2 persisted turns, got %d", h.turns.Count())
	}
	trail := states(h.turns.Turns[1])
	if trail[1] != domain.StateClarifying || trail[2] != domain.StateClassifying {
		t.Errorf("expected the answer to re-enter classification from CLARIFYING, got %v", trail)
	}
}

func TestHandleTurn_EmailFailureNotRetried(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		return &domain.ModelVerdict{
			Intent:     "send_email",
			Confidence: 0.9,
			Parameters: map[string]string{"to": "bob@example.com", "body": "running late"},
		}, nil
	}
	h.email.SendFunc = func(ctx context.Context, msg domain.EmailMessage) (string, error) {
		return "", errors.New("sendgrid: 500")
	}

	// Act
	out, err := h.orch.HandleTurn(context.Background(), domain.Submission{UserID: "user-1", Text: "email bob I'm running late"})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result == nil || out.Result.Success {
		t.Fatalf("expected failed result, got %+v", out.Result)
	}
	if !strings.Contains(out.Response.Text, "email delivery failed") {
		t.Errorf("response %q does not name the failure", out.Response.Text)
	}
	if h.email.Calls() != 1 {
		t.Errorf("expected exactly one send, got %d", h.email.Calls())
	}
	persisted := h.turns.Turns[0]
	if persisted.Success || persisted.ErrorKind != domain.KindEmailDelivery {
		t.Errorf("unexpected persisted turn %+v", persisted)
	}
	if out.State != domain.StateDone {
		t.Errorf("stage-local failures should still finish DONE, got %s", out.State)
	}
}

func TestHandleTurn_ClarificationExhausted(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		return &domain.ModelVerdict{Intent: "unknown", Confidence: 0.9}, nil
	}
	ctx := context.Background()

	// Act
	var outs []*domain.TurnOutcome
	for i := 0; i < 3; i++ {
		out, err := h.orch.HandleTurn(ctx, domain.Submission{UserID: "user-1", Text: "blah"})
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		outs = append(outs, out)
	}

	// Assert
	for i := 0; i < 2; i++ {
		if outs[i].Outcome != domain.OutcomeClarification {
			t.Errorf("turn %d: expected clarification, got %s", i+1, outs[i].Outcome)
		}
	}
	last := outs[2]
	if last.State != domain.StateFailed {
		t.Fatalf("expected FAILED, got %s", last.State)
	}
	if last.Response.Text != domain.UserMessage(domain.KindClarificationExhausted) {
		t.Errorf("unexpected response %q", last.Response.Text)
	}

	if h.turns.Count() != 3 {
		t.Fatalf("expected 3 persisted turns, got %d", h.turns.Count())
	}
	failed := h.turns.Turns[2]
	if failed.OutcomeDetail != domain.OutcomeDetailNotUnderstood || failed.ErrorKind != domain.KindClarificationExhausted {
		t.Errorf("unexpected failed turn %+v", failed)
	}
	if failed.ClarificationRound != 3 {
		t.Errorf("expected round 3, got %d", failed.ClarificationRound)
	}
	if h.toolCalls() != 0 {
		t.Errorf("expected no tool calls, got %d", h.toolCalls())
	}
	if pending, _ := h.ledger.GetPendingClarification(ctx, "user-1"); pending != nil {
		t.Errorf("expected the chain to be reset, got %+v", pending)
	}
}

func TestHandleTurn_TopicSwitchRestartsClarificationRounds(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	verdicts := []*domain.ModelVerdict{
		{Intent: "send_notification", Confidence: 0.9},
		{Intent: "send_email", Confidence: 0.9, Parameters: map[string]string{"to": "bob@example.com"}},
		{Intent: "calendar_query", Confidence: 0.3},
		{Intent: "calendar_query", Confidence: 0.3},
		{Intent: "calendar_query", Confidence: 0.3},
	}
	var calls int32
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		i := atomic.AddInt32(&calls, 1) - 1
		return verdicts[i], nil
	}
	ctx := context.Background()
	utterances := []string{"remind me", "actually email bob", "what's on my calendar", "my calendar", "calendar"}

	// Act
	var outs []*domain.TurnOutcome
	for i, text := range utterances {
		out, err := h.orch.HandleTurn(ctx, domain.Submission{UserID: "user-1", Text: text})
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		outs = append(outs, out)
	}

	// Assert
	wantRounds := []int{1, 1, 1, 2}
	for i, want := range wantRounds {
		if outs[i].State == domain.StateFailed || outs[i].Outcome != domain.OutcomeClarification {
			t.Fatalf("turn %d: expected clarification, got %s (%s)", i+1, outs[i].Outcome, outs[i].State)
		}
		if got := h.turns.Turns[i].ClarificationRound; got != want {
			t.Errorf("turn %d: expected round %d, got %d", i+1, want, got)
		}
	}
	if outs[4].State != domain.StateFailed {
		t.Fatalf("expected repeated questions on one target to exhaust, got %s", outs[4].State)
	}
	if h.turns.Turns[4].ErrorKind != domain.KindClarificationExhausted {
		t.Errorf("unexpected failed turn %+v", h.turns.Turns[4])
	}
	if h.toolCalls() != 0 {
		t.Errorf("expected no tool calls, got %d", h.toolCalls())
	}
}

func TestHandleTurn_ClassificationFailure(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		return nil, errors.New("context deadline exceeded")
	}

	// Act
	out, err := h.orch.HandleTurn(context.Background(), domain.Submission{UserID: "user-1", Text: "what's up"})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != domain.StateFailed || h.turns.Turns[0].ErrorKind != domain.KindClassification {
		t.Fatalf("expected classification failure, got %s / %s", out.State, h.turns.Turns[0].ErrorKind)
	}
	if out.Response.Text == "" {
		t.Error("expected an explanation for the user")
	}
}

func TestHandleTurn_ClassificationTimeout(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	// Act
	start := time.Now()
	out, err := h.orch.HandleTurn(context.Background(), domain.Submission{UserID: "user-1", Text: "remind me to stretch"})
	elapsed := time.Since(start)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("expected the classification stage to give up after its timeout, took %s", elapsed)
	}
	if out.State != domain.StateFailed {
		t.Fatalf("expected FAILED, got %s", out.State)
	}
	if h.turns.Count() != 1 {
		t.Fatalf("expected exactly one persisted turn, got %d", h.turns.Count())
	}
	if h.turns.Turns[0].ErrorKind != domain.KindClassification {
		t.Errorf("expected ClassificationError, got %s", h.turns.Turns[0].ErrorKind)
	}
	if h.toolCalls() != 0 {
		t.Error("expected no tool calls after a classification timeout")
	}
}

func TestHandleTurn_AudioTranscription(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.transcriber.TranscribeFunc = func(ctx context.Context, audio domain.Audio) (string, error) {
		return "  what meetings do I have  ", nil
	}
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		if req.Text != "what meetings do I have" {
			t.Errorf("classifier got %q", req.Text)
		}
		return &domain.ModelVerdict{Intent: "calendar_query", Confidence: 0.9, Parameters: map[string]string{"category": "meetings"}}, nil
	}

	// Act
	out, err := h.orch.HandleTurn(context.Background(), domain.Submission{
		UserID: "user-1",
		Audio:  &domain.Audio{Data: []byte{1, 2, 3}, Format: "webm"},
	})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Transcript != "what meetings do I have" {
		t.Errorf("unexpected transcript %q", out.Transcript)
	}
	if h.turns.Turns[0].Source != domain.SourceAudio {
		t.Errorf("expected audio source, got %s", h.turns.Turns[0].Source)
	}
}

func TestHandleTurn_TranscriptionFailure(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.transcriber.TranscribeFunc = func(ctx context.Context, audio domain.Audio) (string, error) {
		return "", nil
	}

	// Act
	out, _ := h.orch.HandleTurn(context.Background(), domain.Submission{
		UserID: "user-1",
		Audio:  &domain.Audio{Data: []byte{0}},
	})

	// Assert
	if out.State != domain.StateFailed {
		t.Fatalf("expected FAILED, got %s", out.State)
	}
	if h.turns.Turns[0].ErrorKind != domain.KindTranscription {
		t.Errorf("expected transcription error, got %s", h.turns.Turns[0].ErrorKind)
	}
	if h.model.Calls() != 0 {
		t.Error("classifier must not run without a transcript")
	}
}

func TestHandleTurn_PersistenceFailureStillResponds(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	h.turns.AppendFunc = func(ctx context.Context, turn *domain.Turn) error {
		return errors.New("db down")
	}
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		return &domain.ModelVerdict{Intent: "calendar_query", Confidence: 0.9}, nil
	}

	// Act
	out, err := h.orch.HandleTurn(context.Background(), domain.Submission{UserID: "user-1", Text: "what's on my calendar"})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Persisted {
		t.Error("expected Persisted=false")
	}
	if out.Response.Text == "" || out.State != domain.StateDone {
		t.Errorf("expected a normal response, got %+v", out)
	}
}

func TestHandleTurn_RejectsEmptySubmission(t *testing.T) {
	h := newHarness(t, 2)

	if _, err := h.orch.HandleTurn(context.Background(), domain.Submission{UserID: "user-1", Text: "  "}); !errors.Is(err, ErrEmptySubmission) {
		t.Errorf("expected ErrEmptySubmission, got %v", err)
	}
	if _, err := h.orch.HandleTurn(context.Background(), domain.Submission{Text: "hi"}); !errors.Is(err, ErrNoUser) {
		t.Errorf("expected ErrNoUser, got %v", err)
	}
	if h.turns.Count() != 0 {
		t.Error("rejected submissions must not be logged")
	}
}

func TestHandleTurn_SerializesPerUser(t *testing.T) {
	// Arrange
	h := newHarness(t, 2)
	var active, peak int32
	h.model.ClassifyFunc = func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return &domain.ModelVerdict{Intent: "calendar_query", Confidence: 0.9}, nil
	}

	// Act
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.orch.HandleTurn(context.Background(), domain.Submission{UserID: "user-1", Text: "calendar"})
		}()
	}
	wg.Wait()

	// Assert
	if peak != 1 {
		t.Errorf("expected serialized turns, saw %d concurrent", peak)
	}
	if h.turns.Count() != 5 {
		t.Errorf("expected 5 persisted turns, got %d", h.turns.Count())
	}
}
