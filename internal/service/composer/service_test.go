package composer

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

var start = time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)

func flightResult() domain.ToolResult {
	return domain.SucceededResult(domain.IntentCalendarQuery, "found 1 flight events", domain.ToolPayload{
		Category:    domain.CategoryFlight,
		WindowStart: start.Add(-24 * time.Hour),
		WindowEnd:   start.Add(6 * 24 * time.Hour),
		Events: []domain.CalendarEvent{
			{ID: "e1", Title: "UA 455 SFO-JFK", Start: start, End: start.Add(5 * time.Hour), Location: "SFO"},
		},
	})
}

func TestCompose_CalendarNamesFlightDateAndTime(t *testing.T) {
	// Arrange
	svc := NewService(nil, nil, Config{}, newTestLogger())
	intent := domain.NewIntent(domain.IntentCalendarQuery, map[string]string{"category": "flight"}, 0.9)

	// Act
	resp := svc.Compose(context.Background(), "user-1", intent, flightResult())

	// Assert
	want := "Here is your next flight event: UA 455 SFO-JFK on Mar 03 at 02:30 PM until Mar 03 at 07:30 PM at SFO."
	if resp.Text != want {
		t.Errorf("expected %q, got %q", want, resp.Text)
	}
	if resp.AudioRef != "" {
		t.Errorf("expected no audio without a synthesizer, got %q", resp.AudioRef)
	}
}

func TestCompose_CalendarInLocation(t *testing.T) {
	// Arrange
	loc := time.FixedZone("EST", -5*3600)
	svc := NewService(nil, nil, Config{Location: loc}, newTestLogger())

	// Act
	text := svc.Text(domain.Intent{Kind: domain.IntentCalendarQuery}, flightResult())

	// Assert
	if !strings.Contains(text, "Mar 03 at 09:30 AM") {
		t.Errorf("expected local time in %q", text)
	}
}

func TestCompose_CalendarEmptyWindow(t *testing.T) {
	// Arrange
	svc := NewService(nil, nil, Config{}, newTestLogger())
	result := domain.SucceededResult(domain.IntentCalendarQuery, "found 0 events", domain.ToolPayload{
		Category:    domain.CategoryMeeting,
		WindowStart: start,
		WindowEnd:   start.Add(24 * time.Hour),
	})

	// Act
	text := svc.Text(domain.Intent{Kind: domain.IntentCalendarQuery}, result)

	// Assert
	want := "You have no meeting events between Mar 03 at 02:30 PM and Mar 04 at 02:30 PM."
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	svc := NewService(nil, nil, Config{}, newTestLogger())
	intent := domain.Intent{Kind: domain.IntentCalendarQuery}

	first := svc.Text(intent, flightResult())
	for i := 0; i < 5; i++ {
		if got := svc.Text(intent, flightResult()); got != first {
			t.Fatalf("render %d differs: %q vs %q", i, got, first)
		}
	}
}

func TestCompose_Notification(t *testing.T) {
	svc := NewService(nil, nil, Config{}, newTestLogger())
	result := domain.SucceededResult(domain.IntentSendNotification, "reminder sent", domain.ToolPayload{
		DeliveryID: "req-1",
		Message:    "dentist",
		When:       "tomorrow 9am",
	})

	text := svc.Text(domain.Intent{Kind: domain.IntentSendNotification}, result)

	if text != "Done. I sent you a reminder: dentist (tomorrow 9am)." {
		t.Errorf("unexpected text %q", text)
	}
}

func TestCompose_EmailFailureNamesCapability(t *testing.T) {
	// Arrange
	svc := NewService(nil, nil, Config{}, newTestLogger())
	result := domain.FailedResult(domain.IntentSendEmail, domain.KindEmailDelivery,
		"email delivery failed", "the email service did not accept the message")

	// Act
	resp := svc.Compose(context.Background(), "user-1", domain.Intent{Kind: domain.IntentSendEmail}, result)

	// Assert
	if !strings.Contains(resp.Text, "email delivery failed") {
		t.Errorf("expected capability in %q", resp.Text)
	}
}

func TestCompose_ValidationFailure(t *testing.T) {
	svc := NewService(nil, nil, Config{}, newTestLogger())
	result := domain.FailedResult(domain.IntentSendEmail, domain.KindValidation, "invalid parameters", "missing or invalid to")

	text := svc.Text(domain.Intent{Kind: domain.IntentSendEmail}, result)

	if text != "Sorry, I couldn't send the email: missing or invalid to." {
		t.Errorf("unexpected text %q", text)
	}
}

func TestCompose_AttachesAudio(t *testing.T) {
	// Arrange
	store := &mocks.MockAudioStore{}
	svc := NewService(&mocks.MockSpeechSynthesizer{}, store, Config{SynthesisTimeout: time.Second}, newTestLogger())

	// Act
	resp := svc.Clarify(context.Background(), "user-1", domain.Clarification(domain.IntentSendNotification,
		"Remind you about what, and when?", []string{"message", "time"}, nil, 0.8))

	// Assert
	if resp.Text != "Remind you about what, and when?" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.AudioRef != "/api/v1/voice/audio/audio-a" {
		t.Errorf("unexpected audio ref %q", resp.AudioRef)
	}
}

func TestCompose_SynthesisFailureKeepsText(t *testing.T) {
	// Arrange
	synth := &mocks.MockSpeechSynthesizer{
		SynthesizeFunc: func(ctx context.Context, text string) (*domain.SpeechAudio, error) {
			return nil, errors.New("tts quota exceeded")
		},
	}
	svc := NewService(synth, &mocks.MockAudioStore{}, Config{}, newTestLogger())

	// Act
	resp := svc.Fail(context.Background(), "user-1", domain.NewError(domain.KindClarificationExhausted, "orchestrator", nil))

	// Assert
	if resp.Text != domain.UserMessage(domain.KindClarificationExhausted) {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.AudioRef != "" {
		t.Errorf("expected no audio ref, got %q", resp.AudioRef)
	}
}
