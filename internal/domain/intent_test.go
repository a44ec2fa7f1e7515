package domain

import (
	"testing"
)

func TestParseIntentKind(t *testing.T) {
	tests := []struct {
		label string
		want  IntentKind
	}{
		{"calendar_query", IntentCalendarQuery},
		{"calendar_lookup", IntentCalendarQuery},
		{" Push_Notification ", IntentSendNotification},
		{"send_email", IntentSendEmail},
		{"clarification", IntentClarify},
		{"smalltalk", IntentUnknown},
		{"order_pizza", IntentUnknown},
		{"", IntentUnknown},
	}

	for _, tt := range tests {
		if got := ParseIntentKind(tt.label); got != tt.want {
			t.Errorf("ParseIntentKind(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestNewIntent_Completeness(t *testing.T) {
	// Arrange
	params := map[string]string{"message": "dentist", "time": "tomorrow 9am", "title": "  "}

	// Act
	intent := NewIntent(IntentSendNotification, params, 0.9)

	// Assert
	if !intent.Complete {
		t.Fatal("Expected complete intent")
	}
	if !intent.Actionable() {
		t.Error("Expected actionable intent")
	}
	if _, ok := intent.Params["title"]; ok {
		t.Error("Expected blank parameter to be dropped")
	}
}

func TestNewIntent_CopiesParams(t *testing.T) {
	// Arrange
	params := map[string]string{"to": "bob@example.com", "body": "hi"}

	// Act
	intent := NewIntent(IntentSendEmail, params, 1)
	params["to"] = "mallory@example.com"

	// Assert
	if intent.Param("to") != "bob@example.com" {
		t.Errorf("Intent mutated through caller map: %q", intent.Param("to"))
	}
}

func TestIntent_Merge(t *testing.T) {
	// Arrange
	pending := Clarification(IntentSendEmail, "What would you like the email to say?", []string{"body"},
		map[string]string{"to": "bob@example.com"}, 0.8)

	// Act
	merged := pending.Merge(map[string]string{"body": "running late"}, 0.9)

	// Assert
	if merged.Kind != IntentSendEmail {
		t.Fatalf("Expected kind %q, got %q", IntentSendEmail, merged.Kind)
	}
	if !merged.Complete {
		t.Error("Expected merged intent to be complete")
	}
	if pending.Param("body") != "" {
		t.Error("Expected pending intent to be left untouched")
	}
}

func TestSession_RememberKeepsNewest(t *testing.T) {
	// Arrange
	s := NewSession("u1", fixedTime())

	// Act
	for _, text := range []string{"a", "b", "c", "d"} {
		s.Remember(RoleUser, text, fixedTime(), 3)
	}

	// Assert
	if len(s.History) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(s.History))
	}
	if s.History[0].Text != "b" || s.History[2].Text != "d" {
		t.Errorf("Unexpected history window: %+v", s.History)
	}
	if got := s.Recent(2); len(got) != 2 || got[1].Text != "d" {
		t.Errorf("Unexpected recent entries: %+v", got)
	}
}

func TestTurn_AdvanceStopsAtTerminal(t *testing.T) {
	// Arrange
	turn := NewTurn("t1", "u1", SourceText, fixedTime())

	// Act
	turn.Advance(StateClassifying, fixedTime())
	turn.Advance(StateFailed, fixedTime())
	turn.Advance(StateDispatching, fixedTime())

	// Assert
	if turn.State != StateFailed {
		t.Errorf("Expected FAILED, got %s", turn.State)
	}
	if len(turn.Transitions) != 2 {
		t.Errorf("Expected 2 transitions, got %d", len(turn.Transitions))
	}
	if turn.Transitions[0].From != StateAwaitingInput {
		t.Errorf("Expected first transition from AWAITING_INPUT, got %s", turn.Transitions[0].From)
	}
}
