package domain

import (
	"errors"
	"testing"
	"time"
)

func fixedTime() time.Time {
	return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func TestCheckParam(t *testing.T) {
	tests := []struct {
		name    string
		typ     ParamType
		value   string
		wantErr bool
	}{
		{"text", ParamText, "dentist", false},
		{"blank text", ParamText, "   ", true},
		{"email", ParamEmail, "bob@example.com", false},
		{"named email", ParamEmail, "Bob <bob@example.com>", false},
		{"email without domain dot", ParamEmail, "bob@localhost", true},
		{"not an email", ParamEmail, "bob", true},
		{"when with digits", ParamWhen, "9am", false},
		{"when with word", ParamWhen, "tomorrow morning", false},
		{"when now", ParamWhen, "now", false},
		{"when nonsense", ParamWhen, "the dentist", true},
		{"category plural", ParamCategory, "Flights", false},
		{"category unknown", ParamCategory, "trains", true},
		{"range days", ParamRange, "7d", false},
		{"range named", ParamRange, "this week", false},
		{"range bad", ParamRange, "forever", true},
		{"priority", ParamPriority, "2", false},
		{"priority out of range", ParamPriority, "5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckParam(tt.typ, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckParam(%s, %q) error = %v, wantErr %v", tt.typ, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"48h", 48 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"2 weeks", 14 * 24 * time.Hour},
		{"today", 24 * time.Hour},
	}

	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if err != nil {
			t.Fatalf("ParseRange(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRange(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRange_RejectsBeyondOneYear(t *testing.T) {
	for _, in := range []string{"200000d", "9223372036854775807h", "53 weeks", "366d"} {
		if d, err := ParseRange(in); err == nil {
			t.Errorf("ParseRange(%q) = %v, expected an error", in, d)
		}
	}

	// The boundary itself is accepted.
	if d, err := ParseRange("365d"); err != nil || d != MaxRange {
		t.Errorf("ParseRange(365d) = %v, %v; want %v", d, err, MaxRange)
	}
}

func TestValidateParams_OversizedRange(t *testing.T) {
	// Act
	err := ValidateParams(IntentCalendarQuery, map[string]string{"range": "200000d"})

	// Assert
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for an oversized range, got %v", err)
	}
}

func TestMissingParams_ReportsSchemaOrder(t *testing.T) {
	// Act
	missing := MissingParams(IntentSendNotification, map[string]string{})

	// Assert
	if len(missing) != 2 || missing[0] != "message" || missing[1] != "time" {
		t.Errorf("Unexpected missing list: %v", missing)
	}
}

func TestValidateParams_InvalidOptional(t *testing.T) {
	// Arrange
	params := map[string]string{"message": "x", "time": "now", "priority": "9"}

	// Act
	err := ValidateParams(IntentSendNotification, params)

	// Assert
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	// Arrange
	err := NewError(KindEmailDelivery, "email.send", errors.New("smtp down"))

	// Assert
	if !errors.Is(err, ErrEmailDelivery) {
		t.Error("Expected match on kind sentinel")
	}
	if errors.Is(err, ErrCalendarUnavailable) {
		t.Error("Expected no match on a different kind")
	}
	if KindOf(err) != KindEmailDelivery {
		t.Errorf("Unexpected kind %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("Expected empty kind for unclassified error")
	}
}
