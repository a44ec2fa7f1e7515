package queue

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestEventPublishing_PersistentJSON(t *testing.T) {
	// Arrange
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	body := []byte(`{"turn_id":"t1"}`)

	// Act
	first := eventPublishing(body, now)
	second := eventPublishing(body, now)

	// Assert
	if first.ContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", first.ContentType)
	}
	if first.DeliveryMode != amqp.Persistent {
		t.Errorf("Expected persistent delivery, got %d", first.DeliveryMode)
	}
	if !first.Timestamp.Equal(now) || first.Timestamp.Location() != time.UTC {
		t.Errorf("Expected UTC timestamp of %v, got %v", now, first.Timestamp)
	}
	if string(first.Body) != string(body) {
		t.Errorf("Expected body to pass through, got %s", first.Body)
	}
	if first.MessageId == "" || first.MessageId == second.MessageId {
		t.Errorf("Expected distinct message ids, got %q and %q", first.MessageId, second.MessageId)
	}
}

func TestReconnectDelay_DoublesAndCaps(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{3, 4 * time.Second},
		{6, maxReconnectDelay},
		{50, maxReconnectDelay},
	}

	for _, tt := range tests {
		if got := reconnectDelay(tt.attempt); got != tt.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
