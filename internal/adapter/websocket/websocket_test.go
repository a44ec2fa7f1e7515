package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type frame struct {
	kind int
	data []byte
}

// fakeConn replays inbound frames, then blocks until closed.
type fakeConn struct {
	in     chan frame
	mu     sync.Mutex
	out    [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(frames ...frame) *fakeConn {
	c := &fakeConn{in: make(chan frame, len(frames)+1), closed: make(chan struct{})}
	for _, f := range frames {
		c.in <- f
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.in:
		return f.kind, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	if kind != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.out...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_TextAndAudioFrames(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	var subs []domain.Submission
	orch := &mocks.MockVoiceOrchestrator{
		HandleTurnFunc: func(ctx context.Context, sub domain.Submission) (*domain.TurnOutcome, error) {
			mu.Lock()
			subs = append(subs, sub)
			mu.Unlock()
			return &domain.TurnOutcome{TurnID: "t", State: domain.StateDone, Response: domain.Response{Text: "ok"}}, nil
		},
	}
	handler := NewVoiceStreamHandler(orch, newTestLogger())
	conn := newFakeConn(
		frame{websocket.TextMessage, []byte(`{"text":"remind me"}`)},
		frame{websocket.BinaryMessage, []byte("OggS")},
	)

	// Act
	done := make(chan struct{})
	go func() {
		handler.Stream(context.Background(), conn, "user-1", "OGG")
		close(done)
	}()
	waitFor(t, func() bool { return len(conn.written()) == 2 })
	conn.Close()
	<-done

	// Assert
	if len(subs) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(subs))
	}
	if subs[0].Text != "remind me" || subs[0].UserID != "user-1" {
		t.Errorf("unexpected text submission %+v", subs[0])
	}
	if subs[1].Audio == nil || subs[1].Audio.Format != "ogg" {
		t.Errorf("unexpected audio submission %+v", subs[1])
	}
	var outcome domain.TurnOutcome
	if err := json.Unmarshal(conn.written()[0], &outcome); err != nil || outcome.Response.Text != "ok" {
		t.Errorf("unexpected reply %s", conn.written()[0])
	}
}

func TestStream_InvalidFrameKeepsConnection(t *testing.T) {
	orch := &mocks.MockVoiceOrchestrator{}
	handler := NewVoiceStreamHandler(orch, newTestLogger())
	conn := newFakeConn(
		frame{websocket.TextMessage, []byte(`not json`)},
		frame{websocket.TextMessage, []byte(`{"text":"hi"}`)},
	)

	go handler.Stream(context.Background(), conn, "user-1", "webm")
	waitFor(t, func() bool { return len(conn.written()) == 2 })
	conn.Close()

	if got := string(conn.written()[0]); got != `{"error":"invalid frame"}` {
		t.Errorf("unexpected error reply %s", got)
	}
}

func TestHub_RoutesEventsToOwner(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(newTestLogger())
	go hub.Run(ctx)

	alice := newFakeConn()
	bob := newFakeConn()
	go hub.Serve(alice, "alice")
	go hub.Serve(bob, "bob")
	waitFor(t, func() bool { return hub.Connections("alice") == 1 && hub.Connections("bob") == 1 })

	event, _ := json.Marshal(domain.TurnRecorded{TurnID: "t1", UserID: "alice", Outcome: domain.OutcomeCompleted})

	// Act
	if err := hub.Consume(event); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	// Assert
	waitFor(t, func() bool { return len(alice.written()) == 1 })
	if len(bob.written()) != 0 {
		t.Errorf("bob should not receive alice's events")
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(newTestLogger())
	go hub.Run(ctx)

	conn := newFakeConn()
	served := make(chan struct{})
	go func() {
		hub.Serve(conn, "alice")
		close(served)
	}()
	waitFor(t, func() bool { return hub.Connections("alice") == 1 })

	conn.Close()
	<-served

	if hub.Connections("alice") != 0 {
		t.Errorf("expected connection removed")
	}
}

func TestHub_ConsumeRejectsGarbage(t *testing.T) {
	hub := NewHub(newTestLogger())
	if err := hub.Consume([]byte("{")); err == nil {
		t.Error("expected decode error")
	}
}
