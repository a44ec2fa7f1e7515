package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *PushoverAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := NewPushoverAdapter(PushoverConfig{APIURL: server.URL, AppToken: "app", UserKey: "user"}, nil, newTestLogger())
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return a
}

func TestPush_Success(t *testing.T) {
	// Arrange
	var form map[string]string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = map[string]string{
			"token":    r.PostForm.Get("token"),
			"user":     r.PostForm.Get("user"),
			"message":  r.PostForm.Get("message"),
			"title":    r.PostForm.Get("title"),
			"priority": r.PostForm.Get("priority"),
		}
		_, _ = w.Write([]byte(`{"status":1,"request":"req-123"}`))
	})

	// Act
	id, err := a.Push(context.Background(), domain.PushMessage{Title: "Reminder", Message: "stretch", Priority: 1})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "req-123" {
		t.Errorf("expected request id as delivery id, got %q", id)
	}
	want := map[string]string{"token": "app", "user": "user", "message": "stretch", "title": "Reminder", "priority": "1"}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, form[k], v)
		}
	}
}

func TestPush_EmergencyCarriesRetryAndExpire(t *testing.T) {
	// Arrange
	var retry, expire string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		retry, expire = r.PostForm.Get("retry"), r.PostForm.Get("expire")
		if retry == "" || expire == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":0,"errors":["retry and expire are required"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":1,"request":"req-911"}`))
	})

	// Act
	id, err := a.Push(context.Background(), domain.PushMessage{Message: "take meds", Priority: 2})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "req-911" || retry != "60" || expire != "3600" {
		t.Errorf("unexpected id=%q retry=%q expire=%q", id, retry, expire)
	}
}

func TestPush_NormalPriorityOmitsRetry(t *testing.T) {
	var hasRetry bool
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		_, hasRetry = r.PostForm["retry"]
		_, _ = w.Write([]byte(`{"status":1,"request":"req-1"}`))
	})

	if _, err := a.Push(context.Background(), domain.PushMessage{Message: "stretch", Priority: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasRetry {
		t.Error("retry should only be sent for emergency priority")
	}
}

func TestPush_RejectedIsPermanent(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":0,"errors":["user identifier is invalid"]}`))
	})

	_, err := a.Push(context.Background(), domain.PushMessage{Message: "x"})

	if !circuitbreaker.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestPush_ServerErrorIsTransient(t *testing.T) {
	var calls int32
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := a.Push(context.Background(), domain.PushMessage{Message: "x"})

	if err == nil || circuitbreaker.IsPermanent(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("adapter must not retry on its own, got %d calls", calls)
	}
}

func TestNewPushoverAdapter_RequiresCredentials(t *testing.T) {
	if _, err := NewPushoverAdapter(PushoverConfig{AppToken: "app"}, nil, newTestLogger()); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
