package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// MockTranscriber is a mock implementation of Transcriber
type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audio domain.Audio) (string, error)
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return "", nil
}

// MockSpeechSynthesizer is a mock implementation of SpeechSynthesizer
type MockSpeechSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, text string) (*domain.SpeechAudio, error)
}

func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, text string) (*domain.SpeechAudio, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return &domain.SpeechAudio{Data: []byte("audio"), ContentType: "audio/mpeg"}, nil
}

// MockLanguageModel is a mock implementation of LanguageModel. It records
// every request it receives.
type MockLanguageModel struct {
	mu           sync.Mutex
	Requests     []domain.ClassificationRequest
	ClassifyFunc func(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error)
}

func (m *MockLanguageModel) Classify(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, req)
	}
	return &domain.ModelVerdict{Intent: string(domain.IntentUnknown)}, nil
}

func (m *MockLanguageModel) Name() string {
	return "mock"
}

// Calls returns the number of model invocations.
func (m *MockLanguageModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockCalendarProvider is a mock implementation of CalendarProvider
type MockCalendarProvider struct {
	mu             sync.Mutex
	Queries        []domain.CalendarQuery
	ListEventsFunc func(ctx context.Context, query domain.CalendarQuery) ([]domain.CalendarEvent, error)
}

func (m *MockCalendarProvider) ListEvents(ctx context.Context, query domain.CalendarQuery) ([]domain.CalendarEvent, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, query)
	}
	return nil, nil
}

func (m *MockCalendarProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// MockPushNotifier is a mock implementation of PushNotifier
type MockPushNotifier struct {
	mu       sync.Mutex
	Messages []domain.PushMessage
	PushFunc func(ctx context.Context, msg domain.PushMessage) (string, error)
}

func (m *MockPushNotifier) Push(ctx context.Context, msg domain.PushMessage) (string, error) {
	m.mu.Lock()
	m.Messages = append(m.Messages, msg)
	m.mu.Unlock()
	if m.PushFunc != nil {
		return m.PushFunc(ctx, msg)
	}
	return "delivery-1", nil
}

func (m *MockPushNotifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// MockEmailSender is a mock implementation of EmailSender
type MockEmailSender struct {
	mu       sync.Mutex
	Messages []domain.EmailMessage
	SendFunc func(ctx context.Context, msg domain.EmailMessage) (string, error)
}

func (m *MockEmailSender) Send(ctx context.Context, msg domain.EmailMessage) (string, error) {
	m.mu.Lock()
	m.Messages = append(m.Messages, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return "accepted", nil
}

func (m *MockEmailSender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// MockAudioStore keeps saved audio in memory.
type MockAudioStore struct {
	mu       sync.Mutex
	Saved    map[string][]byte
	SaveFunc func(ctx context.Context, data []byte, contentType string) (string, error)
	LoadFunc func(ctx context.Context, id string) ([]byte, string, error)
}

func (m *MockAudioStore) Save(ctx context.Context, data []byte, contentType string) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Saved == nil {
		m.Saved = make(map[string][]byte)
	}
	id := "audio-" + string(rune('a'+len(m.Saved)))
	m.Saved[id] = data
	return id, nil
}

func (m *MockAudioStore) Load(ctx context.Context, id string) ([]byte, string, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saved[id], "audio/mpeg", nil
}
