package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// MockEmailService is a mock implementation of EmailService interface
type MockEmailService struct {
	mu               sync.Mutex
	SendHTMLFunc     func(ctx context.Context, to, subject, htmlBody string) error
	SendTemplateFunc func(ctx context.Context, to, templateName string, data map[string]interface{}) error
	SendWelcomeFunc  func(ctx context.Context, user *domain.User) error

	// Track sent emails for assertions
	SentEmails []SentEmail
}

// SentEmail represents a sent email for testing
type SentEmail struct {
	To       string
	Subject  string
	Body     string
	Template string
	Data     map[string]interface{}
}

func (m *MockEmailService) record(e SentEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, e)
}

func (m *MockEmailService) SendHTML(ctx context.Context, to, subject, htmlBody string) error {
	m.record(SentEmail{To: to, Subject: subject, Body: htmlBody})
	if m.SendHTMLFunc != nil {
		return m.SendHTMLFunc(ctx, to, subject, htmlBody)
	}
	return nil
}

func (m *MockEmailService) SendTemplate(ctx context.Context, to, templateName string, data map[string]interface{}) error {
	m.record(SentEmail{To: to, Template: templateName, Data: data})
	if m.SendTemplateFunc != nil {
		return m.SendTemplateFunc(ctx, to, templateName, data)
	}
	return nil
}

func (m *MockEmailService) SendWelcome(ctx context.Context, user *domain.User) error {
	m.record(SentEmail{To: user.Email, Template: "welcome"})
	if m.SendWelcomeFunc != nil {
		return m.SendWelcomeFunc(ctx, user)
	}
	return nil
}

// GetSentEmails returns all sent emails for assertions
func (m *MockEmailService) GetSentEmails() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.SentEmails...)
}

// ClearSentEmails clears the sent emails list
func (m *MockEmailService) ClearSentEmails() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = nil
}

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	LoginFunc         func(ctx context.Context, email, password string) (string, string, error)
	RegisterFunc      func(ctx context.Context, user *domain.User) error
	RefreshTokenFunc  func(ctx context.Context, token string) (string, error)
	ValidateTokenFunc func(ctx context.Context, token string) (*domain.User, error)
	LogoutFunc        func(ctx context.Context, token string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, string, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return "", "", nil
}

func (m *MockAuthService) Register(ctx context.Context, user *domain.User) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, user)
	}
	return nil
}

func (m *MockAuthService) RefreshToken(ctx context.Context, token string) (string, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, token)
	}
	return "", nil
}

func (m *MockAuthService) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, token)
	}
	return nil, nil
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

// MockVoiceOrchestrator is a mock implementation of VoiceOrchestrator
type MockVoiceOrchestrator struct {
	HandleTurnFunc func(ctx context.Context, sub domain.Submission) (*domain.TurnOutcome, error)
}

func (m *MockVoiceOrchestrator) HandleTurn(ctx context.Context, sub domain.Submission) (*domain.TurnOutcome, error) {
	if m.HandleTurnFunc != nil {
		return m.HandleTurnFunc(ctx, sub)
	}
	return &domain.TurnOutcome{State: domain.StateDone, Outcome: domain.OutcomeCompleted}, nil
}
