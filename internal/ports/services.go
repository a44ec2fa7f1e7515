package ports

import (
	"context"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, string, error) // token, refresh, err
	Register(ctx context.Context, user *domain.User) error
	RefreshToken(ctx context.Context, token string) (string, error)
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, token string) error
}

// EmailService handles account mail. Assistant mail goes through
// EmailSender.
type EmailService interface {
	// SendHTML sends an HTML email
	SendHTML(ctx context.Context, to, subject, htmlBody string) error

	// SendTemplate sends an email using a named template
	SendTemplate(ctx context.Context, to, templateName string, data map[string]interface{}) error

	// SendWelcome sends a welcome email to a new user
	SendWelcome(ctx context.Context, user *domain.User) error
}

// IntentClassifier turns utterance text into a validated intent.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, session *domain.Session) (domain.Intent, error)
}

// ToolDispatcher runs the handler registered for an intent.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, intent domain.Intent) domain.ToolResult
}

type ResponseComposer interface {
	Compose(ctx context.Context, userID string, intent domain.Intent, result domain.ToolResult) domain.Response
	Clarify(ctx context.Context, userID string, intent domain.Intent) domain.Response
	Fail(ctx context.Context, userID string, err error) domain.Response
}

// SessionLedger owns per-user session state and the turn audit log.
type SessionLedger interface {
	Append(ctx context.Context, turn *domain.Turn) error
	GetPendingClarification(ctx context.Context, userID string) (*domain.PendingClarification, error)
	SetPendingClarification(ctx context.Context, userID string, pending *domain.PendingClarification) error
	Session(ctx context.Context, userID string) (*domain.Session, error)
	Remember(ctx context.Context, userID string, entries ...domain.HistoryEntry) error
	History(ctx context.Context, userID string, limit int) ([]domain.Turn, error)
	ClearSession(ctx context.Context, userID string) error
}

type VoiceOrchestrator interface {
	HandleTurn(ctx context.Context, sub domain.Submission) (*domain.TurnOutcome, error)
}
