package ports

import (
	"context"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// TurnRepository is the durable, append-only store of voice turns.
type TurnRepository interface {
	Append(ctx context.Context, turn *domain.Turn) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Turn, error)
	Ping(ctx context.Context) error
}

// CalendarEventRepository mirrors provider calendar events per user.
type CalendarEventRepository interface {
	UpsertForUser(ctx context.Context, userID string, events []domain.CalendarEvent) error
}
