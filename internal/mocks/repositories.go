package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	SaveFunc        func(ctx context.Context, user *domain.User) error
	FindByIDFunc    func(ctx context.Context, id string) (*domain.User, error)
	FindByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
}

func (m *MockUserRepository) Save(ctx context.Context, user *domain.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, user)
	}
	return nil
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return nil, nil
}

// MockTurnRepository records appended turns in memory.
type MockTurnRepository struct {
	mu             sync.Mutex
	Turns          []domain.Turn
	AppendFunc     func(ctx context.Context, turn *domain.Turn) error
	ListByUserFunc func(ctx context.Context, userID string, limit int) ([]domain.Turn, error)
	PingFunc       func(ctx context.Context) error
}

func (m *MockTurnRepository) Append(ctx context.Context, turn *domain.Turn) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, turn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Turns = append(m.Turns, *turn)
	return nil
}

func (m *MockTurnRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Turn, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Turn
	for i := len(m.Turns) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.Turns[i].UserID == userID {
			out = append(out, m.Turns[i])
		}
	}
	return out, nil
}

func (m *MockTurnRepository) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Count returns the number of appended turns.
func (m *MockTurnRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Turns)
}

// MockCalendarEventRepository is a mock implementation of CalendarEventRepository
type MockCalendarEventRepository struct {
	mu                sync.Mutex
	Upserted          map[string][]domain.CalendarEvent
	UpsertForUserFunc func(ctx context.Context, userID string, events []domain.CalendarEvent) error
}

func (m *MockCalendarEventRepository) UpsertForUser(ctx context.Context, userID string, events []domain.CalendarEvent) error {
	if m.UpsertForUserFunc != nil {
		return m.UpsertForUserFunc(ctx, userID, events)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Upserted == nil {
		m.Upserted = make(map[string][]domain.CalendarEvent)
	}
	m.Upserted[userID] = append(m.Upserted[userID], events...)
	return nil
}

// UpsertedFor returns the events mirrored for a user.
func (m *MockCalendarEventRepository) UpsertedFor(userID string) []domain.CalendarEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Upserted[userID]
}
