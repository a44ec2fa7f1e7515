package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

// CalendarEventRepository mirrors provider events so recent lookups can be
// inspected without calling the provider again.
type CalendarEventRepository struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewCalendarEventRepository(db *gorm.DB, log *zap.Logger) ports.CalendarEventRepository {
	return &CalendarEventRepository{
		db:  db,
		log: log,
		now: time.Now,
	}
}

func (r *CalendarEventRepository) UpsertForUser(ctx context.Context, userID string, events []domain.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := r.now()
	rows := make([]domain.StoredCalendarEvent, 0, len(events))
	for _, ev := range events {
		rows = append(rows, domain.StoredCalendarEvent{
			ID:          uuid.NewString(),
			UserID:      userID,
			ExternalID:  ev.ID,
			Title:       ev.Title,
			Category:    ev.Category,
			Location:    ev.Location,
			Description: ev.Description,
			Start:       ev.Start,
			End:         ev.End,
			AllDay:      ev.AllDay,
			SyncedAt:    now,
		})
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "category", "location", "description", "start", "end", "all_day", "synced_at", "updated_at",
		}),
	}).Create(&rows).Error
}
