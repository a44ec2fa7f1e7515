package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

// TurnRepository keeps the voice turn audit log. Rows are inserted once
// and never updated.
type TurnRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTurnRepository(db *gorm.DB, log *zap.Logger) ports.TurnRepository {
	return &TurnRepository{
		db:  db,
		log: log,
	}
}

func (r *TurnRepository) Append(ctx context.Context, turn *domain.Turn) error {
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("insert turn %s: %w", turn.ID, err)
	}
	return nil
}

// ListByUser returns the newest turns first.
func (r *TurnRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at desc").
		Limit(limit).
		Find(&turns).Error
	return turns, err
}

func (r *TurnRepository) Ping(ctx context.Context) error {
	return Ping(ctx, r.db)
}
