package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/observability/telemetry"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

var ErrNoUser = errors.New("ledger: user id is required")

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type Config struct {
	HistorySize  int
	SessionTTL   time.Duration
	TurnsSubject string
	Now          func() time.Time
}

// Service keeps the durable turn log in a TurnRepository and the
// short-lived per-user Session in a Cache. Sessions are keyed by user id.
type Service struct {
	turns ports.TurnRepository
	cache ports.Cache
	queue ports.MessageQueue
	cfg   Config
	log   *zap.Logger
}

// NewService builds the ledger. queue may be nil to disable turn events.
func NewService(turns ports.TurnRepository, cache ports.Cache, queue ports.MessageQueue, cfg Config, log *zap.Logger) *Service {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 10
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		turns: turns,
		cache: cache,
		queue: queue,
		cfg:   cfg,
		log:   log,
	}
}

// Append persists turn once. Event publishing afterwards is best-effort.
func (s *Service) Append(ctx context.Context, turn *domain.Turn) error {
	if turn == nil || turn.UserID == "" {
		return domain.NewError(domain.KindPersistence, "ledger.append", ErrNoUser)
	}

	start := time.Now()
	err := s.turns.Append(ctx, turn)
	telemetry.DatabaseLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.LedgerAppendFailures.Inc()
		return domain.NewError(domain.KindPersistence, "ledger.append", err)
	}

	s.publish(turn)
	return nil
}

func (s *Service) publish(turn *domain.Turn) {
	if s.queue == nil || s.cfg.TurnsSubject == "" {
		return
	}
	data, err := json.Marshal(domain.NewTurnRecorded(turn))
	if err != nil {
		s.log.Error("Failed to encode turn event", zap.String("turn_id", turn.ID), zap.Error(err))
		return
	}
	if err := s.queue.Publish(s.cfg.TurnsSubject, data); err != nil {
		s.log.Warn("Failed to publish turn event",
			zap.String("turn_id", turn.ID),
			zap.String("subject", s.cfg.TurnsSubject),
			zap.Error(err),
		)
	}
}

// Session loads the user's session, or a fresh one when none is stored.
// An undecodable entry is discarded rather than blocking the user.
func (s *Service) Session(ctx context.Context, userID string) (*domain.Session, error) {
	if userID == "" {
		return nil, domain.NewError(domain.KindPersistence, "ledger.session", ErrNoUser)
	}

	raw, err := s.cache.Get(ctx, sessionKey(userID))
	if errors.Is(err, ports.ErrCacheMiss) {
		return domain.NewSession(userID, s.cfg.Now()), nil
	}
	if err != nil {
		return nil, domain.NewError(domain.KindPersistence, "ledger.session", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		s.log.Warn("Discarding corrupt session", zap.String("user_id", userID), zap.Error(err))
		return domain.NewSession(userID, s.cfg.Now()), nil
	}
	session.UserID = userID
	return &session, nil
}

func (s *Service) save(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = s.cfg.Now()
	data, err := json.Marshal(session)
	if err != nil {
		return domain.NewError(domain.KindPersistence, "ledger.save", fmt.Errorf("encode session: %w", err))
	}
	if err := s.cache.Set(ctx, sessionKey(session.UserID), string(data), s.cfg.SessionTTL); err != nil {
		return domain.NewError(domain.KindPersistence, "ledger.save", err)
	}
	return nil
}

func (s *Service) GetPendingClarification(ctx context.Context, userID string) (*domain.PendingClarification, error) {
	session, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.Pending, nil
}

// SetPendingClarification replaces the pending clarification. nil clears
// it, so a session never holds more than one.
func (s *Service) SetPendingClarification(ctx context.Context, userID string, pending *domain.PendingClarification) error {
	session, err := s.Session(ctx, userID)
	if err != nil {
		return err
	}
	if pending == nil && session.Pending == nil {
		return nil
	}
	session.Pending = pending
	return s.save(ctx, session)
}

// Remember appends entries to the rolling history.
func (s *Service) Remember(ctx context.Context, userID string, entries ...domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	session, err := s.Session(ctx, userID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		at := e.At
		if at.IsZero() {
			at = s.cfg.Now()
		}
		session.Remember(e.Role, e.Text, at, s.cfg.HistorySize)
	}
	return s.save(ctx, session)
}

// History returns the user's persisted turns, newest first. limit defaults
// to 20 and is capped at 100.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.Turn, error) {
	if userID == "" {
		return nil, domain.NewError(domain.KindPersistence, "ledger.history", ErrNoUser)
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	turns, err := s.turns.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, domain.NewError(domain.KindPersistence, "ledger.history", err)
	}
	return turns, nil
}

func (s *Service) ClearSession(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.NewError(domain.KindPersistence, "ledger.clear", ErrNoUser)
	}
	if err := s.cache.Delete(ctx, sessionKey(userID)); err != nil {
		return domain.NewError(domain.KindPersistence, "ledger.clear", err)
	}
	return nil
}

func sessionKey(userID string) string {
	return "session:" + userID
}
