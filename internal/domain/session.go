package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PendingClarification is the open question of a session and how many times
// it has been asked in a row.
type PendingClarification struct {
	Intent  Intent    `json:"intent"`
	Round   int       `json:"round"`
	AskedAt time.Time `json:"asked_at"`
}

type HistoryEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is a user's conversational context between turns. It holds at
// most one pending clarification.
type Session struct {
	UserID    string                `json:"user_id"`
	Pending   *PendingClarification `json:"pending,omitempty"`
	History   []HistoryEntry        `json:"history,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func NewSession(userID string, now time.Time) *Session {
	return &Session{UserID: userID, UpdatedAt: now}
}

// Remember appends an entry and keeps only the newest limit entries.
func (s *Session) Remember(role, text string, at time.Time, limit int) {
	s.History = append(s.History, HistoryEntry{Role: role, Text: text, At: at})
	if limit > 0 && len(s.History) > limit {
		s.History = append([]HistoryEntry(nil), s.History[len(s.History)-limit:]...)
	}
	s.UpdatedAt = at
}

// Recent returns up to n of the newest entries, oldest first.
func (s *Session) Recent(n int) []HistoryEntry {
	if s == nil || n <= 0 {
		return nil
	}
	if len(s.History) <= n {
		return append([]HistoryEntry(nil), s.History...)
	}
	return append([]HistoryEntry(nil), s.History[len(s.History)-n:]...)
}

// PendingIntent returns the pending clarify intent, if any.
func (s *Session) PendingIntent() *Intent {
	if s == nil || s.Pending == nil {
		return nil
	}
	in := s.Pending.Intent
	return &in
}
