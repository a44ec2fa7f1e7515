package domain

import "time"

// TurnRecorded is published after a turn reaches the ledger.
type TurnRecorded struct {
	TurnID     string     `json:"turn_id"`
	UserID     string     `json:"user_id"`
	State      TurnState  `json:"state"`
	Outcome    Outcome    `json:"outcome"`
	IntentKind IntentKind `json:"intent_kind,omitempty"`
	Success    bool       `json:"success"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	Response   string     `json:"response"`
	AudioRef   string     `json:"audio_ref,omitempty"`
	FinishedAt time.Time  `json:"finished_at"`
}

func NewTurnRecorded(t *Turn) TurnRecorded {
	return TurnRecorded{
		TurnID:     t.ID,
		UserID:     t.UserID,
		State:      t.State,
		Outcome:    t.Outcome,
		IntentKind: t.IntentKind,
		Success:    t.Success,
		ErrorKind:  t.ErrorKind,
		Response:   t.ResponseText,
		AudioRef:   t.AudioRef,
		FinishedAt: t.FinishedAt,
	}
}
