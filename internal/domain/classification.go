package domain

import "time"

type ClassificationMode string

const (
	// ModeClassify asks the model for a fresh intent.
	ModeClassify ClassificationMode = "classify"
	// ModeAnswer asks the model to extract values for a pending question.
	ModeAnswer ClassificationMode = "answer"
)

type ClassificationRequest struct {
	Mode     ClassificationMode
	Text     string
	History  []HistoryEntry
	Target   IntentKind
	Missing  []string
	Known    map[string]string
	Question string
	Now      time.Time
	Timezone string
}

// ModelVerdict is the raw, unvalidated answer of a language model.
type ModelVerdict struct {
	Intent       string            `json:"intent"`
	Confidence   float64           `json:"confidence"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	FollowUp     string            `json:"follow_up,omitempty"`
	Alternatives []string          `json:"alternatives,omitempty"`
	Summary      string            `json:"summary,omitempty"`
}
