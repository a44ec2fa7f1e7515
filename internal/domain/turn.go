package domain

import "time"

// TurnState is a stage of the orchestrator state machine.
type TurnState string

const (
	StateAwaitingInput TurnState = "AWAITING_INPUT"
	StateClassifying   TurnState = "CLASSIFYING"
	StateClarifying    TurnState = "CLARIFYING"
	StateDispatching   TurnState = "DISPATCHING"
	StateComposing     TurnState = "COMPOSING"
	StateLogging       TurnState = "LOGGING"
	StateDone          TurnState = "DONE"
	StateFailed        TurnState = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s TurnState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeClarification Outcome = "clarification_requested"
	OutcomeFailed        Outcome = "failed"
)

// OutcomeDetailNotUnderstood is recorded when clarification rounds run out.
const OutcomeDetailNotUnderstood = "could not understand request"

type InputSource string

const (
	SourceAudio InputSource = "audio"
	SourceText  InputSource = "text"
)

// Utterance is the text of one user input. Audio never outlives
// transcription; only the text is kept.
type Utterance struct {
	Text   string      `json:"text"`
	At     time.Time   `json:"at"`
	UserID string      `json:"user_id"`
	Source InputSource `json:"source"`
}

type Transition struct {
	From TurnState `json:"from" bson:"from"`
	To   TurnState `json:"to" bson:"to"`
	At   time.Time `json:"at" bson:"at"`
}

// Turn is the append-only audit record of one submission.
type Turn struct {
	ID                 string       `json:"id" gorm:"primaryKey" bson:"_id"`
	UserID             string       `json:"user_id" gorm:"index;not null" bson:"user_id"`
	Source             InputSource  `json:"source" bson:"source"`
	Utterance          string       `json:"utterance" bson:"utterance"`
	UtteranceAt        time.Time    `json:"utterance_at" bson:"utterance_at"`
	IntentKind         IntentKind   `json:"intent_kind,omitempty" gorm:"index" bson:"intent_kind,omitempty"`
	Intent             *Intent      `json:"intent,omitempty" gorm:"serializer:json" bson:"intent,omitempty"`
	Result             *ToolResult  `json:"result,omitempty" gorm:"serializer:json" bson:"result,omitempty"`
	Success            bool         `json:"success" bson:"success"`
	Outcome            Outcome      `json:"outcome" bson:"outcome"`
	OutcomeDetail      string       `json:"outcome_detail,omitempty" bson:"outcome_detail,omitempty"`
	State              TurnState    `json:"state" bson:"state"`
	Transitions        []Transition `json:"transitions" gorm:"serializer:json" bson:"transitions"`
	ErrorKind          ErrorKind    `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	ErrorMessage       string       `json:"error_message,omitempty" bson:"error_message,omitempty"`
	ClarificationRound int          `json:"clarification_round,omitempty" bson:"clarification_round,omitempty"`
	ResponseText       string       `json:"response_text" bson:"response_text"`
	AudioRef           string       `json:"audio_ref,omitempty" bson:"audio_ref,omitempty"`
	StartedAt          time.Time    `json:"started_at" gorm:"index" bson:"started_at"`
	FinishedAt         time.Time    `json:"finished_at" bson:"finished_at"`
}

func (Turn) TableName() string {
	return "voice_turns"
}

func NewTurn(id, userID string, source InputSource, now time.Time) *Turn {
	return &Turn{
		ID:        id,
		UserID:    userID,
		Source:    source,
		State:     StateAwaitingInput,
		StartedAt: now,
	}
}

// Advance moves the turn to the next state and records the transition.
// Terminal turns do not move.
func (t *Turn) Advance(to TurnState, at time.Time) {
	if t.State.Terminal() {
		return
	}
	t.Transitions = append(t.Transitions, Transition{From: t.State, To: to, At: at})
	t.State = to
}

// Fail records a classified failure on the turn.
func (t *Turn) Fail(err error, detail string) {
	t.Success = false
	t.Outcome = OutcomeFailed
	t.OutcomeDetail = detail
	t.ErrorKind = KindOf(err)
	if err != nil {
		t.ErrorMessage = err.Error()
	}
}

// Submission is one input handed to the orchestrator. Exactly one of Text
// or Audio is set.
type Submission struct {
	UserID string
	Text   string
	Audio  *Audio
}

// TurnOutcome is what the caller gets back for a submission.
type TurnOutcome struct {
	TurnID     string      `json:"turn_id"`
	State      TurnState   `json:"state"`
	Outcome    Outcome     `json:"outcome"`
	Transcript string      `json:"transcript"`
	Intent     *Intent     `json:"intent,omitempty"`
	Result     *ToolResult `json:"result,omitempty"`
	Response   Response    `json:"response"`
	Persisted  bool        `json:"persisted"`
}
