package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/observability/telemetry"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

var (
	ErrEmptySubmission = errors.New("orchestrator: submission has no text or audio")
	ErrNoUser          = errors.New("orchestrator: submission has no user id")
)

var errEmptyTranscript = errors.New("transcript is empty")

type Timeouts struct {
	Transcription  time.Duration
	Classification time.Duration
	Persistence    time.Duration
}

type Config struct {
	MaxClarificationRounds int
	LockTTL                time.Duration
	Timeouts               Timeouts
	Now                    func() time.Time
	NewID                  func() string
}

// Dependencies are the collaborators of one pipeline. Transcriber may be
// nil when only text submissions are accepted.
type Dependencies struct {
	Transcriber ports.Transcriber
	Classifier  ports.IntentClassifier
	Tools       ports.ToolDispatcher
	Composer    ports.ResponseComposer
	Ledger      ports.SessionLedger
	Locker      ports.Locker
}

// Orchestrator runs one submission through transcription, classification,
// clarification or dispatch, composition and logging. It holds no per-user
// state; sessions live in the ledger and submissions of one user are
// serialized through the Locker.
type Orchestrator struct {
	deps Dependencies
	cfg  Config
	log  *zap.Logger
}

func New(deps Dependencies, cfg Config, log *zap.Logger) *Orchestrator {
	if cfg.MaxClarificationRounds <= 0 {
		cfg.MaxClarificationRounds = 2
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		log:  log,
	}
}

// HandleTurn processes one submission. Every accepted submission produces
// exactly one ledger append attempt and a response; the error is non-nil
// only when the submission is rejected before a turn starts.
func (o *Orchestrator) HandleTurn(ctx context.Context, sub domain.Submission) (*domain.TurnOutcome, error) {
	if sub.UserID == "" {
		return nil, ErrNoUser
	}
	hasAudio := sub.Audio != nil && len(sub.Audio.Data) > 0
	if strings.TrimSpace(sub.Text) == "" && !hasAudio {
		return nil, ErrEmptySubmission
	}

	release, err := o.deps.Locker.Acquire(ctx, "turn:"+sub.UserID, o.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: acquire user lock: %w", err)
	}
	defer release()

	ctx = domain.WithUserID(ctx, sub.UserID)
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.HandleTurn")
	defer span.End()

	source := domain.SourceText
	if hasAudio {
		source = domain.SourceAudio
	}

	turn := domain.NewTurn(o.cfg.NewID(), sub.UserID, source, o.cfg.Now())
	run := &turnRun{
		o:    o,
		turn: turn,
		log:  o.log.With(zap.String("turn_id", turn.ID), zap.String("user_id", sub.UserID)),
	}
	span.SetAttributes(attribute.String("turn.id", turn.ID), attribute.String("turn.source", string(source)))

	run.execute(ctx, sub)
	outcome := run.finish(ctx)

	span.SetAttributes(
		attribute.String("turn.state", string(outcome.State)),
		attribute.String("turn.outcome", string(outcome.Outcome)),
	)
	if outcome.State == domain.StateFailed {
		span.SetStatus(codes.Error, string(run.turn.ErrorKind))
	}
	return outcome, nil
}

// turnRun is the in-flight state of a single turn. It is never shared.
type turnRun struct {
	o          *Orchestrator
	turn       *domain.Turn
	transcript string
	intent     *domain.Intent
	result     *domain.ToolResult
	response   domain.Response
	log        *zap.Logger
}

func (r *turnRun) advance(to domain.TurnState) {
	r.turn.Advance(to, r.o.cfg.Now())
}

// stage times fn as one pipeline stage.
func (r *turnRun) stage(ctx context.Context, name string, fn func(ctx context.Context)) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+name)
	defer span.End()

	start := time.Now()
	fn(ctx)
	telemetry.StageLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (r *turnRun) execute(ctx context.Context, sub domain.Submission) {
	text, err := r.transcribe(ctx, sub)
	if err != nil {
		r.fail(ctx, err, "")
		return
	}
	r.transcript = text
	r.turn.Utterance = text
	r.turn.UtteranceAt = r.o.cfg.Now()

	session, err := r.o.deps.Ledger.Session(ctx, r.turn.UserID)
	if err != nil {
		r.log.Warn("Session unavailable, classifying without context", zap.Error(err))
		session = domain.NewSession(r.turn.UserID, r.o.cfg.Now())
	}

	// An answer to an open question re-enters classification from the
	// clarifying state.
	if session.Pending != nil {
		r.advance(domain.StateClarifying)
	}
	r.advance(domain.StateClassifying)

	intent, err := r.classify(ctx, session)
	if err != nil {
		r.fail(ctx, err, "")
		return
	}
	r.intent = &intent
	r.turn.Intent = &intent
	r.turn.IntentKind = intent.Kind

	if !intent.Actionable() {
		r.clarify(ctx, session, intent)
		return
	}

	if session.Pending != nil {
		if err := r.o.deps.Ledger.SetPendingClarification(ctx, r.turn.UserID, nil); err != nil {
			r.log.Warn("Failed to clear pending clarification", zap.Error(err))
		}
	}

	r.advance(domain.StateDispatching)
	r.stage(ctx, "dispatch", func(ctx context.Context) {
		result := r.o.deps.Tools.Dispatch(ctx, intent)
		r.result = &result
	})
	r.turn.Result = r.result
	r.turn.Success = r.result.Success
	if r.result.Success {
		r.turn.Outcome = domain.OutcomeCompleted
	} else {
		r.turn.Outcome = domain.OutcomeFailed
		r.turn.OutcomeDetail = r.result.Summary
		if r.result.Error != nil {
			r.turn.ErrorKind = r.result.Error.Kind
			r.turn.ErrorMessage = r.result.Error.Message
		}
	}

	r.advance(domain.StateComposing)
	r.stage(ctx, "compose", func(ctx context.Context) {
		r.response = r.o.deps.Composer.Compose(ctx, r.turn.UserID, intent, *r.result)
	})
	r.advance(domain.StateLogging)
}

func (r *turnRun) transcribe(ctx context.Context, sub domain.Submission) (string, error) {
	if sub.Audio == nil || len(sub.Audio.Data) == 0 {
		return strings.TrimSpace(sub.Text), nil
	}
	if r.o.deps.Transcriber == nil {
		return "", domain.NewError(domain.KindTranscription, "orchestrator.transcribe", errors.New("no transcriber configured"))
	}

	var (
		text string
		err  error
	)
	r.stage(ctx, "transcribe", func(ctx context.Context) {
		ctx, cancel := withTimeout(ctx, r.o.cfg.Timeouts.Transcription)
		defer cancel()
		text, err = r.o.deps.Transcriber.Transcribe(ctx, *sub.Audio)
	})
	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.NewError(domain.KindTranscription, "orchestrator.transcribe", err)
		}
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewError(domain.KindTranscription, "orchestrator.transcribe", errEmptyTranscript)
	}
	return text, nil
}

func (r *turnRun) classify(ctx context.Context, session *domain.Session) (domain.Intent, error) {
	var (
		intent domain.Intent
		err    error
	)
	r.stage(ctx, "classify", func(ctx context.Context) {
		ctx, cancel := withTimeout(ctx, r.o.cfg.Timeouts.Classification)
		defer cancel()
		intent, err = r.o.deps.Classifier.Classify(ctx, r.transcript, session)
	})
	if err != nil && domain.KindOf(err) == "" {
		err = domain.NewError(domain.KindClassification, "orchestrator.classify", err)
	}
	r.log.Debug("Utterance classified",
		zap.String("utterance", r.transcript),
		zap.String("intent", string(intent.Kind)),
		zap.Float64("confidence", intent.Confidence),
	)
	return intent, err
}

// clarify stores the open question, or fails the turn once the chain has
// used up its rounds. Rounds count per target: a question about a
// different request starts a new chain.
func (r *turnRun) clarify(ctx context.Context, session *domain.Session, intent domain.Intent) {
	round := 1
	if p := session.Pending; p != nil && p.Intent.Target == intent.Target {
		round = p.Round + 1
	}
	r.turn.ClarificationRound = round
	telemetry.ClarificationRounds.Observe(float64(round))

	if round > r.o.cfg.MaxClarificationRounds {
		if err := r.o.deps.Ledger.SetPendingClarification(ctx, r.turn.UserID, nil); err != nil {
			r.log.Warn("Failed to clear exhausted clarification", zap.Error(err))
		}
		err := domain.NewError(domain.KindClarificationExhausted, "orchestrator.clarify",
			fmt.Errorf("%d clarification rounds exceed the limit of %d", round, r.o.cfg.MaxClarificationRounds))
		r.fail(ctx, err, domain.OutcomeDetailNotUnderstood)
		return
	}

	r.advance(domain.StateClarifying)

	pending := &domain.PendingClarification{
		Intent:  intent,
		Round:   round,
		AskedAt: r.o.cfg.Now(),
	}
	if err := r.o.deps.Ledger.SetPendingClarification(ctx, r.turn.UserID, pending); err != nil {
		r.log.Warn("Failed to store pending clarification", zap.Error(err))
	}

	r.turn.Success = true
	r.turn.Outcome = domain.OutcomeClarification
	r.turn.OutcomeDetail = intent.Question

	r.stage(ctx, "compose", func(ctx context.Context) {
		r.response = r.o.deps.Composer.Clarify(ctx, r.turn.UserID, intent)
	})
	r.advance(domain.StateLogging)
}

// fail moves the turn straight to FAILED. The reply still names what went
// wrong, and the turn is still logged.
func (r *turnRun) fail(ctx context.Context, err error, detail string) {
	r.log.Warn("Turn failed", zap.String("kind", string(domain.KindOf(err))), zap.Error(err))
	if detail == "" {
		detail = string(domain.KindOf(err))
	}
	r.turn.Fail(err, detail)
	r.advance(domain.StateFailed)
	r.response = r.o.deps.Composer.Fail(ctx, r.turn.UserID, err)
}

// finish closes the state machine and appends the turn exactly once.
// Persistence is best-effort: the caller gets the response regardless.
func (r *turnRun) finish(ctx context.Context) *domain.TurnOutcome {
	now := r.o.cfg.Now()
	if !r.turn.State.Terminal() {
		r.advance(domain.StateDone)
	}
	r.turn.ResponseText = r.response.Text
	r.turn.AudioRef = r.response.AudioRef
	r.turn.FinishedAt = now

	persisted := false
	r.stage(ctx, "log", func(ctx context.Context) {
		// The audit record outlives a caller that hung up.
		pctx, cancel := withTimeout(context.WithoutCancel(ctx), r.o.cfg.Timeouts.Persistence)
		defer cancel()

		if err := r.o.deps.Ledger.Append(pctx, r.turn); err != nil {
			r.log.Error("Failed to persist turn", zap.Error(err))
		} else {
			persisted = true
		}

		if err := r.o.deps.Ledger.Remember(pctx, r.turn.UserID, r.historyEntries(now)...); err != nil {
			r.log.Warn("Failed to update session history", zap.Error(err))
		}
	})

	telemetry.TurnsTotal.WithLabelValues(string(r.turn.Outcome), string(r.turn.IntentKind)).Inc()
	telemetry.TurnLatency.Observe(now.Sub(r.turn.StartedAt).Seconds())

	r.log.Info("Turn finished",
		zap.String("state", string(r.turn.State)),
		zap.String("outcome", string(r.turn.Outcome)),
		zap.String("intent", string(r.turn.IntentKind)),
		zap.Bool("persisted", persisted),
	)

	return &domain.TurnOutcome{
		TurnID:     r.turn.ID,
		State:      r.turn.State,
		Outcome:    r.turn.Outcome,
		Transcript: r.transcript,
		Intent:     r.intent,
		Result:     r.result,
		Response:   r.response,
		Persisted:  persisted,
	}
}

func (r *turnRun) historyEntries(at time.Time) []domain.HistoryEntry {
	var entries []domain.HistoryEntry
	if r.transcript != "" {
		entries = append(entries, domain.HistoryEntry{Role: domain.RoleUser, Text: r.transcript, At: r.turn.UtteranceAt})
	}
	if r.response.Text != "" {
		entries = append(entries, domain.HistoryEntry{Role: domain.RoleAssistant, Text: r.response.Text, At: at})
	}
	return entries
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
