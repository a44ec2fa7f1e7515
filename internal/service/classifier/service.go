package classifier

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/observability/telemetry"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

var errEmptyText = errors.New("utterance is empty")

type Config struct {
	MinConfidence float64
	HistoryTurns  int
	Timezone      string
	Now           func() time.Time
}

type Service struct {
	model ports.LanguageModel
	cfg   Config
	log   *zap.Logger
}

func NewService(model ports.LanguageModel, cfg Config, log *zap.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	return &Service{
		model: model,
		cfg:   cfg,
		log:   log,
	}
}

// Classify turns text into an intent. A pending clarification whose target
// is actionable makes text an answer to it; otherwise text is classified
// from scratch. Non-actionable or incomplete results come back as clarify
// intents, never as errors.
func (s *Service) Classify(ctx context.Context, text string, session *domain.Session) (domain.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Intent{}, domain.NewError(domain.KindValidation, "classifier.classify", errEmptyText)
	}

	if pending := session.PendingIntent(); pending != nil && pending.Target.Actionable() {
		return s.answer(ctx, text, session, *pending)
	}

	verdict, err := s.ask(ctx, domain.ClassificationRequest{
		Mode:    domain.ModeClassify,
		Text:    text,
		History: session.Recent(s.cfg.HistoryTurns),
	})
	if err != nil {
		return domain.Intent{}, err
	}
	return s.interpret(verdict), nil
}

func (s *Service) answer(ctx context.Context, text string, session *domain.Session, pending domain.Intent) (domain.Intent, error) {
	verdict, err := s.ask(ctx, domain.ClassificationRequest{
		Mode:     domain.ModeAnswer,
		Text:     text,
		History:  session.Recent(s.cfg.HistoryTurns),
		Target:   pending.Target,
		Missing:  pending.Missing,
		Known:    pending.ParamsCopy(),
		Question: pending.Question,
	})
	if err != nil {
		return domain.Intent{}, err
	}

	// The user moved on to a different request instead of answering.
	if kind := domain.ParseIntentKind(verdict.Intent); kind.Actionable() && kind != pending.Target {
		s.log.Debug("Clarification answer switched intent",
			zap.String("from", string(pending.Target)),
			zap.String("to", string(kind)),
		)
		return s.interpret(verdict), nil
	}

	values := make(map[string]string)
	for name, raw := range verdict.Parameters {
		spec, ok := domain.ParamSpecFor(pending.Target, strings.ToLower(name))
		if !ok {
			continue
		}
		v, err := normalizeParam(spec.Type, raw)
		if err != nil {
			s.log.Debug("Discarding clarification value", zap.String("param", spec.Name), zap.Error(err))
			continue
		}
		values[spec.Name] = v
	}

	confidence := clamp(verdict.Confidence)
	if confidence == 0 {
		confidence = pending.Confidence
	}
	merged := pending.Merge(values, confidence)
	telemetry.ClassificationsTotal.WithLabelValues(s.model.Name(), string(merged.Kind)).Inc()

	if missing := domain.MissingParams(merged.Kind, merged.Params); len(missing) > 0 {
		return domain.Clarification(merged.Kind, QuestionFor(merged.Kind, missing), missing, merged.Params, confidence), nil
	}
	return merged, nil
}

func (s *Service) ask(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
	req.Now = s.cfg.Now()
	req.Timezone = s.cfg.Timezone

	verdict, err := s.model.Classify(ctx, req)
	if err != nil {
		return nil, domain.NewError(domain.KindClassification, "classifier."+string(req.Mode), err)
	}
	if verdict == nil {
		return nil, domain.NewError(domain.KindClassification, "classifier."+string(req.Mode), errors.New("empty verdict"))
	}
	return verdict, nil
}

// interpret applies the tie-break and completeness rules to a fresh
// verdict.
func (s *Service) interpret(v *domain.ModelVerdict) domain.Intent {
	kind := domain.ParseIntentKind(v.Intent)
	confidence := clamp(v.Confidence)
	telemetry.ClassificationsTotal.WithLabelValues(s.model.Name(), string(kind)).Inc()

	if kind == domain.IntentClarify {
		return s.modelClarification(v, confidence)
	}
	if !kind.Actionable() {
		return domain.Clarification(domain.IntentUnknown, capabilitiesQuestion, nil, nil, confidence)
	}

	if competing := competingKinds(kind, v.Alternatives); len(competing) > 0 {
		return domain.Clarification(domain.IntentUnknown, ambiguityQuestion(append([]domain.IntentKind{kind}, competing...)), nil, nil, confidence)
	}
	if confidence < s.cfg.MinConfidence {
		return domain.Clarification(domain.IntentUnknown, confirmQuestion(kind), nil, nil, confidence)
	}

	params := s.sanitize(kind, v.Parameters)
	if missing := domain.MissingParams(kind, params); len(missing) > 0 {
		return domain.Clarification(kind, QuestionFor(kind, missing), missing, params, confidence)
	}
	return domain.NewIntent(kind, params, confidence)
}

// modelClarification handles a verdict where the model itself asked for
// clarification. A single actionable alternative becomes the target.
func (s *Service) modelClarification(v *domain.ModelVerdict, confidence float64) domain.Intent {
	var target domain.IntentKind = domain.IntentUnknown
	if alts := competingKinds(domain.IntentClarify, v.Alternatives); len(alts) == 1 {
		target = alts[0]
	}

	var params map[string]string
	var missing []string
	if target.Actionable() {
		params = s.sanitize(target, v.Parameters)
		missing = domain.MissingParams(target, params)
	}

	question := strings.TrimSpace(v.FollowUp)
	if question == "" {
		if target.Actionable() {
			question = QuestionFor(target, missing)
		} else {
			question = capabilitiesQuestion
		}
	}
	return domain.Clarification(target, question, missing, params, confidence)
}

// sanitize keeps the known parameters of kind, normalized. Malformed values
// are dropped so that required ones surface as missing.
func (s *Service) sanitize(kind domain.IntentKind, raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		spec, ok := domain.ParamSpecFor(kind, strings.ToLower(strings.TrimSpace(name)))
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		v, err := normalizeParam(spec.Type, value)
		if err != nil {
			s.log.Debug("Dropping malformed parameter",
				zap.String("intent", string(kind)),
				zap.String("param", spec.Name),
				zap.Error(err),
			)
			continue
		}
		out[spec.Name] = v
	}
	return out
}

func normalizeParam(t domain.ParamType, value string) (string, error) {
	value = strings.TrimSpace(value)
	if err := domain.CheckParam(t, value); err != nil {
		return "", err
	}

	switch t {
	case domain.ParamCategory:
		c, _ := domain.NormalizeCategory(value)
		return c, nil
	case domain.ParamEmail:
		return domain.ParseEmailAddress(value)
	case domain.ParamPriority:
		p, _ := domain.ParsePriority(value)
		return strconv.Itoa(p), nil
	case domain.ParamRange:
		return strings.ToLower(value), nil
	}
	return value, nil
}

func competingKinds(chosen domain.IntentKind, alternatives []string) []domain.IntentKind {
	seen := map[domain.IntentKind]bool{chosen: true}
	var out []domain.IntentKind
	for _, alt := range alternatives {
		k := domain.ParseIntentKind(alt)
		if !k.Actionable() || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
