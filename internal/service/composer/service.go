package composer

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/observability/telemetry"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

const fallbackQuestion = "Could you tell me a bit more about what you need?"

var capabilities = map[domain.IntentKind]string{
	domain.IntentCalendarQuery:    "calendar lookup",
	domain.IntentSendNotification: "reminder delivery",
	domain.IntentSendEmail:        "email delivery",
}

var actions = map[domain.IntentKind]string{
	domain.IntentCalendarQuery:    "check your calendar",
	domain.IntentSendNotification: "send the reminder",
	domain.IntentSendEmail:        "send the email",
}

type Config struct {
	Location         *time.Location
	SynthesisTimeout time.Duration
	// AudioRefPrefix is prepended to stored audio ids.
	AudioRefPrefix string
}

// Service renders replies. Text is a pure function of its inputs; audio is
// attached on a best-effort basis.
type Service struct {
	synth     ports.SpeechSynthesizer
	store     ports.AudioStore
	templates *template.Template
	cfg       Config
	log       *zap.Logger
}

// NewService builds a composer. synth and store may be nil, in which case
// replies are text only.
func NewService(synth ports.SpeechSynthesizer, store ports.AudioStore, cfg Config, log *zap.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AudioRefPrefix == "" {
		cfg.AudioRefPrefix = "/api/v1/voice/audio/"
	}
	return &Service{
		synth:     synth,
		store:     store,
		templates: newTemplates(cfg.Location),
		cfg:       cfg,
		log:       log,
	}
}

func (s *Service) Compose(ctx context.Context, userID string, intent domain.Intent, result domain.ToolResult) domain.Response {
	return s.withAudio(ctx, userID, s.Text(intent, result))
}

func (s *Service) Clarify(ctx context.Context, userID string, intent domain.Intent) domain.Response {
	question := strings.TrimSpace(intent.Question)
	if question == "" {
		question = fallbackQuestion
	}
	return s.withAudio(ctx, userID, question)
}

func (s *Service) Fail(ctx context.Context, userID string, err error) domain.Response {
	return s.withAudio(ctx, userID, domain.UserMessage(domain.KindOf(err)))
}

// Text renders the reply text for a dispatched intent.
func (s *Service) Text(intent domain.Intent, result domain.ToolResult) string {
	kind := result.Tool
	if kind == "" {
		kind = intent.Kind
	}

	if !result.Success {
		return s.failureText(kind, result)
	}

	var (
		name string
		data interface{}
	)
	switch kind {
	case domain.IntentCalendarQuery:
		name, data = "calendar_query", calendarData(result.Payload)
	case domain.IntentSendNotification:
		name, data = "send_notification", notificationView{
			Message: result.Payload.Message,
			When:    whenPhrase(result.Payload.When),
		}
	case domain.IntentSendEmail:
		name, data = "send_email", emailView{
			Recipient: result.Payload.Recipient,
			Subject:   result.Payload.Subject,
		}
	default:
		return capitalize(result.Summary) + "."
	}
	return s.render(name, data, result.Summary)
}

func (s *Service) failureText(kind domain.IntentKind, result domain.ToolResult) string {
	view := failureView{
		Capability: capabilities[kind],
		Action:     actions[kind],
		Reason:     "something went wrong",
	}
	if view.Capability == "" {
		view.Capability, view.Action = "that request", "do that"
	}

	name := "failure"
	if result.Error != nil {
		if result.Error.Message != "" {
			view.Reason = result.Error.Message
		}
		if result.Error.Kind == domain.KindValidation {
			name = "invalid"
		}
	}
	return s.render(name, view, "Sorry, "+view.Capability+" failed.")
}

func (s *Service) render(name string, data interface{}, fallback string) string {
	var b strings.Builder
	if err := s.templates.ExecuteTemplate(&b, name, data); err != nil {
		s.log.Error("Failed to render response", zap.String("template", name), zap.Error(err))
		return fallback
	}
	return b.String()
}

// withAudio never fails the reply: synthesis or storage errors leave it
// text-only.
func (s *Service) withAudio(ctx context.Context, userID, text string) domain.Response {
	resp := domain.Response{Text: text}
	if s.synth == nil || s.store == nil || text == "" {
		return resp
	}

	if s.cfg.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SynthesisTimeout)
		defer cancel()
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		telemetry.SynthesisFailures.Inc()
		s.log.Warn("Speech synthesis failed, replying with text only",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return resp
	}

	id, err := s.store.Save(ctx, audio.Data, audio.ContentType)
	if err != nil {
		telemetry.SynthesisFailures.Inc()
		s.log.Warn("Failed to store synthesized audio", zap.String("user_id", userID), zap.Error(err))
		return resp
	}

	resp.AudioRef = s.cfg.AudioRefPrefix + id
	return resp
}

func calendarData(p domain.ToolPayload) calendarView {
	label := "events"
	if p.Category != "" {
		label = p.Category + " events"
	}

	view := calendarView{
		Label:   label,
		Keyword: p.Keyword,
		From:    p.WindowStart,
		To:      p.WindowEnd,
	}
	for _, e := range p.Events {
		view.Events = append(view.Events, eventView{
			Title:    e.Title,
			Start:    e.Start,
			End:      e.End,
			Until:    !e.End.IsZero() && !e.End.Equal(e.Start),
			Location: e.Location,
		})
	}

	switch n := len(view.Events); n {
	case 0:
	case 1:
		view.Heading = "Here is your next " + strings.TrimSuffix(label, "s")
	default:
		view.Heading = fmt.Sprintf("Here are your next %d %s", n, label)
	}
	return view
}

func whenPhrase(when string) string {
	switch strings.ToLower(strings.TrimSpace(when)) {
	case "", "now", "right now", "immediately", "asap":
		return ""
	}
	return when
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
