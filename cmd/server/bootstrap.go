package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/seu-repo/hiya-assistant/internal/adapter/ai/anthropic"
	"github.com/seu-repo/hiya-assistant/internal/adapter/ai/gemini"
	"github.com/seu-repo/hiya-assistant/internal/adapter/ai/googlespeech"
	"github.com/seu-repo/hiya-assistant/internal/adapter/ai/openai"
	"github.com/seu-repo/hiya-assistant/internal/adapter/external/calendar"
	"github.com/seu-repo/hiya-assistant/internal/adapter/external/notification"
	"github.com/seu-repo/hiya-assistant/internal/adapter/storage/mongo"
	"github.com/seu-repo/hiya-assistant/internal/adapter/storage/postgres"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/hiya-assistant/internal/ports"
	"github.com/seu-repo/hiya-assistant/internal/service/email"
	"github.com/seu-repo/hiya-assistant/internal/service/health"
	"github.com/seu-repo/hiya-assistant/internal/service/tools"
	"github.com/seu-repo/hiya-assistant/pkg/config"
)

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.Output != "" {
		zc.OutputPaths = []string{cfg.Output}
	}

	zc.Sampling = nil
	if cfg.Sampling.Enabled {
		zc.Sampling = &zap.SamplingConfig{
			Initial:    cfg.Sampling.Initial,
			Thereafter: cfg.Sampling.Thereafter,
		}
	}

	return zc.Build()
}

// newTurnRepository picks the turn store named by ledger.driver. The
// returned func releases whatever the store opened beyond the shared
// Postgres pool.
func newTurnRepository(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (ports.TurnRepository, func()) {
	if cfg.Ledger.Driver != "mongo" {
		return postgres.NewTurnRepository(db, log), func() {}
	}

	client, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout, log)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	repo := mongo.NewTurnRepository(client.Database(cfg.Mongo.Database), log)
	if indexed, ok := repo.(interface{ EnsureIndexes(context.Context) error }); ok {
		if err := indexed.EnsureIndexes(ctx); err != nil {
			log.Fatal("Failed to create MongoDB indexes", zap.Error(err))
		}
	}

	return repo, func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error("Error disconnecting MongoDB", zap.Error(err))
		}
	}
}

func breakerSettings(cfg config.CircuitBreakerConfig) circuitbreaker.Settings {
	settings := circuitbreaker.DefaultSettings("default")
	if cfg.MaxRequests > 0 {
		settings.MaxRequests = uint32(cfg.MaxRequests)
	}
	if cfg.Interval > 0 {
		settings.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		settings.Timeout = cfg.Timeout
	}
	if cfg.FailureThreshold > 0 {
		settings.FailureRatio = cfg.FailureThreshold
	}
	return settings
}

// breakerChecker reports degraded while any downstream breaker is open.
func breakerChecker(m *circuitbreaker.Manager) health.Checker {
	return func(ctx context.Context) health.CheckResult {
		start := time.Now()
		result := health.CheckResult{
			Name:      "circuit_breakers",
			Status:    health.StatusHealthy,
			Timestamp: start,
		}

		var open []string
		for name, st := range m.Status() {
			if st.State == "open" {
				open = append(open, name)
			}
		}
		if len(open) > 0 {
			result.Status = health.StatusDegraded
			result.Message = "open: " + strings.Join(open, ", ")
		}
		result.Duration = time.Since(start)
		return result
	}
}

// aiBackends holds the model-facing dependencies of a turn.
type aiBackends struct {
	Model       ports.LanguageModel
	Transcriber ports.Transcriber
	Synthesizer ports.SpeechSynthesizer
	closers     []func() error
}

func (a *aiBackends) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func newAIBackends(ctx context.Context, cfg *config.Config, breakers *circuitbreaker.Manager, log *zap.Logger) *aiBackends {
	backends := &aiBackends{}

	var openaiClient *openai.Client
	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(openai.Config{
			APIKey:             cfg.OpenAI.APIKey,
			BaseURL:            cfg.OpenAI.BaseURL,
			ClassifierModel:    cfg.OpenAI.ClassifierModel,
			TranscriptionModel: cfg.OpenAI.TranscriptionModel,
			TTSModel:           cfg.OpenAI.TTSModel,
			TTSVoice:           cfg.OpenAI.TTSVoice,
			Language:           baseLanguage(cfg.Region.Locale),
			Timeout:            cfg.OpenAI.Timeout,
		}, breakers.Get("openai"), log)
		if err != nil {
			log.Fatal("Failed to create OpenAI client", zap.Error(err))
		}
		openaiClient = client
	}

	switch cfg.Classifier.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
		}, breakers.Get("gemini"), log)
		if err != nil {
			log.Fatal("Failed to create Gemini client", zap.Error(err))
		}
		backends.Model = client
	case "anthropic":
		client, err := anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Anthropic.Model,
			BaseURL: cfg.Anthropic.BaseURL,
			Timeout: cfg.Anthropic.Timeout,
		}, breakers.Get("anthropic"), log)
		if err != nil {
			log.Fatal("Failed to create Anthropic client", zap.Error(err))
		}
		backends.Model = client
	default:
		if openaiClient == nil {
			log.Fatal("OpenAI classifier selected but openai.api_key is empty")
		}
		backends.Model = openaiClient
	}

	switch cfg.Transcriber.Provider {
	case "google":
		transcriber, err := googlespeech.NewTranscriber(ctx, googlespeech.Config{
			Language:   cfg.GoogleSpeech.Language,
			SampleRate: cfg.GoogleSpeech.SampleRate,
		}, log)
		if err != nil {
			log.Fatal("Failed to create Google Speech client", zap.Error(err))
		}
		backends.Transcriber = transcriber
		backends.closers = append(backends.closers, transcriber.Close)
	default:
		if openaiClient == nil {
			log.Fatal("OpenAI transcriber selected but openai.api_key is empty")
		}
		backends.Transcriber = openaiClient
	}

	if cfg.OpenAI.SpeechEnabled && openaiClient != nil {
		backends.Synthesizer = openaiClient
	}

	log.Info("AI backends ready",
		zap.String("classifier", cfg.Classifier.Provider),
		zap.String("transcriber", cfg.Transcriber.Provider),
		zap.Bool("speech", backends.Synthesizer != nil),
	)
	return backends
}

// baseLanguage turns a locale such as "pt-BR" into the ISO-639-1 code
// the transcription API expects.
func baseLanguage(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	return strings.ToLower(lang)
}

func emailConfig(cfg *config.Config) *email.Config {
	e := cfg.Notification.Email
	return &email.Config{
		Provider:       e.Provider,
		FromEmail:      e.From,
		FromName:       e.FromName,
		SendGridAPIKey: e.APIKey,
		SMTPHost:       e.SMTPHost,
		SMTPPort:       e.SMTPPort,
		SMTPUsername:   e.SMTPUser,
		SMTPPassword:   e.SMTPPassword,
		SMTPUseTLS:     e.SMTPUseTLS,
	}
}

// newToolRegistry registers one handler per configured capability. An
// intent whose tool is not configured fails validation at dispatch.
func newToolRegistry(ctx context.Context, cfg *config.Config, breakers *circuitbreaker.Manager,
	mirror ports.CalendarEventRepository, mailer *email.Service, log *zap.Logger) (*tools.Registry, error) {
	var handlers []tools.Handler
	toolTimeout := cfg.Orchestrator.Timeouts.Tool

	if cfg.Calendar.Provider == "google" {
		provider, err := calendar.NewGoogleProvider(ctx, calendar.Config{
			CredentialsFile: cfg.Calendar.CredentialsFile,
			CredentialsJSON: cfg.Calendar.CredentialsJSON,
			DelegatedUser:   cfg.Calendar.DelegatedUser,
			CalendarID:      cfg.Calendar.CalendarID,
		}, breakers.Get("google-calendar"), log)
		switch {
		case errors.Is(err, calendar.ErrNotConfigured):
			log.Warn("Calendar tool disabled", zap.Error(err))
		case err != nil:
			return nil, err
		default:
			handlers = append(handlers, tools.NewCalendarHandler(provider, mirror, tools.CalendarConfig{
				DefaultWindow: time.Duration(cfg.Calendar.DefaultWindowDays) * 24 * time.Hour,
				MaxResults:    cfg.Calendar.MaxResults,
				MaxRetries:    cfg.Calendar.MaxRetries,
				RetryDelay:    cfg.Calendar.RetryDelay,
				Timeout:       toolTimeout,
			}, log))
		}
	}

	p := cfg.Notification.Pushover
	pushover, err := notification.NewPushoverAdapter(notification.PushoverConfig{
		APIURL:   p.APIURL,
		AppToken: p.AppToken,
		UserKey:  p.UserKey,
		Timeout:  p.Timeout,
	}, breakers.Get("pushover"), log)
	switch {
	case errors.Is(err, notification.ErrNotConfigured):
		log.Warn("Notification tool disabled", zap.Error(err))
	case err != nil:
		return nil, err
	default:
		handlers = append(handlers, tools.NewNotificationHandler(pushover, tools.NotificationConfig{
			DefaultTitle: p.DefaultTitle,
			MaxAttempts:  p.MaxAttempts,
			RetryDelay:   p.RetryDelay,
			Timeout:      toolTimeout,
		}, log))
	}

	if mailer != nil {
		handlers = append(handlers, tools.NewEmailHandler(mailer, tools.EmailConfig{
			DefaultSubject: cfg.Notification.Email.DefaultSubject,
			Timeout:        toolTimeout,
		}, log))
	} else {
		log.Warn("Email tool disabled")
	}

	return tools.NewRegistry(log, handlers...)
}
