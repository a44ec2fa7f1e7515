package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/adapter/ai/prompt"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
)

const (
	DefaultClassifierModel    = "gpt-4o-mini"
	DefaultTranscriptionModel = "whisper-1"
	DefaultTTSModel           = "gpt-4o-mini-tts"
	DefaultTTSVoice           = "alloy"
)

type Config struct {
	APIKey             string
	BaseURL            string
	ClassifierModel    string
	TranscriptionModel string
	TTSModel           string
	TTSVoice           string
	Language           string
	Timeout            time.Duration
}

// Client talks to OpenAI for classification, speech-to-text and
// text-to-speech. Calls go through the breaker when one is set.
type Client struct {
	api     oai.Client
	cfg     Config
	schema  map[string]interface{}
	breaker *circuitbreaker.Breaker
	log     *zap.Logger
}

func NewClient(cfg Config, breaker *circuitbreaker.Breaker, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key not configured")
	}
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = DefaultClassifierModel
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = DefaultTranscriptionModel
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.TTSVoice == "" {
		cfg.TTSVoice = DefaultTTSVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	schema, err := prompt.Schema()
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(circuitbreaker.NewInstrumentedClient(cfg.Timeout)),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:     oai.NewClient(opts...),
		cfg:     cfg,
		schema:  schema,
		breaker: breaker,
		log:     log,
	}, nil
}

func (c *Client) Name() string {
	return "openai"
}

func (c *Client) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	if err := c.breaker.Execute(ctx, fn); err != nil {
		return fmt.Errorf("openai: %w", err)
	}
	return nil
}
