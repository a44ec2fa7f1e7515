package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/seu-repo/hiya-assistant/internal/adapter/ai/prompt"
	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
)

const DefaultModel = "gemini-2.0-flash"

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Client classifies utterances with a Gemini model. It is the fallback
// backend when OpenAI is not configured.
type Client struct {
	client  *genai.Client
	model   string
	temp    float32
	breaker *circuitbreaker.Breaker
	log     *zap.Logger
}

func NewClient(ctx context.Context, cfg Config, breaker *circuitbreaker.Breaker, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Client{
		client:  client,
		model:   cfg.Model,
		temp:    cfg.Temperature,
		breaker: breaker,
		log:     log,
	}, nil
}

func (c *Client) Name() string {
	return "gemini"
}

func (c *Client) Classify(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt.User(req), genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System(req), genai.RoleUser),
		Temperature:       genai.Ptr(c.temp),
		ResponseMIMEType:  "application/json",
	}

	call := func(ctx context.Context) (string, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return textOf(resp)
	}

	var (
		raw string
		err error
	)
	if c.breaker != nil {
		raw, err = circuitbreaker.ExecuteWithResult(ctx, c.breaker, call)
	} else {
		raw, err = call(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	c.log.Debug("Classifier output", zap.String("model", c.model), zap.String("raw", raw))

	verdict, err := prompt.ParseVerdict(raw)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return verdict, nil
}

// textOf joins the text parts of the first candidate.
func textOf(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("response has no text")
	}
	return b.String(), nil
}
