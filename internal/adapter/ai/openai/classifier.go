package openai

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/adapter/ai/prompt"
	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// Classify asks the chat model for a structured verdict.
func (c *Client) Classify(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error) {
	params := oai.ChatCompletionNewParams{
		Model: oai.ChatModel(c.cfg.ClassifierModel),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(prompt.System(req)),
			oai.UserMessage(prompt.User(req)),
		},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   prompt.SchemaName,
					Schema: c.schema,
				},
			},
		},
	}

	var content string
	err := c.guard(ctx, func(ctx context.Context) error {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("Classifier output", zap.String("model", c.cfg.ClassifierModel), zap.String("raw", content))

	verdict, err := prompt.ParseVerdict(content)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return verdict, nil
}
