// Package openai implements model.Completer using the OpenAI Chat
// Completions API. It adapts the normalized Request/Response structures
// into the SDK's message format and maps provider failures onto the
// core error kinds so the executor can route on them.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/model"
)

// Options configure the OpenAI completer. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Completer wraps the OpenAI Chat Completions API behind the generic
// model.Completer interface.
type Completer struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI completer using the official client, which
// reads OPENAI_API_KEY from the environment.
func New(optFns ...func(o *Options)) *Completer {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI completer from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completer{client: client, opts: opts}
}

// Complete implements model.Completer.
func (c *Completer) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.opts.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.opts.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.opts.MaxCompletionTokens
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(modelName),
		Messages:            messages,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewError(core.KindCompletionService, "openai returned no choices")
	}

	out := &model.Response{Text: resp.Choices[0].Message.Content}
	out.Usage = &model.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return out, nil
}

// Info implements model.Completer.
func (c *Completer) Info() model.Info {
	return model.Info{Name: c.opts.Model, Provider: "openai"}
}

// mapError translates SDK failures into the core taxonomy.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.WrapError(core.KindTimeout, err, "openai completion")
	}
	if errors.Is(err, context.Canceled) {
		return core.WrapError(core.KindCancelled, err, "openai completion")
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429:
			return core.WrapError(core.KindRateLimited, err, "openai completion")
		case 401, 403:
			return core.WrapError(core.KindAuth, err, "openai completion")
		}
	}
	return core.WrapError(core.KindCompletionService, err, "openai completion")
}
