package source

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"streammark/internal/logger"
)

// OpenAIOptions configures a live model stream.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	System  string
	Prompt  string
}

// OpenAI streams the text deltas of one chat completion from an
// OpenAI-compatible endpoint. Tool calls and non-text events are ignored;
// this source only feeds the renderer.
type OpenAI struct {
	api    *openai.Client
	model  string
	system string
	prompt string
	log    *logger.LogEntry
}

// NewOpenAI creates the live source.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, errors.New("source: empty prompt")
	}
	cfg := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg = append(cfg, option.WithBaseURL(strings.TrimRight(base, "/")))
	}
	client := openai.NewClient(cfg...)
	return &OpenAI{
		api:    &client,
		model:  opts.Model,
		system: opts.System,
		prompt: opts.Prompt,
		log:    logger.Named("source.openai"),
	}, nil
}

// Stream implements Source.
func (o *OpenAI) Stream(ctx context.Context, emit func(delta string) error) error {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if o.system != "" {
		messages = append(messages, openai.SystemMessage(o.system))
	}
	messages = append(messages, openai.UserMessage(o.prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: messages,
	}
	stream := o.api.Chat.Completions.NewStreaming(ctx, params)
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		o.log.Warnf("stream ended with error: %v", err)
		return err
	}
	return nil
}
