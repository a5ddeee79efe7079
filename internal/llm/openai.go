package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// ChatProvider is a chat backend speaking the OpenAI chat-completions API.
// Groq and Together expose the same API, so all three are instances of this
// type with different base URLs.
type ChatProvider struct {
	client openai.Client
	name   string
	model  string
	log    logger.Logger
}

// NewChatProvider creates a provider against an OpenAI-compatible endpoint.
// baseURL may be empty for the OpenAI default.
func NewChatProvider(name, apiKey, model, baseURL string, log logger.Logger) (*ChatProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: API key is required", name)
	}
	if model == "" {
		return nil, fmt.Errorf("%s: model name is required", name)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &ChatProvider{
		client: openai.NewClient(opts...),
		name:   name,
		model:  model,
		log:    log.WithFields(logger.StringField("provider", name)),
	}, nil
}

// Name returns the provider's registry name.
func (p *ChatProvider) Name() string {
	return p.name
}

// Complete runs a single non-streaming chat completion.
func (p *ChatProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	p.log.Debug("chat completion request",
		logger.StringField("model", p.model),
		logger.IntField("messages", len(messages)))

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: %w", p.name, ErrEmptyCompletion)
	}

	return resp.Choices[0].Message.Content, nil
}
