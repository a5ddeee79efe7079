package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

const defaultMaxTokens = 4096

// ClaudeProvider is the Anthropic chat backend. It also serves the
// vision-description calls for image attachments.
type ClaudeProvider struct {
	client anthropic.Client
	model  string
	log    logger.Logger
}

// NewClaudeProvider creates a Claude provider.
func NewClaudeProvider(apiKey, model string, log logger.Logger) (*ClaudeProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model name is required")
	}

	return &ClaudeProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		log:    log.WithFields(logger.StringField("provider", "anthropic")),
	}, nil
}

// Name returns the provider's registry name.
func (p *ClaudeProvider) Name() string {
	return "anthropic"
}

// Complete runs a single non-streaming message call.
func (p *ClaudeProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultMaxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	return textFromBlocks(resp)
}

// DescribeImage asks Claude to describe image bytes in the context of the
// user's message. An empty message falls back to a plain description request.
func (p *ClaudeProvider) DescribeImage(ctx context.Context, data []byte, mimeType, message string) (string, error) {
	prompt := "Describe this image in detail."
	if message != "" {
		prompt = fmt.Sprintf("The user sent this image with the message: %q. Describe the image in detail, focusing on what is relevant to the message.", message)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encoded),
				anthropic.NewTextBlock(prompt),
			),
		},
	}

	p.log.Debug("vision description request",
		logger.StringField("mime_type", mimeType),
		logger.IntField("bytes", len(data)))

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic vision: %w", err)
	}

	return textFromBlocks(resp)
}

func textFromBlocks(resp *anthropic.Message) (string, error) {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
	}
	return text, nil
}
