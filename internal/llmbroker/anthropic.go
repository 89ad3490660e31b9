package llmbroker

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client using the real Anthropic SDK, replacing
// the teacher's hand-rolled internal/modes/llm_anthropic.go HTTP client.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// NewAnthropicClient creates an AnthropicClient for the given model.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmbroker: anthropic API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}, nil
}

func (c *AnthropicClient) Model() string { return c.model }

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		block := anthropic.TextBlockParam{Type: "text", Text: req.System}
		if req.CacheSystem {
			block.CacheControl = anthropic.CacheControlEphemeralParam{Type: "ephemeral"}
		}
		params.System = []anthropic.TextBlockParam{block}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llmbroker: anthropic completion: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Response{
		Content:           content,
		PromptTokens:      int(resp.Usage.InputTokens),
		CachedInputTokens: int(resp.Usage.CacheReadInputTokens),
		CompletionTokens:  int(resp.Usage.OutputTokens),
		Model:             c.model,
	}, nil
}
