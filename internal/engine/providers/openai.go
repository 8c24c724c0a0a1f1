// Package providers contains the LLM backends behind the engine's
// provider interface.
package providers

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/efficore/agentcore/internal/engine"
	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

const (
	defaultOpenAIModel = openai.GPT4oMini

	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// OpenAIConfig holds the primary provider settings.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`

	// BaseURL points at an OpenAI-compatible endpoint when set.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`
}

// OpenAIProvider is the primary chat-completion backend.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	metrics *observability.Metrics
}

// NewOpenAIProvider creates the provider.
func NewOpenAIProvider(cfg OpenAIConfig, metrics *observability.Metrics) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		metrics: metrics,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Complete performs one chat-completion call with bounded retries on
// transport errors.
func (p *OpenAIProvider) Complete(ctx context.Context, req *engine.Request) (*engine.Completion, error) {
	chatReq := p.buildRequest(req)

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started := time.Now()
		resp, err = p.client.CreateChatCompletion(ctx, chatReq)
		p.metrics.LLMRequestDuration.WithLabelValues(p.Name()).Observe(time.Since(started).Seconds())
		if err == nil {
			break
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			return nil, fmt.Errorf("openai: chat completion failed: %w", err)
		}
		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty response")
	}
	choice := resp.Choices[0].Message

	completion := &engine.Completion{
		Text: choice.Content,
		Usage: usage.Usage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
		},
	}
	for _, tc := range choice.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return completion, nil
}

func (p *OpenAIProvider) buildRequest(req *engine.Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, toOpenAIMessages(msg)...)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	for _, tool := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Schema(),
			},
		})
	}
	return chatReq
}

// toOpenAIMessages maps one domain message to the wire shape. A tool
// message fans out into one message per result, as the API requires.
func toOpenAIMessages(msg models.Message) []openai.ChatCompletionMessage {
	switch msg.Role {
	case models.RoleTool:
		out := make([]openai.ChatCompletionMessage, 0, len(msg.ToolResults))
		for _, result := range msg.ToolResults {
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result.Content,
				ToolCallID: result.ToolCallID,
			})
		}
		return out
	case models.RoleAssistant:
		m := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return []openai.ChatCompletionMessage{m}
	default:
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Content,
		}}
	}
}

var _ engine.Provider = (*OpenAIProvider)(nil)
