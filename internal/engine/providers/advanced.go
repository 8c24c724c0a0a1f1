package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/efficore/agentcore/internal/engine"
	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

// AdvancedConfig holds the secondary pathway settings.
type AdvancedConfig struct {
	// BaseURL is the advanced completion service root. Empty disables
	// the pathway entirely.
	BaseURL string `yaml:"base_url"`

	InternalSecret string        `yaml:"internal_secret"`
	Timeout        time.Duration `yaml:"timeout"`
}

// AdvancedProvider is the opt-in secondary pathway: a separate HTTP
// completion service with its own models and reasoning budget. The
// engine degrades to the primary provider when a call fails.
type AdvancedProvider struct {
	cfg    AdvancedConfig
	client *http.Client
}

// NewAdvancedProvider creates the provider, or nil when no base URL is
// configured so the engine skips the pathway.
func NewAdvancedProvider(cfg AdvancedConfig) *AdvancedProvider {
	if cfg.BaseURL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &AdvancedProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *AdvancedProvider) Name() string { return "advanced" }

type advancedToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type advancedRequest struct {
	Model     string               `json:"model,omitempty"`
	System    string               `json:"system"`
	Messages  []models.Message     `json:"messages"`
	Tools     []advancedToolSchema `json:"tools,omitempty"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
}

type advancedResponse struct {
	Text      string            `json:"text"`
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
	Usage     struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *AdvancedProvider) Complete(ctx context.Context, req *engine.Request) (*engine.Completion, error) {
	payload := advancedRequest{
		Model:     req.Model,
		System:    req.System,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, advancedToolSchema{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("advanced: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("advanced: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Internal-Secret", p.cfg.InternalSecret)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("advanced: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("advanced: HTTP %d", resp.StatusCode)
	}

	var decoded advancedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("advanced: failed to decode response: %w", err)
	}

	return &engine.Completion{
		Text:      decoded.Text,
		ToolCalls: decoded.ToolCalls,
		Usage: usage.Usage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
		},
	}, nil
}

var _ engine.Provider = (*AdvancedProvider)(nil)
