// Package engine drives the tool-calling conversation loop: it composes
// the system prompt from the tenant snapshot, replays a bounded history
// window, and iterates LLM calls against the tool executor until a
// plain-text reply emerges or the iteration ceiling is hit.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/internal/storage"
	"github.com/efficore/agentcore/internal/tools"
	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

// fallbackReply is sent when a run produces no usable text. The user is
// never left unanswered.
const fallbackReply = "Disculpa, tuve un inconveniente procesando tu mensaje. ¿Podrías repetirlo?"

// Config holds the engine tunables.
type Config struct {
	// Model overrides the provider default when set.
	Model string `yaml:"model"`

	// MaxIterations is the hard ceiling on LLM round-trips per turn.
	MaxIterations int `yaml:"max_iterations"`

	// HistoryWindow is how many prior turns are replayed to the LLM.
	HistoryWindow int `yaml:"history_window"`

	MaxTokens int `yaml:"max_tokens"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 5,
		HistoryWindow: 10,
	}
}

func (c *Config) sanitize() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 5
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10
	}
}

// Collaborators are the external services backing the built-in tools.
// A nil collaborator leaves its tools unregistered.
type Collaborators struct {
	Search    tools.CatalogSearcher
	Knowledge tools.KnowledgeSearcher
	Payments  tools.PaymentLinker
	Calendar  tools.Scheduler
	Followups tools.FollowupScheduler
	CRM       tools.CRMUpdater
}

// Reply is the outcome of one engine run.
type Reply struct {
	Text string

	// Media carries attachments produced by tools during the run.
	Media []models.MediaItem

	Usage      usage.Usage
	Iterations int
}

// Engine runs conversation turns. One Engine serves all conversations;
// each Run call is independent.
type Engine struct {
	primary  Provider
	advanced Provider
	collab   Collaborators

	cfg      Config
	messages storage.MessageLog
	toolLog  storage.ToolCallLog
	usageRec usage.Recorder
	logger   *slog.Logger
	metrics  *observability.Metrics
	nowFunc  func() time.Time
}

// New creates an engine. advanced may be nil; tenants opted into
// advanced mode then run on the primary provider.
func New(primary, advanced Provider, collab Collaborators, cfg Config, stores storage.Stores, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	cfg.sanitize()
	return &Engine{
		primary:  primary,
		advanced: advanced,
		collab:   collab,
		cfg:      cfg,
		messages: stores.Messages,
		toolLog:  stores.ToolCalls,
		usageRec: stores.Usage,
		logger:   logger,
		metrics:  metrics,
		nowFunc:  time.Now,
	}
}

// Run executes one conversation turn for the coalesced user text and
// returns the final reply. Provider failures and ceiling breaches
// degrade to a fallback reply instead of an error; the conversation
// must always produce something sendable.
func (e *Engine) Run(ctx context.Context, key models.ConversationKey, text string, tenant *models.TenantContext) (*Reply, error) {
	ctx = tools.WithConversation(ctx, &tools.Conversation{Key: key, Tenant: tenant})

	registry := e.buildRegistry(tenant)
	req := &Request{
		Model:     e.cfg.Model,
		System:    ComposeSystemPrompt(tenant, e.nowFunc()),
		Messages:  append(e.history(ctx, key), models.Message{Role: models.RoleUser, Content: text}),
		Tools:     registry.List(),
		MaxTokens: e.cfg.MaxTokens,
	}

	provider := e.primary
	if tenant.AdvancedMode && e.advanced != nil {
		provider = e.advanced
	}

	reply := &Reply{}
	var lastText string

	for iter := 1; iter <= e.cfg.MaxIterations; iter++ {
		reply.Iterations = iter

		completion, err := e.complete(ctx, &provider, req)
		if err != nil {
			e.logger.Error("llm call failed",
				"conversation", key.String(), "iteration", iter, "error", err)
			reply.Text = bestText(lastText)
			e.finish(ctx, key, provider, reply)
			return reply, nil
		}
		reply.Usage.Add(completion.Usage)
		if completion.Text != "" {
			lastText = completion.Text
		}

		if len(completion.ToolCalls) == 0 {
			reply.Text = bestText(completion.Text)
			e.finish(ctx, key, provider, reply)
			return reply, nil
		}

		req.Messages = append(req.Messages, models.Message{
			Role:      models.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})
		req.Messages = append(req.Messages, models.Message{
			Role:        models.RoleTool,
			ToolResults: e.executeCalls(ctx, registry, completion.ToolCalls, reply),
		})
	}

	e.logger.Warn("tool loop hit iteration ceiling",
		"conversation", key.String(), "ceiling", e.cfg.MaxIterations)
	reply.Text = bestText(lastText)
	e.finish(ctx, key, provider, reply)
	return reply, nil
}

// complete calls the current provider and degrades advanced-mode runs
// to the primary pathway when the secondary one is unavailable.
func (e *Engine) complete(ctx context.Context, provider *Provider, req *Request) (*Completion, error) {
	completion, err := (*provider).Complete(ctx, req)
	if err == nil || *provider == e.primary {
		return completion, err
	}

	e.logger.Warn("advanced pathway unavailable, degrading to primary",
		"provider", (*provider).Name(), "error", err)
	*provider = e.primary
	return e.primary.Complete(ctx, req)
}

func (e *Engine) executeCalls(ctx context.Context, registry *tools.Registry, calls []models.ToolCall, reply *Reply) []models.ToolResult {
	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		result, err := registry.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
		if err != nil {
			result = tools.Errorf("tool %s failed: %v", call.Name, err)
		}
		reply.Media = append(reply.Media, result.Media...)
		results = append(results, models.ToolResult{
			ToolCallID: call.ID,
			Content:    result.Content,
			IsError:    result.IsError,
		})
	}
	return results
}

// history returns the prior window oldest first. Storage serves it
// newest first; the provider needs chronological order.
func (e *Engine) history(ctx context.Context, key models.ConversationKey) []models.Message {
	recent, err := e.messages.Recent(ctx, key, e.cfg.HistoryWindow)
	if err != nil {
		e.logger.Warn("failed to load conversation history",
			"conversation", key.String(), "error", err)
		return nil
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent
}

// buildRegistry assembles the per-run toolset: gated built-ins plus
// tenant-configured HTTP tools.
func (e *Engine) buildRegistry(tenant *models.TenantContext) *tools.Registry {
	registry := tools.NewRegistry(e.toolLog, e.logger, e.metrics)

	if e.collab.Search != nil && len(tenant.Products) > inlineCatalogLimit {
		registry.Register(tools.NewSearchTool(e.collab.Search))
	}
	// Knowledge search is not stage or objective gated; any turn may
	// need a policy or FAQ answer.
	if e.collab.Knowledge != nil {
		registry.Register(tools.NewKnowledgeTool(e.collab.Knowledge))
	}
	if e.collab.Payments != nil && tenant.Objective != models.ObjectiveAppointments {
		registry.Register(tools.NewPaymentTool(e.collab.Payments))
	}
	if e.collab.Calendar != nil && tenant.Objective == models.ObjectiveAppointments {
		registry.Register(tools.NewAvailabilityTool(e.collab.Calendar))
		registry.Register(tools.NewAppointmentTool(e.collab.Calendar))
	}
	if e.collab.Followups != nil {
		registry.Register(tools.NewFollowupTool(e.collab.Followups))
	}
	if e.collab.CRM != nil {
		registry.Register(tools.NewCRMTool(e.collab.CRM))
	}
	registry.Register(tools.NewFileTool())

	for _, cfg := range tenant.HTTPTools {
		tool, err := tools.NewHTTPTool(cfg)
		if err != nil {
			e.logger.Warn("skipping misconfigured http tool",
				"tool", cfg.Name, "tenant", tenant.BusinessID, "error", err)
			continue
		}
		registry.Register(tool)
	}
	return registry
}

// finish records run-level metrics and token usage.
func (e *Engine) finish(ctx context.Context, key models.ConversationKey, provider Provider, reply *Reply) {
	e.metrics.EngineIterations.Observe(float64(reply.Iterations))
	e.metrics.LLMTokens.WithLabelValues(provider.Name(), "prompt").Add(float64(reply.Usage.PromptTokens))
	e.metrics.LLMTokens.WithLabelValues(provider.Name(), "completion").Add(float64(reply.Usage.CompletionTokens))

	if reply.Usage.Total() == 0 {
		return
	}
	rec := usage.Record{
		ID:        uuid.NewString(),
		Key:       key,
		Provider:  provider.Name(),
		Model:     e.cfg.Model,
		Usage:     reply.Usage,
		Timestamp: e.nowFunc(),
	}
	if err := e.usageRec.Record(ctx, rec); err != nil {
		e.logger.Warn("failed to record token usage",
			"conversation", key.String(), "error", err)
	}
}

func bestText(text string) string {
	if text == "" {
		return fallbackReply
	}
	return text
}
