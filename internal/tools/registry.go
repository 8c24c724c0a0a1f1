package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/internal/storage"
)

// Argument limits guarding the executor against degenerate LLM output.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolArgsSize is the maximum size of tool arguments JSON (1MB).
	MaxToolArgsSize = 1 << 20
)

// Registry manages available tools with thread-safe registration and
// lookup, and records every execution to the tool-call log.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	log     storage.ToolCallLog
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(log storage.ToolCallLog, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		log:     log,
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a tool by name, replacing any existing tool of that name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools for passing to an LLM provider.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// Execute runs a tool by exact name with the given JSON arguments. Tool
// failures come back as an error Result so the conversation can continue
// and explain them; the returned Go error is reserved for executor
// breakage. Every invocation is recorded with its duration and outcome.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	if len(name) > MaxToolNameLength {
		return Errorf("tool name exceeds maximum length of %d characters", MaxToolNameLength), nil
	}
	if len(args) > MaxToolArgsSize {
		return Errorf("tool arguments exceed maximum size of %d bytes", MaxToolArgsSize), nil
	}

	tool, ok := r.Get(name)
	if !ok {
		return Errorf("tool not found: %s", name), nil
	}

	started := time.Now()
	result, err := tool.Execute(ctx, args)
	elapsed := time.Since(started)
	if err != nil {
		result = Errorf("tool %s failed: %v", name, err)
	}
	if result == nil {
		result = Errorf("tool %s returned no result", name)
	}

	result.Content = SanitizeContent(result.Content)

	status := "ok"
	if result.IsError {
		status = "error"
	}
	r.metrics.ToolExecutions.WithLabelValues(name, status).Inc()
	r.metrics.ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	r.record(ctx, name, args, result, elapsed)
	return result, nil
}

// record writes the invocation to the tool-call log. A result that
// cannot be serialized is still recorded in a fallback shape; logging
// failures never fail the execution.
func (r *Registry) record(ctx context.Context, name string, args json.RawMessage, result *Result, elapsed time.Duration) {
	entry := storage.ToolCallEntry{
		ID:        uuid.NewString(),
		Tool:      name,
		Arguments: string(args),
		Success:   !result.IsError,
		Duration:  elapsed,
		CreatedAt: time.Now(),
	}
	if conv, ok := ConversationFrom(ctx); ok {
		entry.Key = conv.Key
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		entry.Result = fmt.Sprintf("unserializable result: %.500s", result.Content)
	} else {
		entry.Result = string(serialized)
	}

	if err := r.log.Append(ctx, entry); err != nil {
		r.logger.Warn("failed to record tool call",
			"tool", name, "error", err)
	}
}
