// Package usage provides token usage accumulation and recording.
package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/efficore/agentcore/pkg/models"
)

// Usage represents token usage for a single LLM request or an
// accumulated engine run.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns the total token count.
func (u Usage) Total() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// Record is one persisted usage entry for downstream accounting.
type Record struct {
	ID        string                 `json:"id"`
	Key       models.ConversationKey `json:"key"`
	Provider  string                 `json:"provider"`
	Model     string                 `json:"model"`
	Usage     Usage                  `json:"usage"`
	Timestamp time.Time              `json:"timestamp"`
}

// Recorder persists usage records. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// LogRecorder writes usage records to the structured log. It is the
// fallback recorder when no durable store is configured.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record logs the usage entry.
func (r *LogRecorder) Record(ctx context.Context, rec Record) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "token usage",
		"tenant", rec.Key.TenantID,
		"contact", rec.Key.ContactID,
		"provider", rec.Provider,
		"model", rec.Model,
		"prompt_tokens", rec.Usage.PromptTokens,
		"completion_tokens", rec.Usage.CompletionTokens,
	)
	return nil
}
