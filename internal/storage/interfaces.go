// Package storage defines persistence contracts for message logs,
// tool-call logs, and token-usage records, with Postgres and in-memory
// implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

var (
	ErrNotFound = errors.New("storage: not found")
)

// OutboundEntry summarizes one completed delivery.
type OutboundEntry struct {
	ID          string                 `json:"id"`
	Key         models.ConversationKey `json:"key"`
	Channel     string                 `json:"channel"`
	Text        string                 `json:"text"`
	SentMedia   []models.MediaItem     `json:"sent_media,omitempty"`
	FailedMedia []models.MediaItem     `json:"failed_media,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ToolCallEntry records one tool invocation for later inspection.
type ToolCallEntry struct {
	ID        string                 `json:"id"`
	Key       models.ConversationKey `json:"key"`
	Tool      string                 `json:"tool"`
	Arguments string                 `json:"arguments"`
	Result    string                 `json:"result"`
	Success   bool                   `json:"success"`
	Duration  time.Duration          `json:"duration"`
	CreatedAt time.Time              `json:"created_at"`
}

// MessageLog persists the durable inbound/outbound conversation record
// and serves the engine's bounded history window.
type MessageLog interface {
	// AppendInbound records a coalesced user turn.
	AppendInbound(ctx context.Context, key models.ConversationKey, text string) error

	// AppendOutbound records a delivered reply.
	AppendOutbound(ctx context.Context, entry OutboundEntry) error

	// Recent returns up to limit prior turns, most recent first.
	Recent(ctx context.Context, key models.ConversationKey, limit int) ([]models.Message, error)
}

// ToolCallLog persists tool invocation records.
type ToolCallLog interface {
	Append(ctx context.Context, entry ToolCallEntry) error
}

// Stores groups the storage dependencies handed to the core.
type Stores struct {
	Messages  MessageLog
	ToolCalls ToolCallLog
	Usage     usage.Recorder

	closer func() error
}

// Close releases any underlying resources.
func (s Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
