package storage

import (
	"context"
	"sync"
	"time"

	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

// MemoryStores is an in-memory Stores implementation for tests and dev mode.
type MemoryStores struct {
	mu        sync.Mutex
	messages  map[string][]models.Message
	outbound  []OutboundEntry
	toolCalls []ToolCallEntry
	usages    []usage.Record
}

// NewMemoryStores creates empty in-memory stores.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		messages: make(map[string][]models.Message),
	}
}

// Stores returns the Stores view over this instance.
func (m *MemoryStores) Stores() Stores {
	return Stores{
		Messages:  m,
		ToolCalls: m,
		Usage:     m,
	}
}

// AppendInbound records a user turn.
func (m *MemoryStores) AppendInbound(ctx context.Context, key models.ConversationKey, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key.String()
	m.messages[k] = append(m.messages[k], models.Message{
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	})
	return nil
}

// AppendOutbound records a delivered reply as an assistant turn plus the
// delivery summary entry.
func (m *MemoryStores) AppendOutbound(ctx context.Context, entry OutboundEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entry.Key.String()
	m.messages[k] = append(m.messages[k], models.Message{
		Role:      models.RoleAssistant,
		Content:   entry.Text,
		CreatedAt: entry.CreatedAt,
	})
	m.outbound = append(m.outbound, entry)
	return nil
}

// Recent returns up to limit turns, most recent first.
func (m *MemoryStores) Recent(ctx context.Context, key models.ConversationKey, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[key.String()]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]models.Message, 0, limit)
	for i := len(msgs) - 1; i >= len(msgs)-limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// Append records a tool call entry.
func (m *MemoryStores) Append(ctx context.Context, entry ToolCallEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = append(m.toolCalls, entry)
	return nil
}

// Record stores a usage record.
func (m *MemoryStores) Record(ctx context.Context, rec usage.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usages = append(m.usages, rec)
	return nil
}

// Outbound returns a copy of recorded outbound entries.
func (m *MemoryStores) Outbound() []OutboundEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundEntry, len(m.outbound))
	copy(out, m.outbound)
	return out
}

// ToolCalls returns a copy of recorded tool-call entries.
func (m *MemoryStores) ToolCalls() []ToolCallEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ToolCallEntry, len(m.toolCalls))
	copy(out, m.toolCalls)
	return out
}

// Usages returns a copy of recorded usage records.
func (m *MemoryStores) Usages() []usage.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]usage.Record, len(m.usages))
	copy(out, m.usages)
	return out
}
