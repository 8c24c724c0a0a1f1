// Package models provides domain types for the agentcore system.
package models

import (
	"fmt"
	"time"
)

// ConversationKey identifies a conversation as (tenant, contact).
// Keys are stable for the lifetime of a buffered exchange and are
// never reused across tenants.
type ConversationKey struct {
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`
}

// String returns the canonical "tenant:contact" form used for map keys
// and log fields.
func (k ConversationKey) String() string {
	return fmt.Sprintf("%s:%s", k.TenantID, k.ContactID)
}

// Valid reports whether both components of the key are present.
func (k ConversationKey) Valid() bool {
	return k.TenantID != "" && k.ContactID != ""
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single role-tagged entry in a conversation turn.
// Tool call/result fields are only populated on assistant and tool
// messages produced inside the engine's loop.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
}

// ToolCall is a structured request emitted by the LLM inside a turn.
type ToolCall struct {
	// ID is the provider-assigned call identifier. Results are keyed
	// back to the originating call through it.
	ID string `json:"id"`

	// Name is the tool name as exposed in the tool schema.
	Name string `json:"name"`

	// Arguments is the raw JSON argument object supplied by the LLM.
	Arguments string `json:"arguments"`
}

// ToolResult is the structured payload returned to the LLM for one call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// MediaType classifies an outbound media item.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaFile  MediaType = "file"
)

// MediaItem is a media reference extracted from agent text or produced
// by a tool. It is not persisted as its own entity; the outbound log
// records it in metadata only.
type MediaItem struct {
	Type     MediaType `json:"type"`
	URL      string    `json:"url"`
	FileName string    `json:"file_name,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
}
