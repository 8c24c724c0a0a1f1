// Package tools implements the tool executor: a registry of named
// capabilities the conversation engine exposes to the LLM. Built-ins
// cover catalog search, payment links, appointments, file delivery,
// followups, and CRM updates; tenant-configured HTTP tools share the
// same interface through a generic adapter.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/efficore/agentcore/pkg/models"
)

// Tool is one capability callable by the LLM. Execute returns tool-level
// failures inside the Result with IsError set; a Go error means the tool
// machinery itself broke, not the operation it performed.
type Tool interface {
	Name() string
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	Execute(ctx context.Context, args json.RawMessage) (*Result, error)
}

// Result is the structured outcome handed back to the LLM.
type Result struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`

	// Media carries attachments the tool wants delivered alongside the
	// assistant's reply, e.g. a product image from send_file.
	Media []models.MediaItem `json:"media,omitempty"`
}

// Errorf builds an error Result from a format string. The text reaches
// the LLM, so it must stay in end-user terms.
func Errorf(format string, args ...any) *Result {
	return &Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// Conversation is the per-run context tools read: which conversation is
// being served and the tenant snapshot loaded for it.
type Conversation struct {
	Key    models.ConversationKey
	Tenant *models.TenantContext
}

type conversationCtxKey struct{}

// WithConversation attaches the conversation context for tools to read.
func WithConversation(ctx context.Context, conv *Conversation) context.Context {
	return context.WithValue(ctx, conversationCtxKey{}, conv)
}

// ConversationFrom returns the conversation context, or false when the
// tool is being executed outside an engine run.
func ConversationFrom(ctx context.Context) (*Conversation, bool) {
	conv, ok := ctx.Value(conversationCtxKey{}).(*Conversation)
	return conv, ok && conv != nil
}
