// Package channel defines the messaging-channel adapter contract the
// delivery pipeline sends through. Concrete adapters (WhatsApp, web chat)
// are provided by the host; this core only depends on the interface.
package channel

import (
	"context"

	"github.com/efficore/agentcore/pkg/models"
)

// Target addresses one recipient on one channel.
type Target struct {
	// Channel names the transport, e.g. "whatsapp".
	Channel string

	// Address is the channel-specific recipient identifier.
	Address string
}

// Adapter is implemented by messaging-channel integrations.
//
// Sends are expected to be idempotent-enough that an occasional duplicate
// is tolerable; the adapter must still surface send failures rather than
// swallowing them.
type Adapter interface {
	// SendText delivers one text chunk to the target.
	SendText(ctx context.Context, target Target, text string) error

	// SendMedia delivers one media item to the target.
	SendMedia(ctx context.Context, target Target, item models.MediaItem) error

	// MarkRead marks the conversation as read on the channel. Best effort.
	MarkRead(ctx context.Context, target Target) error
}
