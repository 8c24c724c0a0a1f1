package channel

import (
	"context"
	"sync"

	"github.com/efficore/agentcore/pkg/models"
)

// SentText is one recorded text send.
type SentText struct {
	Target Target
	Text   string
}

// SentMedia is one recorded media send.
type SentMedia struct {
	Target Target
	Item   models.MediaItem
}

// MemoryAdapter records sends in memory. It backs tests and the dev-mode
// dry run where no real channel is connected.
type MemoryAdapter struct {
	mu        sync.Mutex
	texts     []SentText
	media     []SentMedia
	markReads []Target

	// TextErr, when set, is returned by SendText.
	TextErr error

	// MediaErr, when set, is returned by SendMedia.
	MediaErr error
}

// NewMemoryAdapter creates an empty recording adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

// SendText records the text send.
func (a *MemoryAdapter) SendText(ctx context.Context, target Target, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.TextErr != nil {
		return a.TextErr
	}
	a.texts = append(a.texts, SentText{Target: target, Text: text})
	return nil
}

// SendMedia records the media send.
func (a *MemoryAdapter) SendMedia(ctx context.Context, target Target, item models.MediaItem) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.MediaErr != nil {
		return a.MediaErr
	}
	a.media = append(a.media, SentMedia{Target: target, Item: item})
	return nil
}

// MarkRead records the mark-read call.
func (a *MemoryAdapter) MarkRead(ctx context.Context, target Target) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markReads = append(a.markReads, target)
	return nil
}

// Texts returns a copy of recorded text sends.
func (a *MemoryAdapter) Texts() []SentText {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SentText, len(a.texts))
	copy(out, a.texts)
	return out
}

// Media returns a copy of recorded media sends.
func (a *MemoryAdapter) Media() []SentMedia {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SentMedia, len(a.media))
	copy(out, a.media)
	return out
}

// MarkReads returns a copy of recorded mark-read targets.
func (a *MemoryAdapter) MarkReads() []Target {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Target, len(a.markReads))
	copy(out, a.markReads)
	return out
}
