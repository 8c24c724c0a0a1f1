// Package buffer implements the per-conversation coalescing buffer and
// the claim-based processing lock.
//
// Inbound fragments for a (tenant, contact) key accumulate in a durable
// buffer record for a quiet period; every new fragment pushes the
// deadline forward. When the deadline passes, a worker claims the buffer
// through an atomic conditional update on its lease field, deletes the
// record, and hands the coalesced fragments to the drain hook exactly
// once per claim. In-memory timers are a latency optimization only; the
// periodic sweep plus the durable lease is what makes draining correct
// across worker processes.
package buffer

import (
	"context"
	"errors"
	"time"

	"github.com/efficore/agentcore/pkg/models"
)

var (
	// ErrBufferNotFound is returned when no open buffer exists for a key
	// or identifier.
	ErrBufferNotFound = errors.New("buffer: not found")
)

// Fragment is one raw inbound message fragment.
type Fragment struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Buffer is the durable record accumulating fragments for one conversation.
//
// A buffer is open (accepting fragments, lease absent), claimed (lease in
// the future, being drained by exactly one worker), or deleted (terminal).
type Buffer struct {
	ID        string                 `json:"id"`
	Key       models.ConversationKey `json:"key"`
	Fragments []Fragment             `json:"fragments"`
	ExpiresAt time.Time              `json:"expires_at"`

	// ProcessingUntil is the lease expiry. Nil means unclaimed; a past
	// timestamp means the claim is stale and the buffer is reclaimable.
	ProcessingUntil *time.Time `json:"processing_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Coalesced joins the buffered fragments into one user turn, newline
// separated in arrival order.
func (b *Buffer) Coalesced() string {
	switch len(b.Fragments) {
	case 0:
		return ""
	case 1:
		return b.Fragments[0].Text
	}
	out := b.Fragments[0].Text
	for _, f := range b.Fragments[1:] {
		out += "\n" + f.Text
	}
	return out
}

// Store persists buffer records. Implementations must make TryClaim a
// single atomic conditional update: the check of the current lease and
// the write of the new one must never be separated.
type Store interface {
	// Append adds a fragment to the open buffer for key, creating the
	// buffer if absent, and pushes ExpiresAt to now+quiet. It returns
	// the buffer's fragment count after the append.
	Append(ctx context.Context, key models.ConversationKey, text string, quiet time.Duration) (int, error)

	// Open returns the open buffer for key, or ErrBufferNotFound.
	Open(ctx context.Context, key models.ConversationKey) (*Buffer, error)

	// Get returns the buffer with the given id, or ErrBufferNotFound.
	Get(ctx context.Context, id string) (*Buffer, error)

	// Due returns buffers whose quiet period has expired and whose lease
	// is absent or stale as of now.
	Due(ctx context.Context, now time.Time) ([]Buffer, error)

	// TryClaim attempts to acquire the processing lease on a buffer.
	// It returns true when the lease was acquired exclusively and false
	// when another worker already holds a live lease. A lost claim is
	// not an error.
	TryClaim(ctx context.Context, id string, lease time.Duration) (bool, error)

	// Delete removes a buffer record. Deleting an already-deleted buffer
	// is a no-op.
	Delete(ctx context.Context, id string) error
}
