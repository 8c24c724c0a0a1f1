package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efficore/agentcore/pkg/models"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and
// single-process dev mode. It honors the same claim semantics as the
// Postgres store: the lease check and write happen under one lock.
type MemoryStore struct {
	mu      sync.Mutex
	byKey   map[string]*Buffer
	byID    map[string]*Buffer
	nowFunc func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:   make(map[string]*Buffer),
		byID:    make(map[string]*Buffer),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) now() time.Time {
	return s.nowFunc()
}

// Append adds a fragment, creating the buffer if absent.
func (s *MemoryStore) Append(ctx context.Context, key models.ConversationKey, text string, quiet time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	frag := Fragment{Text: text, ReceivedAt: now}

	buf, ok := s.byKey[key.String()]
	if !ok {
		buf = &Buffer{
			ID:        uuid.NewString(),
			Key:       key,
			Fragments: []Fragment{frag},
			ExpiresAt: now.Add(quiet),
			CreatedAt: now,
		}
		s.byKey[key.String()] = buf
		s.byID[buf.ID] = buf
		return 1, nil
	}

	buf.Fragments = append(buf.Fragments, frag)
	buf.ExpiresAt = now.Add(quiet)
	return len(buf.Fragments), nil
}

// Open returns the buffer for key.
func (s *MemoryStore) Open(ctx context.Context, key models.ConversationKey) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.byKey[key.String()]
	if !ok {
		return nil, ErrBufferNotFound
	}
	cp := cloneBuffer(buf)
	return &cp, nil
}

// Get returns the buffer with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.byID[id]
	if !ok {
		return nil, ErrBufferNotFound
	}
	cp := cloneBuffer(buf)
	return &cp, nil
}

// Due returns expired buffers with no live lease.
func (s *MemoryStore) Due(ctx context.Context, now time.Time) ([]Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Buffer
	for _, buf := range s.byKey {
		if buf.ExpiresAt.After(now) {
			continue
		}
		if buf.ProcessingUntil != nil && buf.ProcessingUntil.After(now) {
			continue
		}
		due = append(due, cloneBuffer(buf))
	}
	return due, nil
}

// TryClaim acquires the lease if the buffer is due and the lease is
// absent or stale. A buffer refreshed by a late fragment is no longer
// due and cannot be claimed until its quiet period ends again.
func (s *MemoryStore) TryClaim(ctx context.Context, id string, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	now := s.now()
	if buf.ExpiresAt.After(now) {
		return false, nil
	}
	if buf.ProcessingUntil != nil && buf.ProcessingUntil.After(now) {
		return false, nil
	}
	until := now.Add(lease)
	buf.ProcessingUntil = &until
	return true, nil
}

// Delete removes the buffer record.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.byID[id]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	delete(s.byKey, buf.Key.String())
	return nil
}

func cloneBuffer(buf *Buffer) Buffer {
	cp := *buf
	cp.Fragments = make([]Fragment, len(buf.Fragments))
	copy(cp.Fragments, buf.Fragments)
	if buf.ProcessingUntil != nil {
		t := *buf.ProcessingUntil
		cp.ProcessingUntil = &t
	}
	return cp
}
