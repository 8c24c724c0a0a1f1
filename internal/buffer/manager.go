package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/pkg/models"
)

// DrainFunc receives the coalesced user turn for a conversation after
// the quiet period elapsed and the buffer was claimed. A drain runs at
// most once per claim; its error is logged, never retried.
type DrainFunc func(ctx context.Context, key models.ConversationKey, text string) error

// ManagerConfig holds tunables for the buffer manager.
type ManagerConfig struct {
	// Lease is how long a claim on a buffer stays exclusive. It must
	// comfortably exceed the longest expected drain.
	Lease time.Duration

	// SweepInterval is how often the durable sweep looks for expired
	// buffers missed by in-memory timers.
	SweepInterval time.Duration
}

// DefaultManagerConfig returns the manager defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Lease:         2 * time.Minute,
		SweepInterval: 30 * time.Second,
	}
}

func (c *ManagerConfig) sanitize() {
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Manager coalesces inbound fragments per conversation and drains each
// buffer exactly once per claim.
//
// Timers are an in-process latency optimization: the process that saw
// the last fragment usually fires the drain right when the quiet period
// ends. The periodic sweep drains buffers whose timer died with its
// process, so correctness never depends on the timer map.
type Manager struct {
	store   Store
	drain   DrainFunc
	cfg     ManagerConfig
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	cron    *cron.Cron
	nowFunc func() time.Time
}

// NewManager creates a buffer manager draining into fn.
func NewManager(store Store, fn DrainFunc, cfg ManagerConfig, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	cfg.sanitize()
	return &Manager{
		store:   store,
		drain:   fn,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		timers:  make(map[string]*time.Timer),
		nowFunc: time.Now,
	}
}

// Start begins the periodic durable sweep.
func (m *Manager) Start() error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", m.cfg.SweepInterval)
	if _, err := c.AddFunc(spec, m.Sweep); err != nil {
		return fmt.Errorf("failed to schedule buffer sweep: %w", err)
	}
	c.Start()
	m.cron = c
	return nil
}

// Stop cancels pending timers and halts the sweep. Buffers already
// persisted remain in the store for another process to sweep.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	for key, t := range m.timers {
		t.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()

	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}

// Enqueue buffers one inbound fragment for key and arms the quiet-period
// timer. It returns the buffer's fragment count after the append.
//
// A non-positive quiet period bypasses buffering: the fragment drains
// synchronously as its own turn and the count is always 1.
func (m *Manager) Enqueue(ctx context.Context, key models.ConversationKey, text string, quiet time.Duration) (int, error) {
	if !key.Valid() {
		return 0, fmt.Errorf("buffer: invalid conversation key %q", key)
	}

	if quiet <= 0 {
		if err := m.drain(ctx, key, text); err != nil {
			m.metrics.Drains.WithLabelValues("error").Inc()
			return 0, fmt.Errorf("failed to drain immediate fragment: %w", err)
		}
		m.metrics.Drains.WithLabelValues("ok").Inc()
		return 1, nil
	}

	count, err := m.store.Append(ctx, key, text, quiet)
	if err != nil {
		return 0, err
	}
	m.metrics.FragmentsBuffered.WithLabelValues(key.TenantID).Inc()
	m.armTimer(key, quiet)
	return count, nil
}

// armTimer resets the per-key timer to fire after quiet. Each fragment
// pushes the deadline forward, matching the durable ExpiresAt.
func (m *Manager) armTimer(key models.ConversationKey, quiet time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	id := key.String()
	if t, ok := m.timers[id]; ok {
		t.Stop()
	} else {
		m.metrics.ActiveBuffers.Inc()
	}
	m.timers[id] = time.AfterFunc(quiet, func() {
		m.fire(key)
	})
}

// fire handles a local timer expiry. The durable record is re-read
// first; a later fragment may have pushed the deadline past now, in
// which case the timer rearms instead of draining early.
func (m *Manager) fire(key models.ConversationKey) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	delete(m.timers, key.String())
	m.metrics.ActiveBuffers.Dec()
	m.mu.Unlock()

	ctx := context.Background()
	buf, err := m.store.Open(ctx, key)
	if errors.Is(err, ErrBufferNotFound) {
		// Already drained, swept, or never persisted.
		return
	}
	if err != nil {
		m.logger.Error("buffer lookup failed on timer expiry",
			"conversation", key.String(), "error", err)
		return
	}

	now := m.nowFunc()
	if buf.ExpiresAt.After(now) {
		m.armTimer(key, buf.ExpiresAt.Sub(now))
		return
	}

	m.claimAndDrain(ctx, buf.ID)
}

// Sweep drains every expired, unclaimed buffer in the store. It is the
// cross-process safety net behind the in-memory timers.
func (m *Manager) Sweep() {
	ctx := context.Background()
	due, err := m.store.Due(ctx, m.nowFunc())
	if err != nil {
		m.logger.Error("buffer sweep failed", "error", err)
		return
	}
	for _, buf := range due {
		m.claimAndDrain(ctx, buf.ID)
	}
}

// claimAndDrain takes the processing lease, deletes the record, and
// hands the coalesced text to the drain hook. Losing the claim means
// another worker owns this buffer; that is a silent no-op. Past the
// claim point the drain is fire-and-forget.
func (m *Manager) claimAndDrain(ctx context.Context, id string) {
	won, err := m.store.TryClaim(ctx, id, m.cfg.Lease)
	if err != nil {
		m.logger.Error("buffer claim failed", "buffer_id", id, "error", err)
		return
	}
	if !won {
		m.metrics.Claims.WithLabelValues("lost").Inc()
		return
	}
	m.metrics.Claims.WithLabelValues("won").Inc()

	// Fragments appended between the due check and the claim push
	// expires_at forward and make the claim fail; re-read after the
	// claim so anything that slipped in before the lease landed is
	// still part of this turn.
	buf, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrBufferNotFound) {
		return
	}
	if err != nil {
		m.logger.Error("buffer read failed after claim", "buffer_id", id, "error", err)
		return
	}

	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Error("buffer delete failed after claim",
			"buffer_id", id, "conversation", buf.Key.String(), "error", err)
		return
	}

	text := buf.Coalesced()
	if text == "" {
		return
	}

	if err := m.drain(ctx, buf.Key, text); err != nil {
		m.metrics.Drains.WithLabelValues("error").Inc()
		m.logger.Error("buffer drain failed",
			"conversation", buf.Key.String(), "fragments", len(buf.Fragments), "error", err)
		return
	}
	m.metrics.Drains.WithLabelValues("ok").Inc()
}

// PendingTimers returns the number of conversations with an armed
// in-process timer.
func (m *Manager) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
