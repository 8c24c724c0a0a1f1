// Package service wires the conversational core together: inbound
// fragments flow through the coalescing buffer, claimed buffers drain
// into the engine, and replies leave through the delivery pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/efficore/agentcore/internal/buffer"
	"github.com/efficore/agentcore/internal/channel"
	"github.com/efficore/agentcore/internal/delivery"
	"github.com/efficore/agentcore/internal/engine"
	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/internal/storage"
	"github.com/efficore/agentcore/pkg/models"
)

// ErrRejected marks a structured configuration rejection: the fragment
// was refused before any buffering or sending happened.
var ErrRejected = errors.New("service: fragment rejected")

// TenantProvider resolves the tenant snapshot and channel target for a
// conversation. It is the host's configuration surface; a resolution
// failure rejects the fragment early.
type TenantProvider interface {
	Snapshot(ctx context.Context, key models.ConversationKey) (*models.TenantContext, channel.Target, error)
}

// Action reports what happened to an inbound fragment.
type Action string

const (
	// ActionBuffered means the fragment joined an open buffer and a
	// reply will follow after the quiet period.
	ActionBuffered Action = "buffered"

	// ActionResponded means buffering was bypassed and the reply was
	// produced synchronously.
	ActionResponded Action = "responded"

	// ActionQueued means the conversation's buffer is currently claimed
	// by a drain in progress; this fragment will ride a later turn.
	ActionQueued Action = "queued"
)

// InboundResult is the structured answer to the caller of the entry
// point.
type InboundResult struct {
	Action Action `json:"action"`

	// Fragments is the buffer's fragment count after this append.
	Fragments int `json:"fragments"`
}

// Config holds the service tunables.
type Config struct {
	// QuietPeriod is the coalescing window applied when the caller
	// does not override it. Zero disables buffering.
	QuietPeriod time.Duration `yaml:"quiet_period"`

	Buffer buffer.ManagerConfig `yaml:"buffer"`
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		QuietPeriod: 6 * time.Second,
		Buffer:      buffer.DefaultManagerConfig(),
	}
}

// Core is the conversational orchestration core.
type Core struct {
	cfg      Config
	manager  *buffer.Manager
	buffers  buffer.Store
	tenants  TenantProvider
	engine   *engine.Engine
	pipeline *delivery.Pipeline
	messages storage.MessageLog
	logger   *slog.Logger
}

// NewCore assembles the core around its collaborators.
func NewCore(cfg Config, store buffer.Store, tenants TenantProvider, eng *engine.Engine, pipeline *delivery.Pipeline, messages storage.MessageLog, logger *slog.Logger, metrics *observability.Metrics) *Core {
	c := &Core{
		cfg:      cfg,
		buffers:  store,
		tenants:  tenants,
		engine:   eng,
		pipeline: pipeline,
		messages: messages,
		logger:   logger,
	}
	c.manager = buffer.NewManager(store, c.drain, cfg.Buffer, logger, metrics)
	return c
}

// Start launches the buffer sweep.
func (c *Core) Start() error {
	return c.manager.Start()
}

// Stop halts timers and the sweep. Persisted buffers survive for the
// next process.
func (c *Core) Stop() {
	c.manager.Stop()
}

// HandleInboundFragment is the entry point for one raw inbound message
// fragment. Configuration problems are rejected here, before anything
// is buffered or claimed; quiet overrides the configured coalescing
// window when non-negative.
func (c *Core) HandleInboundFragment(ctx context.Context, tenantID, contactID, text string, quiet time.Duration) (*InboundResult, error) {
	key := models.ConversationKey{TenantID: tenantID, ContactID: contactID}
	if !key.Valid() {
		return nil, fmt.Errorf("%w: tenant and contact identifiers are required", ErrRejected)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty fragment", ErrRejected)
	}
	if _, _, err := c.tenants.Snapshot(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	if quiet < 0 {
		quiet = c.cfg.QuietPeriod
	}

	count, err := c.manager.Enqueue(ctx, key, text, quiet)
	if err != nil {
		return nil, err
	}

	action := ActionBuffered
	switch {
	case quiet <= 0:
		action = ActionResponded
	default:
		if buf, err := c.buffers.Open(ctx, key); err == nil &&
			buf.ProcessingUntil != nil && buf.ProcessingUntil.After(time.Now()) {
			action = ActionQueued
		}
	}
	return &InboundResult{Action: action, Fragments: count}, nil
}

// drain handles one claimed buffer: load the tenant snapshot, run the
// engine, deliver the reply. Past this point failures are logged, never
// retried; the buffer record is already gone.
func (c *Core) drain(ctx context.Context, key models.ConversationKey, text string) error {
	tenant, target, err := c.tenants.Snapshot(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to resolve tenant for drain: %w", err)
	}

	reply, err := c.engine.Run(ctx, key, text, tenant)
	if err != nil {
		return fmt.Errorf("engine run failed: %w", err)
	}

	// Logged after the run so the engine's history window holds prior
	// turns only; the current text rides the request itself.
	if err := c.messages.AppendInbound(ctx, key, text); err != nil {
		c.logger.Warn("failed to log inbound turn",
			"conversation", key.String(), "error", err)
	}

	if _, err := c.pipeline.Deliver(ctx, key, target, reply.Text, reply.Media); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	return nil
}

// Sweep exposes the durable sweep for operational triggers.
func (c *Core) Sweep() {
	c.manager.Sweep()
}
