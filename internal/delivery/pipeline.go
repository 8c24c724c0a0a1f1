package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/efficore/agentcore/internal/channel"
	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/internal/storage"
	"github.com/efficore/agentcore/pkg/models"
)

// Status summarizes a delivery.
type Status string

const (
	// StatusOK means the text and all media went out.
	StatusOK Status = "ok"

	// StatusPartial means the text went out but one or more media
	// items failed.
	StatusPartial Status = "partial"

	// StatusFailed means the primary text could not be sent.
	StatusFailed Status = "failed"
)

// Outcome reports what a delivery actually sent.
type Outcome struct {
	Status      Status
	Chunks      int
	SentMedia   []models.MediaItem
	FailedMedia []models.MediaItem
}

// Config holds the pipeline tunables.
type Config struct {
	// SplitEnabled turns on chunked sending with typing delays. When
	// off the text goes out as one message.
	SplitEnabled bool `yaml:"split_enabled"`

	// ChunkSize is the maximum characters per chunk.
	ChunkSize int `yaml:"chunk_size"`

	// MediaBaseURL resolves short content codes found in reply text.
	MediaBaseURL string `yaml:"media_base_url"`

	Delays DelayConfig `yaml:"delays"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		SplitEnabled: true,
		ChunkSize:    defaultChunkSize,
		Delays:       DefaultDelayConfig(),
	}
}

// Pipeline sends one reply: text chunks first, then media, then a
// single outbound log entry recording what was actually delivered.
type Pipeline struct {
	adapter   channel.Adapter
	messages  storage.MessageLog
	extractor *Extractor
	splitter  *Splitter
	delayer   *Delayer
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics

	sleep func(ctx context.Context, d time.Duration)
}

// NewPipeline creates a delivery pipeline.
func NewPipeline(adapter channel.Adapter, messages storage.MessageLog, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Pipeline{
		adapter:   adapter,
		messages:  messages,
		extractor: NewExtractor(cfg.MediaBaseURL),
		splitter:  NewSplitter(cfg.ChunkSize),
		delayer:   NewDelayer(cfg.Delays),
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		sleep:     sleepCtx,
	}
}

// SetSleep replaces the inter-message wait. Tests use it to make
// deliveries instantaneous.
func (p *Pipeline) SetSleep(fn func(ctx context.Context, d time.Duration)) {
	if fn != nil {
		p.sleep = fn
	}
}

// Deliver sends the reply text and media to the target. A failed text
// send fails the whole delivery; a failed media item is logged and
// skipped. extraMedia carries tool-produced attachments delivered after
// any media extracted from the text.
func (p *Pipeline) Deliver(ctx context.Context, key models.ConversationKey, target channel.Target, text string, extraMedia []models.MediaItem) (*Outcome, error) {
	if err := p.adapter.MarkRead(ctx, target); err != nil {
		p.logger.Debug("mark-read failed", "conversation", key.String(), "error", err)
	}

	clean, media := p.extractor.Extract(text)
	media = appendUniqueMedia(media, extraMedia)
	clean = StripMarkdown(clean)

	chunks := []string{clean}
	if p.cfg.SplitEnabled {
		chunks = p.splitter.Split(clean)
	}

	outcome := &Outcome{Status: StatusOK}
	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		p.sleep(ctx, p.delayer.ForText(len(chunk)))
		if err := p.adapter.SendText(ctx, target, chunk); err != nil {
			// The text is the primary payload; without it the media
			// would arrive with no context.
			outcome.Status = StatusFailed
			p.metrics.Deliveries.WithLabelValues(string(StatusFailed)).Inc()
			return outcome, fmt.Errorf("failed to send text chunk: %w", err)
		}
		outcome.Chunks++
	}

	for _, item := range media {
		p.sleep(ctx, p.delayer.ForMedia())
		if err := p.adapter.SendMedia(ctx, target, item); err != nil {
			p.logger.Warn("media send failed, skipping item",
				"conversation", key.String(), "url", item.URL, "error", err)
			outcome.FailedMedia = append(outcome.FailedMedia, item)
			continue
		}
		outcome.SentMedia = append(outcome.SentMedia, item)
	}
	if len(outcome.FailedMedia) > 0 {
		outcome.Status = StatusPartial
	}

	entry := storage.OutboundEntry{
		ID:          uuid.NewString(),
		Key:         key,
		Channel:     target.Channel,
		Text:        clean,
		SentMedia:   outcome.SentMedia,
		FailedMedia: outcome.FailedMedia,
		CreatedAt:   time.Now(),
	}
	if err := p.messages.AppendOutbound(ctx, entry); err != nil {
		p.logger.Error("failed to log outbound message",
			"conversation", key.String(), "error", err)
	}

	p.metrics.Deliveries.WithLabelValues(string(outcome.Status)).Inc()
	return outcome, nil
}

func appendUniqueMedia(base, extra []models.MediaItem) []models.MediaItem {
	seen := make(map[string]struct{}, len(base))
	for _, item := range base {
		seen[item.URL] = struct{}{}
	}
	for _, item := range extra {
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		base = append(base, item)
	}
	return base
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
