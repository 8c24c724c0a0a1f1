package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/efficore/agentcore/pkg/models"
)

// HTTPConfig holds the settings for the gateway-backed adapter.
type HTTPConfig struct {
	// BaseURL is the messaging gateway root, e.g. http://gateway:5000.
	BaseURL string `yaml:"base_url"`

	// InternalSecret authenticates this service to the gateway.
	InternalSecret string `yaml:"internal_secret"`

	Timeout time.Duration `yaml:"timeout"`
}

// HTTPAdapter sends through the platform's messaging gateway, which owns
// the actual WhatsApp and web-chat connections.
type HTTPAdapter struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPAdapter creates a gateway-backed adapter.
func NewHTTPAdapter(cfg HTTPConfig) (*HTTPAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("channel: gateway base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SendText delivers one text chunk to the target.
func (a *HTTPAdapter) SendText(ctx context.Context, target Target, text string) error {
	return a.post(ctx, "/messages/send-text", map[string]string{
		"channel": target.Channel,
		"to":      target.Address,
		"text":    text,
	})
}

// SendMedia delivers one media item to the target.
func (a *HTTPAdapter) SendMedia(ctx context.Context, target Target, item models.MediaItem) error {
	return a.post(ctx, "/messages/send-media", map[string]string{
		"channel":  target.Channel,
		"to":       target.Address,
		"type":     string(item.Type),
		"url":      item.URL,
		"fileName": item.FileName,
		"mimeType": item.MimeType,
	})
}

// MarkRead marks the conversation as read on the channel.
func (a *HTTPAdapter) MarkRead(ctx context.Context, target Target) error {
	return a.post(ctx, "/messages/mark-read", map[string]string{
		"channel": target.Channel,
		"to":      target.Address,
	})
}

func (a *HTTPAdapter) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("channel: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("channel: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.InternalSecret != "" {
		req.Header.Set("X-Internal-Secret", a.cfg.InternalSecret)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("channel: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("channel: %s: %s", path, apiErr.Error)
		}
		return fmt.Errorf("channel: %s: HTTP %d", path, resp.StatusCode)
	}
	return nil
}
