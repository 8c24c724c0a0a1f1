// Package coreapi is the HTTP client for the platform's internal API,
// which owns orders, followups, CRM records, and the product index. It
// backs the built-in tool collaborators.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/efficore/agentcore/internal/channel"
	"github.com/efficore/agentcore/internal/tools"
	"github.com/efficore/agentcore/pkg/models"
)

// Config holds the client settings.
type Config struct {
	// BaseURL is the internal API root, e.g. http://core-api:4000.
	BaseURL string `yaml:"base_url"`

	// InternalSecret authenticates this service to the internal API.
	InternalSecret string `yaml:"internal_secret"`

	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// Client talks to the internal API. It implements the payment,
// followup, CRM, scheduling, and catalog-search tool collaborators.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a core API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("coreapi: base URL is required")
	}
	if cfg.InternalSecret == "" {
		return nil, fmt.Errorf("coreapi: internal secret is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Snapshot fetches the tenant context and channel target for one
// conversation. A failure here rejects the inbound fragment before
// anything is buffered.
func (c *Client) Snapshot(ctx context.Context, key models.ConversationKey) (*models.TenantContext, channel.Target, error) {
	var resp struct {
		Tenant  models.TenantContext `json:"tenant"`
		Channel string               `json:"channel"`
		Address string               `json:"address"`
	}
	req := map[string]string{"businessId": key.TenantID, "leadId": key.ContactID}
	if err := c.post(ctx, "/agent/context", req, &resp); err != nil {
		return nil, channel.Target{}, err
	}
	return &resp.Tenant, channel.Target{Channel: resp.Channel, Address: resp.Address}, nil
}

// CreatePaymentLink asks the orders service for a checkout link.
func (c *Client) CreatePaymentLink(ctx context.Context, req tools.PaymentLinkRequest) (tools.PaymentLink, error) {
	var link tools.PaymentLink
	if err := c.post(ctx, "/orders/create-payment-link", req, &link); err != nil {
		return tools.PaymentLink{}, err
	}
	return link, nil
}

// ScheduleFollowup registers a delayed outbound message.
func (c *Client) ScheduleFollowup(ctx context.Context, req tools.FollowupRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/followups/schedule", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ApplyCRMUpdate routes a CRM mutation to the matching endpoint.
func (c *Client) ApplyCRMUpdate(ctx context.Context, update tools.CRMUpdate) error {
	path := map[string]string{
		tools.CRMSetTag:         "/crm/tags/assign",
		tools.CRMUpdateStage:    "/crm/stages/update",
		tools.CRMRegisterIntent: "/crm/intents/register",
		tools.CRMAddNote:        "/crm/notes/add",
	}[update.Action]
	if path == "" {
		return fmt.Errorf("coreapi: unknown crm action %q", update.Action)
	}
	return c.post(ctx, path, update, nil)
}

// CheckAvailability lists free appointment slots for a date.
func (c *Client) CheckAvailability(ctx context.Context, businessID, date string) ([]string, error) {
	var resp struct {
		Slots []string `json:"slots"`
	}
	req := map[string]string{"businessId": businessID, "date": date}
	if err := c.post(ctx, "/appointments/availability", req, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// CreateAppointment books a slot and returns the confirmation id.
func (c *Client) CreateAppointment(ctx context.Context, req tools.AppointmentRequest) (string, error) {
	var resp struct {
		ConfirmationID string `json:"confirmationId"`
	}
	if err := c.post(ctx, "/appointments/create", req, &resp); err != nil {
		return "", err
	}
	return resp.ConfirmationID, nil
}

// SearchKnowledge queries the business knowledge base and returns the
// matching documents plus the pre-assembled context text.
func (c *Client) SearchKnowledge(ctx context.Context, businessID, query string, limit int) ([]tools.KnowledgeDoc, string, error) {
	var resp struct {
		Results []tools.KnowledgeDoc `json:"results"`
		Context string               `json:"context"`
	}
	req := map[string]any{"query": query, "limit": limit}
	if err := c.post(ctx, "/knowledge/"+businessID+"/search", req, &resp); err != nil {
		return nil, "", err
	}
	return resp.Results, resp.Context, nil
}

// Search queries the product index.
func (c *Client) Search(ctx context.Context, businessID, query string, limit int) ([]models.Product, error) {
	var resp struct {
		Products []models.Product `json:"products"`
	}
	req := map[string]any{"businessId": businessID, "query": query, "maxResults": limit}
	if err := c.post(ctx, "/products/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("coreapi: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("coreapi: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", c.cfg.InternalSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("coreapi: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("coreapi: %s: %s", path, apiErr.Error)
		}
		return fmt.Errorf("coreapi: %s: HTTP %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coreapi: %s: failed to decode response: %w", path, err)
	}
	return nil
}
