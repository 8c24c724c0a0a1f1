package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/internal/storage"
	"github.com/efficore/agentcore/internal/tools"
	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

// scriptedProvider returns canned completions in order, then repeats
// the last one.
type scriptedProvider struct {
	name    string
	script  []*Completion
	errs    []error
	calls   int
	lastReq *Request
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, req *Request) (*Completion, error) {
	p.lastReq = req
	idx := p.calls
	p.calls++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	return p.script[idx], nil
}

func testTenant() *models.TenantContext {
	return &models.TenantContext{
		BusinessID:   "biz-1",
		BusinessName: "Motos del Sur",
		Products: []models.Product{
			{ID: "p1", Name: "Moto GT 250", Price: 3500, ImageURL: "https://cdn.example.com/gt250.jpg"},
		},
		MediaResources: map[string]string{
			"catalogo": "https://cdn.example.com/catalogo.pdf",
		},
	}
}

func newTestEngine(t *testing.T, primary, advanced Provider) (*Engine, *storage.MemoryStores) {
	t.Helper()
	stores := storage.NewMemoryStores()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	eng := New(primary, advanced, Collaborators{}, DefaultConfig(), stores.Stores(), logger, metrics)
	return eng, stores
}

func engineKey() models.ConversationKey {
	return models.ConversationKey{TenantID: "tenant-1", ContactID: "contact-1"}
}

func TestRunPlainTextReply(t *testing.T) {
	provider := &scriptedProvider{name: "primary", script: []*Completion{
		{Text: "¡Hola! ¿En qué te ayudo?", Usage: usage.Usage{PromptTokens: 100, CompletionTokens: 20}},
	}}
	eng, stores := newTestEngine(t, provider, nil)

	reply, err := eng.Run(context.Background(), engineKey(), "Hola", testTenant())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text != "¡Hola! ¿En qué te ayudo?" {
		t.Errorf("reply = %q", reply.Text)
	}
	if reply.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", reply.Iterations)
	}
	if reply.Usage.Total() != 120 {
		t.Errorf("usage total = %d, want 120", reply.Usage.Total())
	}

	usages := stores.Usages()
	if len(usages) != 1 || usages[0].Provider != "primary" {
		t.Errorf("usage records = %+v, want one primary record", usages)
	}
}

func TestRunToolLoop(t *testing.T) {
	provider := &scriptedProvider{name: "primary", script: []*Completion{
		{
			ToolCalls: []models.ToolCall{{ID: "call-1", Name: "send_file", Arguments: `{"resource":"catalogo"}`}},
			Usage:     usage.Usage{PromptTokens: 200, CompletionTokens: 10},
		},
		{Text: "Te envié el catálogo", Usage: usage.Usage{PromptTokens: 250, CompletionTokens: 15}},
	}}
	eng, stores := newTestEngine(t, provider, nil)

	reply, err := eng.Run(context.Background(), engineKey(), "¿Tienes catálogo?", testTenant())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text != "Te envié el catálogo" {
		t.Errorf("reply = %q", reply.Text)
	}
	if reply.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", reply.Iterations)
	}
	if len(reply.Media) != 1 || reply.Media[0].URL != "https://cdn.example.com/catalogo.pdf" {
		t.Errorf("media = %+v, want the catalog attachment", reply.Media)
	}
	if reply.Usage.PromptTokens != 450 {
		t.Errorf("prompt tokens = %d, want 450 accumulated", reply.Usage.PromptTokens)
	}

	// The second call must carry the tool round-trip.
	msgs := provider.lastReq.Messages
	if len(msgs) < 3 {
		t.Fatalf("second request has %d messages, want user + assistant + tool", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleTool || len(last.ToolResults) != 1 || last.ToolResults[0].ToolCallID != "call-1" {
		t.Errorf("last message = %+v, want tool results keyed to call-1", last)
	}

	calls := stores.ToolCalls()
	if len(calls) != 1 || calls[0].Tool != "send_file" {
		t.Errorf("tool log = %+v, want one send_file entry", calls)
	}
}

type nilKnowledge struct{}

func (nilKnowledge) SearchKnowledge(_ context.Context, _, _ string, _ int) ([]tools.KnowledgeDoc, string, error) {
	return nil, "", nil
}

type nilCatalog struct{}

func (nilCatalog) Search(_ context.Context, _, _ string, _ int) ([]models.Product, error) {
	return nil, nil
}

func TestRunRegistersKnowledgeSearchUngated(t *testing.T) {
	provider := &scriptedProvider{name: "primary", script: []*Completion{
		{Text: "ok", Usage: usage.Usage{PromptTokens: 10, CompletionTokens: 1}},
	}}
	stores := storage.NewMemoryStores()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	collab := Collaborators{Knowledge: nilKnowledge{}, Search: nilCatalog{}}
	eng := New(provider, nil, collab, DefaultConfig(), stores.Stores(), logger, metrics)

	// The single-product catalog keeps search_product out, but the
	// knowledge base stays reachable regardless of catalog size.
	if _, err := eng.Run(context.Background(), engineKey(), "¿Hacen envíos?", testTenant()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var names []string
	for _, tool := range provider.lastReq.Tools {
		names = append(names, tool.Name())
	}
	hasKnowledge, hasCatalog := false, false
	for _, n := range names {
		if n == "search_knowledge" {
			hasKnowledge = true
		}
		if n == "search_product" {
			hasCatalog = true
		}
	}
	if !hasKnowledge {
		t.Errorf("tools = %v, want search_knowledge available", names)
	}
	if hasCatalog {
		t.Errorf("tools = %v, want search_product gated out for a small catalog", names)
	}
}

func TestRunTerminatesAtIterationCeiling(t *testing.T) {
	provider := &scriptedProvider{name: "primary", script: []*Completion{
		{ToolCalls: []models.ToolCall{{ID: "c", Name: "send_file", Arguments: `{"resource":"catalogo"}`}}},
	}}
	eng, _ := newTestEngine(t, provider, nil)

	reply, err := eng.Run(context.Background(), engineKey(), "hola", testTenant())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Iterations != DefaultConfig().MaxIterations {
		t.Errorf("iterations = %d, want ceiling %d", reply.Iterations, DefaultConfig().MaxIterations)
	}
	if reply.Text == "" {
		t.Error("ceiling breach produced an empty reply")
	}
	if provider.calls != DefaultConfig().MaxIterations {
		t.Errorf("provider called %d times, want %d", provider.calls, DefaultConfig().MaxIterations)
	}
}

func TestRunProviderFailureYieldsFallback(t *testing.T) {
	provider := &scriptedProvider{
		name: "primary",
		errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")},
	}
	eng, _ := newTestEngine(t, provider, nil)

	reply, err := eng.Run(context.Background(), engineKey(), "hola", testTenant())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text == "" {
		t.Error("provider failure left the user unanswered")
	}
}

func TestRunAdvancedModeDegradesToPrimary(t *testing.T) {
	primary := &scriptedProvider{name: "primary", script: []*Completion{{Text: "respuesta primaria"}}}
	advanced := &scriptedProvider{name: "advanced", errs: []error{errors.New("unavailable")}}
	eng, _ := newTestEngine(t, primary, advanced)

	tenant := testTenant()
	tenant.AdvancedMode = true

	reply, err := eng.Run(context.Background(), engineKey(), "hola", tenant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text != "respuesta primaria" {
		t.Errorf("reply = %q, want the primary pathway answer", reply.Text)
	}
	if advanced.calls != 1 || primary.calls != 1 {
		t.Errorf("calls advanced=%d primary=%d, want 1 and 1", advanced.calls, primary.calls)
	}
}

func TestRunReplaysHistoryChronologically(t *testing.T) {
	provider := &scriptedProvider{name: "primary", script: []*Completion{{Text: "ok"}}}
	eng, stores := newTestEngine(t, provider, nil)
	ctx := context.Background()

	stores.AppendInbound(ctx, engineKey(), "primer mensaje")
	stores.AppendOutbound(ctx, storage.OutboundEntry{Key: engineKey(), Text: "primera respuesta"})

	if _, err := eng.Run(ctx, engineKey(), "segundo mensaje", testTenant()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := provider.lastReq.Messages
	if len(msgs) != 3 {
		t.Fatalf("request has %d messages, want 3", len(msgs))
	}
	if msgs[0].Content != "primer mensaje" || msgs[1].Content != "primera respuesta" || msgs[2].Content != "segundo mensaje" {
		t.Errorf("history out of order: %+v", msgs)
	}
}
