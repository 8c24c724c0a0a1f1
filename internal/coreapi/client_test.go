package coreapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/efficore/agentcore/internal/tools"
	"github.com/efficore/agentcore/pkg/models"
)

func TestSnapshotDecodesTenantAndTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent/context" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"tenant": {"business_id":"biz-1","business_name":"Motos Lima","objective":"sales"},
			"channel": "whatsapp",
			"address": "+51999888777"
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, InternalSecret: "s"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	tenant, target, err := client.Snapshot(context.Background(), models.ConversationKey{TenantID: "biz-1", ContactID: "lead-1"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if tenant.BusinessName != "Motos Lima" || tenant.Objective != models.ObjectiveSales {
		t.Errorf("tenant = %+v", tenant)
	}
	if target.Channel != "whatsapp" || target.Address != "+51999888777" {
		t.Errorf("target = %+v", target)
	}
}

func TestCreatePaymentLinkSendsInternalSecret(t *testing.T) {
	var gotSecret, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Internal-Secret")
		gotPath = r.URL.Path
		w.Write([]byte(`{"paymentUrl":"https://pay.example.com/x1","shortCode":"x1"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, InternalSecret: "s3cr3t"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	link, err := client.CreatePaymentLink(context.Background(), tools.PaymentLinkRequest{
		BusinessID: "biz-1", LeadID: "lead-1", ProductID: "prod-1", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("CreatePaymentLink: %v", err)
	}
	if gotSecret != "s3cr3t" {
		t.Errorf("X-Internal-Secret = %q, want s3cr3t", gotSecret)
	}
	if gotPath != "/orders/create-payment-link" {
		t.Errorf("path = %q", gotPath)
	}
	if link.URL != "https://pay.example.com/x1" || link.ShortCode != "x1" {
		t.Errorf("link = %+v", link)
	}
}

func TestSearchKnowledgeEmbedsBusinessInPath(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{
			"results": [{"title":"Garantía","content":"1 año en todas las motos"}],
			"context": "1 año en todas las motos"
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, InternalSecret: "s"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	docs, contextText, err := client.SearchKnowledge(context.Background(), "biz-1", "garantía", 3)
	if err != nil {
		t.Fatalf("SearchKnowledge: %v", err)
	}
	if gotPath != "/knowledge/biz-1/search" {
		t.Errorf("path = %q, want /knowledge/biz-1/search", gotPath)
	}
	if !strings.Contains(gotBody, `"limit":3`) {
		t.Errorf("body = %s, want limit forwarded", gotBody)
	}
	if len(docs) != 1 || docs[0].Title != "Garantía" {
		t.Errorf("docs = %+v, want one decoded document", docs)
	}
	if contextText != "1 año en todas las motos" {
		t.Errorf("context = %q", contextText)
	}
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"product out of stock"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, InternalSecret: "s"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.CreatePaymentLink(context.Background(), tools.PaymentLinkRequest{})
	if err == nil || !strings.Contains(err.Error(), "product out of stock") {
		t.Errorf("err = %v, want API error message", err)
	}
}

func TestApplyCRMUpdateRoutesByAction(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, InternalSecret: "s"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.ApplyCRMUpdate(context.Background(), tools.CRMUpdate{Action: tools.CRMUpdateStage}); err != nil {
		t.Fatalf("ApplyCRMUpdate: %v", err)
	}
	if gotPath != "/crm/stages/update" {
		t.Errorf("path = %q, want /crm/stages/update", gotPath)
	}

	if err := client.ApplyCRMUpdate(context.Background(), tools.CRMUpdate{Action: "bogus"}); err == nil {
		t.Error("unknown action accepted")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(Config{InternalSecret: "s"}); err == nil {
		t.Error("missing base URL accepted")
	}
	if _, err := NewClient(Config{BaseURL: "http://x"}); err == nil {
		t.Error("missing secret accepted")
	}
}
