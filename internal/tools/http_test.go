package tools

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/efficore/agentcore/pkg/models"
)

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		params   map[string]any
		want     string
	}{
		{
			"string value",
			"https://api.example.com/orders/{{orderId}}",
			map[string]any{"orderId": "abc-1"},
			"https://api.example.com/orders/abc-1",
		},
		{
			"numeric value",
			`{"qty": {{quantity}}}`,
			map[string]any{"quantity": float64(3)},
			`{"qty": 3}`,
		},
		{
			"unknown placeholder kept",
			"Bearer {{token}}",
			map[string]any{},
			"Bearer {{token}}",
		},
		{
			"multiple placeholders",
			"{{a}}-{{b}}-{{a}}",
			map[string]any{"a": "x", "b": "y"},
			"x-y-x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := interpolate(tt.template, tt.params); got != tt.want {
				t.Errorf("interpolate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPToolPostInterpolatesBody(t *testing.T) {
	var gotBody string
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotHeader = r.Header.Get("X-Customer")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"created"}`))
	}))
	defer srv.Close()

	tool, err := NewHTTPTool(models.HTTPToolConfig{
		Name:    "create_order",
		Method:  "POST",
		URL:     srv.URL + "/orders",
		Headers: map[string]string{"X-Customer": "{{customer}}"},
		Body:    `{"item": "{{item}}", "customer": "{{customer}}"}`,
	})
	if err != nil {
		t.Fatalf("NewHTTPTool: %v", err)
	}

	res, err := tool.Execute(testConversationCtx(), json.RawMessage(`{"item":"moto","customer":"ana"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("result = %+v, want success", res)
	}
	if gotBody != `{"item": "moto", "customer": "ana"}` {
		t.Errorf("body = %q, placeholders not interpolated", gotBody)
	}
	if gotHeader != "ana" {
		t.Errorf("header = %q, want interpolated customer", gotHeader)
	}
	if res.Content != `{"status":"created"}` {
		t.Errorf("content = %q, want JSON body", res.Content)
	}
}

func TestHTTPToolErrorStatusBecomesErrorResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	tool, err := NewHTTPTool(models.HTTPToolConfig{Name: "flaky", Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPTool: %v", err)
	}

	res, err := tool.Execute(testConversationCtx(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "502") {
		t.Errorf("result = %+v, want error result mentioning the status", res)
	}
}

func TestHTTPToolSchemaValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tool, err := NewHTTPTool(models.HTTPToolConfig{
		Name:   "strict",
		Method: "POST",
		URL:    srv.URL,
		Schema: `{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`,
	})
	if err != nil {
		t.Fatalf("NewHTTPTool: %v", err)
	}

	res, err := tool.Execute(testConversationCtx(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Error("arguments missing a required field passed validation")
	}

	res, err = tool.Execute(testConversationCtx(), json.RawMessage(`{"city":"Lima"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Errorf("valid arguments rejected: %+v", res)
	}
}

func TestHTTPToolRejectsUnsupportedMethod(t *testing.T) {
	tool, err := NewHTTPTool(models.HTTPToolConfig{Name: "odd", Method: "TRACE", URL: "http://example.com"})
	if err != nil {
		t.Fatalf("NewHTTPTool: %v", err)
	}
	res, err := tool.Execute(testConversationCtx(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Error("unsupported method accepted")
	}
}
