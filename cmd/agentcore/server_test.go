package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efficore/agentcore/internal/service"
)

type stubCore struct {
	result *service.InboundResult
	err    error

	gotTenant  string
	gotContact string
	gotText    string
	gotQuiet   time.Duration
}

func (s *stubCore) HandleInboundFragment(ctx context.Context, tenantID, contactID, text string, quiet time.Duration) (*service.InboundResult, error) {
	s.gotTenant = tenantID
	s.gotContact = contactID
	s.gotText = text
	s.gotQuiet = quiet
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestServer(core *stubCore, secret string) *apiServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newAPIServer(core, secret, logger)
}

func postJSON(t *testing.T, h http.Handler, body, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Internal-Secret", secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleInboundBuffers(t *testing.T) {
	core := &stubCore{result: &service.InboundResult{Action: service.ActionBuffered, Fragments: 2}}
	srv := newTestServer(core, "s3cr3t")

	rec := postJSON(t, srv.routes(), `{"businessId":"t1","leadId":"c1","text":"Hola"}`, "s3cr3t")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res service.InboundResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Action != service.ActionBuffered || res.Fragments != 2 {
		t.Errorf("result = %+v", res)
	}
	if core.gotTenant != "t1" || core.gotContact != "c1" || core.gotText != "Hola" {
		t.Errorf("core got %q %q %q", core.gotTenant, core.gotContact, core.gotText)
	}
	if core.gotQuiet != -1 {
		t.Errorf("quiet = %s, want configured default sentinel", core.gotQuiet)
	}
}

func TestHandleInboundQuietOverrides(t *testing.T) {
	core := &stubCore{result: &service.InboundResult{Action: service.ActionBuffered, Fragments: 1}}
	srv := newTestServer(core, "")

	postJSON(t, srv.routes(), `{"businessId":"t1","leadId":"c1","text":"Hola","quietMs":1500}`, "")
	if core.gotQuiet != 1500*time.Millisecond {
		t.Errorf("quiet = %s", core.gotQuiet)
	}

	postJSON(t, srv.routes(), `{"businessId":"t1","leadId":"c1","text":"Hola","immediate":true}`, "")
	if core.gotQuiet != 0 {
		t.Errorf("immediate quiet = %s", core.gotQuiet)
	}
}

func TestHandleInboundRejectsBadSecret(t *testing.T) {
	core := &stubCore{result: &service.InboundResult{Action: service.ActionBuffered}}
	srv := newTestServer(core, "s3cr3t")

	rec := postJSON(t, srv.routes(), `{"businessId":"t1","leadId":"c1","text":"Hola"}`, "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if core.gotTenant != "" {
		t.Error("core must not be reached without a valid secret")
	}
}

func TestHandleInboundMapsRejection(t *testing.T) {
	core := &stubCore{err: service.ErrRejected}
	srv := newTestServer(core, "")

	rec := postJSON(t, srv.routes(), `{"businessId":"","leadId":"c1","text":"Hola"}`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubCore{}, "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
