package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/efficore/agentcore/internal/service"
)

// fragmentHandler is the slice of the core the HTTP surface needs.
type fragmentHandler interface {
	HandleInboundFragment(ctx context.Context, tenantID, contactID, text string, quiet time.Duration) (*service.InboundResult, error)
}

// apiServer exposes the inbound-fragment endpoint and health checks.
type apiServer struct {
	core   fragmentHandler
	secret string
	logger *slog.Logger
}

func newAPIServer(core fragmentHandler, secret string, logger *slog.Logger) *apiServer {
	return &apiServer{core: core, secret: secret, logger: logger}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.handleInbound)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type inboundRequest struct {
	BusinessID string `json:"businessId"`
	LeadID     string `json:"leadId"`
	Text       string `json:"text"`

	// QuietMS overrides the configured coalescing window when set.
	// Zero with Immediate responds synchronously.
	QuietMS   *int64 `json:"quietMs,omitempty"`
	Immediate bool   `json:"immediate,omitempty"`
}

func (s *apiServer) handleInbound(w http.ResponseWriter, r *http.Request) {
	if s.secret != "" && r.Header.Get("X-Internal-Secret") != s.secret {
		writeError(w, http.StatusUnauthorized, "invalid internal secret")
		return
	}

	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	quiet := time.Duration(-1)
	switch {
	case req.Immediate:
		quiet = 0
	case req.QuietMS != nil:
		quiet = time.Duration(*req.QuietMS) * time.Millisecond
	}

	res, err := s.core.HandleInboundFragment(r.Context(), req.BusinessID, req.LeadID, req.Text, quiet)
	if err != nil {
		if errors.Is(err, service.ErrRejected) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("inbound fragment failed",
			"business_id", req.BusinessID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": version})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
