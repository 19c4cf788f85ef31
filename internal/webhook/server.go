// Package webhook receives transcript payloads from the recording service
// and hands them to the same merge path the daily scan uses.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"meetsync/internal/models"
	"meetsync/internal/vault"
)

// tokenHeader carries the optional shared secret the delivering service is
// configured with.
const tokenHeader = "X-Webhook-Token"

// Processor merges one transcript payload into the vault.
type Processor interface {
	ProcessTranscript(ctx context.Context, p *models.TranscriptPayload) error
}

// Server is the webhook HTTP surface: the transcript ingress plus the
// liveness and readiness endpoints a supervisor expects.
type Server struct {
	logger    *slog.Logger
	processor Processor
	token     string
	ready     func() bool
}

// NewServer creates a Server. An empty token disables the shared-secret
// check. ready may be nil, in which case readiness always passes.
func NewServer(logger *slog.Logger, processor Processor, token string, ready func() bool) *Server {
	return &Server{logger: logger, processor: processor, token: token, ready: ready}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/livez", s.handleLivez)
	mux.HandleFunc("/readyz", s.handleReadyz)
	return mux
}

func (s *Server) handleLivez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running.
	fmt.Fprintf(w, "OK\n")
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintf(w, "OK\n")
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.token != "" && r.Header.Get(tokenHeader) != s.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	logger := s.logger.With("request_id", uuid.NewString())

	var payload models.TranscriptPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn("Rejected malformed webhook payload.", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.EventID == "" {
		http.Error(w, "event_id is required", http.StatusBadRequest)
		return
	}

	if err := s.processor.ProcessTranscript(r.Context(), &payload); err != nil {
		logger.Error("Failed to process webhook payload.", "eventID", payload.EventID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, vault.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, "failed to process payload", status)
		return
	}

	logger.Info("Processed webhook payload.", "eventID", payload.EventID)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK\n")
}
