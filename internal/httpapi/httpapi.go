// Package httpapi exposes the engine over a JSON HTTP API: message turns per
// session, read-only record listings and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/leadflow/logging"
	"github.com/hupe1980/leadflow/record"
	"github.com/hupe1980/leadflow/schema"
)

// Engine is the conversational surface the API fronts.
type Engine interface {
	HandleMessage(ctx context.Context, sessionID, text string) (string, error)
	ListRecords(ctx context.Context, flow schema.Flow) ([]record.Persisted, error)
	Reset(sessionID string)
}

// Options configure handler construction.
type Options struct {
	// Gatherer serves GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
}

// NewHandler builds the HTTP handler for the engine.
func NewHandler(engine Engine, optFns ...func(o *Options)) http.Handler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &server{engine: engine, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Post("/sessions", s.createSession)
	r.Post("/sessions/{sessionID}/messages", s.postMessage)
	r.Delete("/sessions/{sessionID}", s.resetSession)
	r.Get("/records/{flow}", s.listRecords)

	if opts.Gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}

type server struct {
	engine Engine
	logger logging.Logger
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type recordsResponse struct {
	Flow    string             `json:"flow"`
	Records []record.Persisted `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) createSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: uuid.NewString()})
}

func (s *server) postMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON with a non-empty message"})
		return
	}

	reply, err := s.engine.HandleMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		s.logger.Error("message handling failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{SessionID: sessionID, Reply: reply})
}

func (s *server) resetSession(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listRecords(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "flow")
	flow, err := schema.ParseFlow(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown flow: " + name})
		return
	}

	records, err := s.engine.ListRecords(r.Context(), flow)
	if err != nil {
		if errors.Is(err, schema.ErrUnknownFlow) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown flow: " + name})
			return
		}
		s.logger.Error("record listing failed", "flow", flow.String(), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if records == nil {
		records = []record.Persisted{}
	}

	writeJSON(w, http.StatusOK, recordsResponse{Flow: flow.String(), Records: records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
