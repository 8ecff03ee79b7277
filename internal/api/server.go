// Package api exposes the operation pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dyluth/bbs/internal/engine"
	"github.com/dyluth/bbs/pkg/bbs"
)

// maxBodyBytes caps request bodies. Post bodies are the largest payloads.
const maxBodyBytes = 1 << 20

// Executor runs one operation.
type Executor interface {
	Execute(ctx context.Context, target engine.Target, req *engine.Request) error
}

// Presence is the online directory plus a store health check.
type Presence interface {
	Connect(ctx context.Context, identity bbs.Identity) error
	Disconnect(ctx context.Context, identity bbs.Identity) error
	Ping(ctx context.Context) error
}

// Server serves the HTTP surface.
type Server struct {
	executor Executor
	presence Presence
	instance string
}

// New creates a server for one instance.
func New(executor Executor, presence Presence, instance string) *Server {
	return &Server{executor: executor, presence: presence, instance: instance}
}

// OperationRequest is the body of POST /v1/{entity}/{operation}.
type OperationRequest struct {
	Account bbs.Identity           `json:"account"`
	Persona *bbs.Identity          `json:"persona,omitempty"`
	Kwargs  map[string]interface{} `json:"kwargs"`
}

// OperationResponse is the reply to an operation.
type OperationResponse struct {
	Status    engine.Status          `json:"status"`
	Message   string                 `json:"message"`
	Results   map[string]interface{} `json:"results"`
	RequestID string                 `json:"request_id"`
}

// HealthResponse is the reply to GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Instance string `json:"instance"`
	Redis    string `json:"redis"`
	Error    string `json:"error,omitempty"`
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.session(true))
		r.Delete("/sessions", s.session(false))
		r.Post("/{entity}/{operation}", s.operation)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Instance: s.instance, Redis: "ok"}
	code := http.StatusOK
	if err := s.presence.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Redis = "unreachable"
		resp.Error = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) operation(w http.ResponseWriter, r *http.Request) {
	target, err := engine.ParseTarget(chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var body OperationRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := engine.NewRequest(body.Account, body.Persona, chi.URLParam(r, "operation"), body.Kwargs)
	if err := s.executor.Execute(r.Context(), target, req); err != nil && req.Status == engine.StatusInternal {
		log.Printf("[API] %s %s failed (http request %s, operation %s): %v",
			target, req.Operation, middleware.GetReqID(r.Context()), req.ID, err)
	}

	writeJSON(w, req.Status.HTTPStatus(), OperationResponse{
		Status:    req.Status,
		Message:   req.Message,
		Results:   req.Results,
		RequestID: req.ID,
	})
}

func (s *Server) session(connect bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var identity bbs.Identity
		if err := decode(w, r, &identity); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := identity.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		action := s.presence.Disconnect
		if connect {
			action = s.presence.Connect
		}
		if err := action(r.Context(), identity); err != nil {
			log.Printf("[API] Failed to update session for %s %d: %v", identity.Kind, identity.ID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		status := "connected"
		if !connect {
			status = "disconnected"
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": status, "identity": identity})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to write response: %v", err)
	}
}
