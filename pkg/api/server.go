// Package api exposes the workflow engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tcmartin/claimflow/pkg/api/middleware"
	"github.com/tcmartin/claimflow/pkg/config"
	"github.com/tcmartin/claimflow/pkg/workflow"
)

// HumanInputSteps is the allow-list of steps that may receive input through
// the HTTP human-step endpoint. The policy belongs to this request layer,
// not the engine, and can change independently of it.
var HumanInputSteps = map[string]bool{
	workflow.StepValidateRequest: true,
	workflow.StepGatherClaimInfo: true,
}

// Server represents the HTTP API server
type Server struct {
	config *config.Config
	router *mux.Router
	server *http.Server
	engine *workflow.Engine
	ws     *WebSocketManager
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, engine *workflow.Engine) *Server {
	s := &Server{
		config: cfg,
		router: mux.NewRouter(),
		engine: engine,
		ws:     NewWebSocketManager(engine),
	}

	s.setupRoutes()
	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	var err error
	if s.config.Server.TLS.Enabled {
		err = s.server.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.server.ListenAndServe()
	}

	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// API router with version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	// Workflow routes; the pending-human route must precede the {id} routes
	workflows := api.PathPrefix("/workflows").Subrouter()
	workflows.HandleFunc("", s.handleStartWorkflow).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("", s.handleListWorkflows).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("/pending-human", s.handlePendingHuman).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleGetWorkflow).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("/{id}/history", s.handleWorkflowHistory).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("/{id}/human-step", s.handleHumanStep).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}/ws", s.handleWorkflowEvents).Methods(http.MethodGet)

	// CORS middleware for all routes
	s.router.Use(middleware.CORS)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
