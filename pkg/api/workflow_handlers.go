package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tcmartin/claimflow/pkg/workflow"
)

// handleStartWorkflow creates and runs a new workflow instance
func (s *Server) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
		StartedBy  string `json:"started_by"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.CustomerID == "" || req.StartedBy == "" {
		http.Error(w, "customer_id and started_by are required", http.StatusBadRequest)
		return
	}

	instanceID, summary, err := s.engine.Start(req.CustomerID, req.StartedBy)
	if err != nil {
		log.Printf("Failed to start workflow: %v", err)
		http.Error(w, "Failed to start workflow", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"instance_id": instanceID,
		"result":      summary,
	})
}

// handleListWorkflows lists instance metadata, optionally filtered by query
// parameters.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := workflow.ListFilters{
		CustomerID:   query.Get("customer_id"),
		Status:       workflow.Status(query.Get("status")),
		StartedBy:    query.Get("started_by"),
		WorkflowName: query.Get("workflow_name"),
	}

	metas, err := s.engine.ListInstances(filters)
	if err != nil {
		log.Printf("Failed to list workflows: %v", err)
		http.Error(w, "Failed to list workflows", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, metas)
}

// handleGetWorkflow returns the audit metadata for one instance
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["id"]

	meta, err := s.engine.GetMeta(instanceID)
	if err != nil {
		log.Printf("Failed to get workflow %s: %v", instanceID, err)
		http.Error(w, "Failed to get workflow", http.StatusInternalServerError)
		return
	}
	if meta == nil {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// handleWorkflowHistory returns the event log for one instance
func (s *Server) handleWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["id"]

	meta, err := s.engine.GetMeta(instanceID)
	if err != nil {
		log.Printf("Failed to get workflow %s: %v", instanceID, err)
		http.Error(w, "Failed to get workflow", http.StatusInternalServerError)
		return
	}
	if meta == nil {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}

	events, err := s.engine.History(instanceID)
	if err != nil {
		log.Printf("Failed to get history for %s: %v", instanceID, err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// handleHumanStep resumes an instance with human-supplied input. Only
// instances currently sitting on an allow-listed human-input step may be
// resumed through this endpoint.
func (s *Server) handleHumanStep(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["id"]

	var req struct {
		Actor   string                 `json:"actor"`
		Updates map[string]interface{} `json:"updates"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Actor == "" {
		http.Error(w, "actor is required", http.StatusBadRequest)
		return
	}

	meta, err := s.engine.GetMeta(instanceID)
	if err != nil {
		log.Printf("Failed to get workflow %s: %v", instanceID, err)
		http.Error(w, "Failed to get workflow", http.StatusInternalServerError)
		return
	}
	if meta == nil {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}

	if !HumanInputSteps[meta.LastNode] {
		http.Error(w, fmt.Sprintf("Current step %q is not allowed via API", meta.LastNode), http.StatusBadRequest)
		return
	}

	summary, err := s.engine.Resume(instanceID, req.Actor, req.Updates)
	if err != nil {
		if errors.Is(err, workflow.ErrInstanceNotFound) {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to resume workflow %s: %v", instanceID, err)
		http.Error(w, "Failed to resume workflow", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"instance_id": instanceID,
		"result":      summary,
	})
}

// handlePendingHuman lists paused instances waiting on an allow-listed
// human-input step.
func (s *Server) handlePendingHuman(w http.ResponseWriter, r *http.Request) {
	metas, err := s.engine.ListInstances(workflow.ListFilters{Status: workflow.StatusPaused})
	if err != nil {
		log.Printf("Failed to list workflows: %v", err)
		http.Error(w, "Failed to list workflows", http.StatusInternalServerError)
		return
	}

	pending := make([]*workflow.InstanceMeta, 0, len(metas))
	for _, meta := range metas {
		if HumanInputSteps[meta.LastNode] {
			pending = append(pending, meta)
		}
	}

	writeJSON(w, http.StatusOK, pending)
}
