package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelops/cardflow/internal/core"
)

// CreateWorkflowRequest is the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateWorkflowRequest is the request body for renaming a workflow.
type UpdateWorkflowRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddConnectionRequest is the request body for creating a connection.
type AddConnectionRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Kind     string `json:"kind"`
}

// ValidationResponse reports a connection admission check.
type ValidationResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.workflows.ListWorkflows())
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	wf, err := s.workflows.CreateWorkflow(r.Context(), req.Name, req.Description)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflows.GetWorkflow(chi.URLParam(r, "workflowID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wf, err := s.workflows.UpdateWorkflow(r.Context(), chi.URLParam(r, "workflowID"), req.Name, req.Description)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflows.DeleteWorkflow(r.Context(), chi.URLParam(r, "workflowID")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var card core.ModelCard
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	workflowID := chi.URLParam(r, "workflowID")
	if err := s.workflows.AddModelCard(r.Context(), workflowID, card); err != nil {
		respondDomainError(w, err)
		return
	}

	wf, err := s.workflows.GetWorkflow(workflowID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleRemoveCard(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	cardID := chi.URLParam(r, "cardID")

	if err := s.workflows.RemoveModelCard(r.Context(), workflowID, cardID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	var req AddConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	workflowID := chi.URLParam(r, "workflowID")
	kind := core.ConnectionKind(req.Kind)

	// Run the validator first so a rejection carries its reason; the
	// service itself treats an invalid connection as a silent no-op.
	if ok, reason := s.workflows.ValidateConnection(workflowID, req.SourceID, req.TargetID, kind); !ok {
		respondJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Valid: false, Reason: reason})
		return
	}

	conn, err := s.workflows.AddConnection(r.Context(), workflowID, req.SourceID, req.TargetID, kind)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if conn == nil {
		// Lost a race with a concurrent mutation that invalidated the edge.
		respondJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Valid: false, Reason: "connection rejected"})
		return
	}
	respondJSON(w, http.StatusCreated, conn)
}

func (s *Server) handleValidateConnection(w http.ResponseWriter, r *http.Request) {
	var req AddConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, reason := s.workflows.ValidateConnection(
		chi.URLParam(r, "workflowID"), req.SourceID, req.TargetID, core.ConnectionKind(req.Kind))
	respondJSON(w, http.StatusOK, ValidationResponse{Valid: ok, Reason: reason})
}

func (s *Server) handleRemoveConnection(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	connectionID := chi.URLParam(r, "connectionID")

	if err := s.workflows.RemoveConnection(r.Context(), workflowID, connectionID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
