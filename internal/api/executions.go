package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ExecuteRequest is the request body for running a workflow.
type ExecuteRequest struct {
	Input string `json:"input"`
}

// ExecutionStatusResponse reports whether a run is in flight.
type ExecutionStatusResponse struct {
	Executing bool `json:"executing"`
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := s.workflows.Execute(r.Context(), chi.URLParam(r, "workflowID"), req.Input)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleCurrentExecution(w http.ResponseWriter, _ *http.Request) {
	run := s.workflows.CurrentRun()
	if run == nil {
		respondError(w, http.StatusNotFound, "no execution has completed yet")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleIntermediateResults(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.workflows.IntermediateResults())
}

func (s *Server) handleExecutionHistory(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.workflows.History())
}

func (s *Server) handleExecutionStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, ExecutionStatusResponse{Executing: s.workflows.IsExecuting()})
}
