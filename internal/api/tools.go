package api

import (
	"net/http"

	"github.com/modelops/cardflow/internal/core"
)

func (s *Server) handleListToolServers(w http.ResponseWriter, _ *http.Request) {
	if s.tools == nil {
		respondJSON(w, http.StatusOK, []core.ToolServerStatus{})
		return
	}
	respondJSON(w, http.StatusOK, s.tools.Statuses())
}

func (s *Server) handlePollToolServers(w http.ResponseWriter, r *http.Request) {
	if s.tools == nil {
		respondJSON(w, http.StatusOK, []core.ToolServerStatus{})
		return
	}
	respondJSON(w, http.StatusOK, s.tools.Poll(r.Context()))
}
