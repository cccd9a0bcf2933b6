package api

import (
	"errors"
	"net/http"

	"github.com/modelops/cardflow/internal/core"
)

// ErrorResponse is the JSON body for every error status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatCancelled:
		return http.StatusConflict, true
	case core.ErrCatExecution, core.ErrCatNetwork:
		return http.StatusBadGateway, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondError sends a plain error message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondDomainError maps a domain error onto an HTTP status, hiding
// internal details for anything unmapped.
func respondDomainError(w http.ResponseWriter, err error) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var domErr *core.DomainError
	errors.As(err, &domErr)
	respondJSON(w, status, ErrorResponse{Error: domErr.Message, Code: domErr.Code})
}
