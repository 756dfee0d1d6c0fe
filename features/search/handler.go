// Package search exposes similarity search over a library's vectors.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vecdb/internal/domain"
	"vecdb/internal/middleware"
	"vecdb/internal/search"
)

type Handler struct {
	service *search.Service
}

func NewHandler(service *search.Service) *Handler {
	return &Handler{service: service}
}

// Search runs a similarity query against one of the library's configs.
// The config id selects which vector space to query; top_k defaults
// server-side when omitted.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	libraryID := domain.LibraryID(r.PathValue("id"))

	var req struct {
		ConfigID string `json:"config_id"`
		Query    string `json:"query"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.ConfigID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "config_id is required", http.StatusBadRequest)
		return
	}

	results, err := h.service.Search(r.Context(), libraryID, domain.VectorizationConfigID(req.ConfigID), req.Query, req.TopK)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}

	if results == nil {
		results = []search.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrValidation):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.ErrorContext(ctx, "operation failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
