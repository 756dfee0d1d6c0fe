// Package stats exposes system-wide counts for dashboards.
package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"vecdb/internal/middleware"
)

// Counter serves entity counts off the relational store.
type Counter interface {
	CountLibraries(ctx context.Context) (int, error)
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	CountEmbeddings(ctx context.Context) (int, error)
}

type Handler struct {
	counter Counter
}

func NewHandler(counter Counter) *Handler {
	return &Handler{counter: counter}
}

type StatsResponse struct {
	Libraries  int `json:"libraries"`
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	Embeddings int `json:"embeddings"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	libraries, err := h.counter.CountLibraries(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count libraries", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count libraries", http.StatusInternalServerError)
		return
	}

	documents, err := h.counter.CountDocuments(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	chunks, err := h.counter.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	embeddings, err := h.counter.CountEmbeddings(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count embeddings", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count embeddings", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Libraries:  libraries,
		Documents:  documents,
		Chunks:     chunks,
		Embeddings: embeddings,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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
