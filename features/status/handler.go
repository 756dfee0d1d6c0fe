// Package status exposes the document vectorization ledger: per
// (document, config) pipeline progress.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vecdb/internal/domain"
	"vecdb/internal/middleware"
	"vecdb/internal/pipeline"
)

// Entry is the API shape of one ledger row.
type Entry struct {
	DocumentID string `json:"document_id"`
	ConfigID   string `json:"config_id"`
	LibraryID  string `json:"library_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func entryOf(st pipeline.VectorizationStatus) Entry {
	return Entry{
		DocumentID: string(st.DocumentID),
		ConfigID:   string(st.ConfigID),
		LibraryID:  string(st.LibraryID),
		Status:     string(st.State),
		Error:      st.Error,
		UpdatedAt:  st.UpdatedAt.UTC().Format(timeFormat),
	}
}

type Handler struct {
	store pipeline.StatusStore
}

func NewHandler(store pipeline.StatusStore) *Handler {
	return &Handler{store: store}
}

// ListByDocument returns every config's vectorization state for a
// document. An untracked document yields an empty list, not 404: the
// ledger only has rows once the orchestrator schedules work.
func (h *Handler) ListByDocument(w http.ResponseWriter, r *http.Request) {
	documentID := domain.DocumentID(r.PathValue("docID"))

	statuses, err := h.store.ListByDocument(r.Context(), documentID)
	if err != nil {
		slog.ErrorContext(r.Context(), "operation failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	entries := make([]Entry, 0, len(statuses))
	for _, st := range statuses {
		entries = append(entries, entryOf(st))
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": entries,
		"meta": map[string]int{"count": len(entries)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	documentID := domain.DocumentID(r.PathValue("docID"))
	configID := domain.VectorizationConfigID(r.PathValue("configID"))

	st, err := h.store.Get(r.Context(), documentID, configID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", err.Error(), http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "operation failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": entryOf(*st)}); err != nil {
		slog.Error("failed to encode response", "error", err)
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
