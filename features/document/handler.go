package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"vecdb/internal/domain"
	"vecdb/internal/middleware"
)

type Handler struct {
	service        *Service
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadSizeMB int64) *Handler {
	return &Handler{service: service, maxUploadBytes: maxUploadSizeMB << 20}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	libraryID := domain.LibraryID(r.PathValue("id"))
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.service.Create(r.Context(), libraryID, req.Name)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	resp := map[string]interface{}{"data": map[string]interface{}{
		"id":         string(doc.ID),
		"library_id": string(doc.LibraryID),
		"name":       doc.Name,
		"status":     string(doc.Status),
	}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Upload streams the raw request body into the document's fragments.
// Content arrives as application/octet-stream; the body is capped at the
// configured upload limit.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	libraryID := domain.LibraryID(r.PathValue("id"))
	documentID := domain.DocumentID(r.PathValue("docID"))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	result, err := h.service.Upload(r.Context(), libraryID, documentID, r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(r.Context(), w, "PAYLOAD_TOO_LARGE", "Upload exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeDomainError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	libraryID := domain.LibraryID(r.PathValue("id"))
	limit, offset := parsePage(r)
	docs, err := h.service.List(r.Context(), libraryID, limit, offset)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if docs == nil {
		docs = []Summary{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	libraryID := domain.LibraryID(r.PathValue("id"))
	documentID := domain.DocumentID(r.PathValue("docID"))

	detail, err := h.service.Get(r.Context(), libraryID, documentID)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": detail}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	libraryID := domain.LibraryID(r.PathValue("id"))
	documentID := domain.DocumentID(r.PathValue("docID"))
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.Rename(r.Context(), libraryID, documentID, req.Name); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	libraryID := domain.LibraryID(r.PathValue("id"))
	documentID := domain.DocumentID(r.PathValue("docID"))
	if err := h.service.Delete(r.Context(), libraryID, documentID); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// parsePage reads limit/offset query params, clamping to sane bounds.
func parsePage(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 200)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (h *Handler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrValidation):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrConflict):
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
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
