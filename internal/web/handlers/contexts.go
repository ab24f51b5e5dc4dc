package handlers

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/domyjob/domyjob/internal/contextdoc"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// ContextHandler serves the context document routes.
type ContextHandler struct {
	docs           *contextdoc.Service
	contexts       store.ContextStore
	maxUploadBytes int64
}

func NewContextHandler(docs *contextdoc.Service, contexts store.ContextStore, maxUploadBytes int64) *ContextHandler {
	return &ContextHandler{
		docs:           docs,
		contexts:       contexts,
		maxUploadBytes: maxUploadBytes,
	}
}

type contextResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Content     string    `json:"content"`
	FileSize    *int64    `json:"fileSize,omitempty"`
	PageCount   *int      `json:"pageCount,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toContextResponse(c *models.Context) contextResponse {
	return contextResponse{
		ID:          c.ID,
		Name:        c.Name,
		ContentType: c.ContentType,
		Content:     c.Content,
		FileSize:    c.FileSize,
		PageCount:   c.PageCount,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
	}
}

// HandleList returns all of the user's contexts.
func (h *ContextHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	contexts, err := h.contexts.GetContextsByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Error("listing contexts", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]contextResponse, 0, len(contexts))
	for i := range contexts {
		out = append(out, toContextResponse(&contexts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate stores pasted text as a new context.
func (h *ContextHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.docs.CreateFromText(r.Context(), user.ID, req.Name, req.ContentType, req.Content)
	if err != nil {
		if errors.Is(err, contextdoc.ErrEmptyContent) {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		slog.Error("creating context", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toContextResponse(created))
}

// HandleUpload stores a multipart file upload as a new context.
func (h *ContextHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+4096)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	created, err := h.docs.CreateFromUpload(r.Context(), user.ID, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, contextdoc.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		case errors.Is(err, contextdoc.ErrUnsupportedType):
			writeError(w, http.StatusBadRequest, "only .txt, .md and .pdf files are supported")
		case errors.Is(err, contextdoc.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "file is empty")
		default:
			slog.Error("storing upload", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toContextResponse(created))
}

// HandleUpdate toggles a context's active flag.
func (h *ContextHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	c, ok := h.ownedContext(w, r, user.ID)
	if !ok {
		return
	}

	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.docs.SetActive(r.Context(), c, req.IsActive); err != nil {
		slog.Error("toggling context", "context_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	c.IsActive = req.IsActive
	writeJSON(w, http.StatusOK, toContextResponse(c))
}

// HandleDelete removes a context and its stored upload.
func (h *ContextHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	c, ok := h.ownedContext(w, r, user.ID)
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), c); err != nil {
		slog.Error("deleting context", "context_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ownedContext loads the {id} context and enforces ownership. Rows belonging
// to another user are reported as not found.
func (h *ContextHandler) ownedContext(w http.ResponseWriter, r *http.Request, userID int64) (*models.Context, bool) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	c, err := h.contexts.GetContextByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "context not found")
		} else {
			slog.Error("loading context", "context_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return nil, false
	}
	if c.UserID != userID {
		writeError(w, http.StatusNotFound, "context not found")
		return nil, false
	}
	return c, true
}
