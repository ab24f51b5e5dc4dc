package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/domyjob/domyjob/internal/ai"
	"github.com/domyjob/domyjob/internal/contextdoc"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// ScreenshotHandler serves the capture extension: analyze a screenshot, and
// optionally save the analysis as a context.
type ScreenshotHandler struct {
	responder *ai.Responder
	docs      *contextdoc.Service
}

func NewScreenshotHandler(responder *ai.Responder, docs *contextdoc.Service) *ScreenshotHandler {
	return &ScreenshotHandler{responder: responder, docs: docs}
}

// HandleProcess runs image analysis on a captured screenshot. The image
// arrives as a base64 data URL.
func (h *ScreenshotHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Image    string `json:"image"`
		Question string `json:"question"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !strings.HasPrefix(req.Image, "data:image/") {
		writeError(w, http.StatusBadRequest, "image must be a data URL")
		return
	}

	analysis, err := h.responder.AnalyzeImage(r.Context(), req.Image, req.Question)
	if err != nil {
		slog.Error("screenshot analysis", "user_id", user.ID, "error", err)
		writeError(w, http.StatusBadGateway, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

// HandleSaveContext stores a screenshot analysis as a context document.
func (h *ScreenshotHandler) HandleSaveContext(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.docs.CreateFromText(r.Context(), user.ID, req.Name, "screenshot", req.Content)
	if err != nil {
		if errors.Is(err, contextdoc.ErrEmptyContent) {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		slog.Error("saving screenshot context", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toContextResponse(created))
}
