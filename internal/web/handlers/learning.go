package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// LearningHandler serves the per-category learning progress counters.
type LearningHandler struct {
	progress store.LearningProgressStore
}

func NewLearningHandler(progress store.LearningProgressStore) *LearningHandler {
	return &LearningHandler{progress: progress}
}

type learningProgressResponse struct {
	Category       string    `json:"category"`
	CompletedCount int       `json:"completedCount"`
	TotalCount     int       `json:"totalCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (h *LearningHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	rows, err := h.progress.GetLearningProgressByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Error("listing learning progress", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]learningProgressResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, learningProgressResponse{
			Category:       p.Category,
			CompletedCount: p.CompletedCount,
			TotalCount:     p.TotalCount,
			UpdatedAt:      p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleUpsert records progress for one category.
func (h *LearningHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Category       string `json:"category"`
		CompletedCount int    `json:"completedCount"`
		TotalCount     int    `json:"totalCount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	if req.CompletedCount < 0 || req.TotalCount < 0 || req.CompletedCount > req.TotalCount {
		writeError(w, http.StatusBadRequest, "invalid progress counts")
		return
	}

	p, err := h.progress.UpsertLearningProgress(r.Context(), user.ID, req.Category, req.CompletedCount, req.TotalCount)
	if err != nil {
		slog.Error("saving learning progress", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, learningProgressResponse{
		Category:       p.Category,
		CompletedCount: p.CompletedCount,
		TotalCount:     p.TotalCount,
		UpdatedAt:      p.UpdatedAt,
	})
}
