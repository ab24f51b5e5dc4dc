package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/domyjob/domyjob/internal/ai"
	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// AIHandler serves the stateless AI helper routes.
type AIHandler struct {
	responder *ai.Responder
	contexts  store.ContextStore
}

func NewAIHandler(responder *ai.Responder, contexts store.ContextStore) *AIHandler {
	return &AIHandler{responder: responder, contexts: contexts}
}

// HandleDraftEmail composes a fresh email from an instruction.
func (h *AIHandler) HandleDraftEmail(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Instruction string `json:"instruction"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	contexts, err := h.contexts.GetActiveContextsByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Error("loading active contexts", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	draft, err := h.responder.DraftEmail(r.Context(), req.Instruction, contexts)
	if err != nil {
		slog.Error("draft-email completion", "user_id", user.ID, "error", err)
		writeError(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft": draft})
}

// HandleSummarize produces a short summary of submitted text.
func (h *AIHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	contexts, err := h.contexts.GetActiveContextsByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Error("loading active contexts", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	summary, err := h.responder.Summarize(r.Context(), req.Text, contexts)
	if err != nil {
		slog.Error("summarize completion", "user_id", user.ID, "error", err)
		writeError(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
