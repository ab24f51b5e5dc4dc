package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/domyjob/domyjob/internal/emailsync"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// EmailResponseHandler serves editing and sending of drafted responses.
type EmailResponseHandler struct {
	responses store.EmailResponseStore
	emails    store.EmailStore
	sync      *emailsync.Service
}

func NewEmailResponseHandler(responses store.EmailResponseStore, emails store.EmailStore, sync *emailsync.Service) *EmailResponseHandler {
	return &EmailResponseHandler{
		responses: responses,
		emails:    emails,
		sync:      sync,
	}
}

// HandleUpdate saves a manual edit to the draft.
func (h *EmailResponseHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	response, ok := h.ownedResponse(w, r, user.ID)
	if !ok {
		return
	}
	if response.Status == models.ResponseStatusSent {
		writeError(w, http.StatusConflict, "response already sent")
		return
	}

	var req struct {
		DraftResponse string `json:"draftResponse"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.DraftResponse) == "" {
		writeError(w, http.StatusBadRequest, "draftResponse is required")
		return
	}

	if err := h.responses.UpdateEmailResponseDraft(r.Context(), response.ID, req.DraftResponse, models.ResponseStatusEdited); err != nil {
		slog.Error("updating draft", "response_id", response.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	response.DraftResponse = req.DraftResponse
	response.Status = models.ResponseStatusEdited
	writeJSON(w, http.StatusOK, toEmailResponseJSON(response))
}

// HandleSend delivers the response over SMTP. An optional body field edits
// the draft as part of the send.
func (h *EmailResponseHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	response, ok := h.ownedResponse(w, r, user.ID)
	if !ok {
		return
	}
	if response.Status == models.ResponseStatusSent {
		writeError(w, http.StatusConflict, "response already sent")
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	email, err := h.emails.GetEmailByID(r.Context(), response.EmailID)
	if err != nil {
		slog.Error("loading email for send", "email_id", response.EmailID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.sync.SendResponse(r.Context(), response, email, req.Body); err != nil {
		if errors.Is(err, emailsync.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "email settings not configured")
			return
		}
		slog.Error("sending response", "response_id", response.ID, "error", err)
		writeError(w, http.StatusBadGateway, "sending failed")
		return
	}

	sent, err := h.responses.GetEmailResponseByID(r.Context(), response.ID)
	if err != nil {
		slog.Error("reloading sent response", "response_id", response.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toEmailResponseJSON(sent))
}

func (h *EmailResponseHandler) ownedResponse(w http.ResponseWriter, r *http.Request, userID int64) (*models.EmailResponse, bool) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	response, err := h.responses.GetEmailResponseByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "response not found")
		} else {
			slog.Error("loading response", "response_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return nil, false
	}
	if response.UserID != userID {
		writeError(w, http.StatusNotFound, "response not found")
		return nil, false
	}
	return response, true
}
