package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/domyjob/domyjob/internal/emailsync"
	"github.com/domyjob/domyjob/internal/mailer"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/vault"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// EmailHandler serves the mail settings, inbox and sync routes.
type EmailHandler struct {
	settings  store.EmailSettingsStore
	emails    store.EmailStore
	responses store.EmailResponseStore
	sync      *emailsync.Service
	vault     *vault.Vault
}

func NewEmailHandler(settings store.EmailSettingsStore, emails store.EmailStore, responses store.EmailResponseStore, sync *emailsync.Service, v *vault.Vault) *EmailHandler {
	return &EmailHandler{
		settings:  settings,
		emails:    emails,
		responses: responses,
		sync:      sync,
		vault:     v,
	}
}

// settingsResponse never carries credentials, only whether they exist.
type settingsResponse struct {
	Provider       string     `json:"provider,omitempty"`
	EmailAddress   string     `json:"emailAddress,omitempty"`
	IsActive       bool       `json:"isActive"`
	LastSynced     *time.Time `json:"lastSynced,omitempty"`
	HasCredentials bool       `json:"hasCredentials"`
}

type emailResponseJSON struct {
	ID               int64                    `json:"id"`
	EmailID          int64                    `json:"emailId"`
	DraftResponse    string                   `json:"draftResponse"`
	SuggestedActions []models.SuggestedAction `json:"suggestedActions"`
	Status           string                   `json:"status"`
	SentAt           *time.Time               `json:"sentAt,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
}

func toEmailResponseJSON(r *models.EmailResponse) emailResponseJSON {
	actions := r.SuggestedActions
	if actions == nil {
		actions = []models.SuggestedAction{}
	}
	return emailResponseJSON{
		ID:               r.ID,
		EmailID:          r.EmailID,
		DraftResponse:    r.DraftResponse,
		SuggestedActions: actions,
		Status:           r.Status,
		SentAt:           r.SentAt,
		CreatedAt:        r.CreatedAt,
	}
}

type emailJSON struct {
	ID                int64     `json:"id"`
	MessageID         string    `json:"messageId"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	CC                string    `json:"cc,omitempty"`
	Subject           string    `json:"subject"`
	TextBody          string    `json:"textBody"`
	HTMLBody          string    `json:"htmlBody,omitempty"`
	ReceivedAt        time.Time `json:"receivedAt"`
	IsRead            bool      `json:"isRead"`
	NeedsResponse     bool      `json:"needsResponse"`
	ResponseGenerated bool      `json:"responseGenerated"`
	Folder            string    `json:"folder"`
}

func toEmailJSON(e *models.Email) emailJSON {
	return emailJSON{
		ID:                e.ID,
		MessageID:         e.MessageID,
		From:              e.FromAddress,
		To:                e.ToAddress,
		CC:                e.CCAddress,
		Subject:           e.Subject,
		TextBody:          e.TextBody,
		HTMLBody:          e.HTMLBody,
		ReceivedAt:        e.ReceivedAt,
		IsRead:            e.IsRead,
		NeedsResponse:     e.NeedsResponse,
		ResponseGenerated: e.ResponseGenerated,
		Folder:            e.Folder,
	}
}

// HandleGetSettings returns the stored mail settings with credentials
// stripped. An unconfigured account gets hasCredentials=false rather than an
// error so the UI can show the setup form.
func (h *EmailHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	settings, err := h.settings.GetEmailSettingsByUserID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusOK, settingsResponse{HasCredentials: false})
			return
		}
		slog.Error("loading email settings", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Provider:       settings.Provider,
		EmailAddress:   settings.EmailAddress,
		IsActive:       settings.IsActive,
		LastSynced:     settings.LastSynced,
		HasCredentials: settings.EncryptedCredentials != "",
	})
}

// HandleSaveSettings stores mail account settings. Connection fields default
// from the provider preset when one exists; the credential blob is encrypted
// before it touches the database.
func (h *EmailHandler) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Provider     string `json:"provider"`
		EmailAddress string `json:"emailAddress"`
		Username     string `json:"username"`
		Password     string `json:"password"`
		Host         string `json:"host"`
		Port         int    `json:"port"`
		TLS          *bool  `json:"tls"`
		SMTPHost     string `json:"smtpHost"`
		SMTPPort     int    `json:"smtpPort"`
		SMTPSecure   *bool  `json:"smtpSecure"`
		IsActive     *bool  `json:"isActive"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.EmailAddress) == "" {
		writeError(w, http.StatusBadRequest, "emailAddress is required")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Provider == "" {
		req.Provider = "custom"
	}

	creds := mailer.Credentials{
		Username:   req.Username,
		Password:   req.Password,
		Host:       req.Host,
		Port:       req.Port,
		SMTPHost:   req.SMTPHost,
		SMTPPort:   req.SMTPPort,
		TLS:        true,
		SMTPSecure: false,
	}
	if req.TLS != nil {
		creds.TLS = *req.TLS
	}
	if req.SMTPSecure != nil {
		creds.SMTPSecure = *req.SMTPSecure
	}
	if preset, ok := mailer.PresetFor(req.Provider); ok {
		if creds.Host == "" {
			creds.Host = preset.Host
			creds.Port = preset.Port
			creds.TLS = preset.TLS
		}
		if creds.SMTPHost == "" {
			creds.SMTPHost = preset.SMTPHost
			creds.SMTPPort = preset.SMTPPort
			creds.SMTPSecure = preset.SMTPSecure
		}
	}
	if creds.Host == "" || creds.Port == 0 {
		writeError(w, http.StatusBadRequest, "imap host and port are required")
		return
	}
	if creds.SMTPHost == "" || creds.SMTPPort == 0 {
		writeError(w, http.StatusBadRequest, "smtp host and port are required")
		return
	}

	blob, err := json.Marshal(creds)
	if err != nil {
		slog.Error("encoding credentials", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	encrypted, err := h.vault.Encrypt(string(blob))
	if err != nil {
		slog.Error("encrypting credentials", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	settings, err := h.settings.UpsertEmailSettings(r.Context(), user.ID, req.Provider, req.EmailAddress, encrypted, isActive)
	if err != nil {
		slog.Error("saving email settings", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Provider:       settings.Provider,
		EmailAddress:   settings.EmailAddress,
		IsActive:       settings.IsActive,
		LastSynced:     settings.LastSynced,
		HasCredentials: true,
	})
}

// HandleProviders returns the known provider presets for the settings form.
func (h *EmailHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mailer.Presets())
}

// HandleSync runs one sync pass for the user.
func (h *EmailHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	result, err := h.sync.Sync(r.Context(), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, emailsync.ErrNotConfigured):
			writeError(w, http.StatusBadRequest, "email settings not configured")
		case errors.Is(err, emailsync.ErrInactive):
			writeError(w, http.StatusBadRequest, "email sync is disabled")
		default:
			slog.Error("email sync failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusBadGateway, "sync failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleInbox lists stored emails, optionally filtered by needsResponse.
func (h *EmailHandler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	query := models.EmailQuery{Limit: 50}
	if raw := r.URL.Query().Get("needsResponse"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid needsResponse")
			return
		}
		query.NeedsResponse = &v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 200 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = v
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		query.Offset = v
	}

	emails, err := h.emails.ListEmailsByUserID(r.Context(), user.ID, query)
	if err != nil {
		slog.Error("listing inbox", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]emailJSON, 0, len(emails))
	for i := range emails {
		out = append(out, toEmailJSON(&emails[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetEmail returns one email and marks it read.
func (h *EmailHandler) HandleGetEmail(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	email, ok := h.ownedEmail(w, r, user.ID)
	if !ok {
		return
	}

	if !email.IsRead {
		if err := h.emails.MarkEmailRead(r.Context(), email.ID); err != nil {
			slog.Warn("marking email read", "email_id", email.ID, "error", err)
		} else {
			email.IsRead = true
		}
	}
	writeJSON(w, http.StatusOK, toEmailJSON(email))
}

// HandleListResponses returns the stored responses for one email.
func (h *EmailHandler) HandleListResponses(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	email, ok := h.ownedEmail(w, r, user.ID)
	if !ok {
		return
	}

	responses, err := h.responses.ListEmailResponsesByEmailID(r.Context(), email.ID)
	if err != nil {
		slog.Error("listing responses", "email_id", email.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]emailResponseJSON, 0, len(responses))
	for i := range responses {
		out = append(out, toEmailResponseJSON(&responses[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGenerateResponse drafts a response on demand, regardless of the
// stored needsResponse flag.
func (h *EmailHandler) HandleGenerateResponse(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	email, ok := h.ownedEmail(w, r, user.ID)
	if !ok {
		return
	}

	if err := h.sync.GenerateResponse(r.Context(), email); err != nil {
		slog.Error("generating response", "email_id", email.ID, "error", err)
		writeError(w, http.StatusBadGateway, "response generation failed")
		return
	}

	responses, err := h.responses.ListEmailResponsesByEmailID(r.Context(), email.ID)
	if err != nil || len(responses) == 0 {
		slog.Error("loading generated response", "email_id", email.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	// Most recent first per store ordering.
	writeJSON(w, http.StatusCreated, toEmailResponseJSON(&responses[0]))
}

func (h *EmailHandler) ownedEmail(w http.ResponseWriter, r *http.Request, userID int64) (*models.Email, bool) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	email, err := h.emails.GetEmailByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "email not found")
		} else {
			slog.Error("loading email", "email_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return nil, false
	}
	if email.UserID != userID {
		writeError(w, http.StatusNotFound, "email not found")
		return nil, false
	}
	return email, true
}
