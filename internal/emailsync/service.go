// Package emailsync coordinates one mail sync pass: fetch new messages over
// IMAP, classify them, store them, and draft replies where needed.
package emailsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/domyjob/domyjob/internal/ai"
	"github.com/domyjob/domyjob/internal/mailer"
	"github.com/domyjob/domyjob/internal/metrics"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/vault"
)

// Sentinel errors returned by Sync.
var (
	ErrNotConfigured = errors.New("email settings not configured")
	ErrInactive      = errors.New("email settings are inactive")
)

// Mailbox is an open mail session the orchestrator fetches from.
type Mailbox interface {
	FetchSince(ctx context.Context, folder string, since time.Time) ([]mailer.Record, error)
	Close() error
}

// Dialer opens a Mailbox for the given credentials.
type Dialer interface {
	Dial(ctx context.Context, creds mailer.Credentials) (Mailbox, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, creds mailer.Credentials) (Mailbox, error)

func (f DialerFunc) Dial(ctx context.Context, creds mailer.Credentials) (Mailbox, error) {
	return f(ctx, creds)
}

// Generator classifies emails and drafts replies.
type Generator interface {
	ClassifyNeedsResponse(ctx context.Context, subject, body string) bool
	DraftResponse(ctx context.Context, email *models.Email, contexts []models.Context) (ai.Draft, error)
}

// Result summarizes one sync pass.
type Result struct {
	NewEmails int `json:"newEmails"`
}

// Service runs sync passes. Each pass is stateless given the stored
// watermark; a failed pass leaves the watermark unchanged so the next
// user-triggered attempt covers the same window.
type Service struct {
	settings  store.EmailSettingsStore
	emails    store.EmailStore
	responses store.EmailResponseStore
	contexts  store.ContextStore
	vault     *vault.Vault
	dialer    Dialer
	generator Generator
	sender    func(mailer.Credentials, mailer.Reply) error
	lookback  time.Duration
}

func NewService(
	settings store.EmailSettingsStore,
	emails store.EmailStore,
	responses store.EmailResponseStore,
	contexts store.ContextStore,
	v *vault.Vault,
	dialer Dialer,
	generator Generator,
	lookbackDays int,
) *Service {
	return &Service{
		settings:  settings,
		emails:    emails,
		responses: responses,
		contexts:  contexts,
		vault:     v,
		dialer:    dialer,
		generator: generator,
		sender:    mailer.SendReply,
		lookback:  time.Duration(lookbackDays) * 24 * time.Hour,
	}
}

// Sync runs one pass for the user. Messages are processed sequentially;
// a message already stored under its message ID is skipped before any
// classification call is made.
func (s *Service) Sync(ctx context.Context, userID int64) (Result, error) {
	res, err := s.sync(ctx, userID)
	if err != nil {
		metrics.SyncPasses.WithLabelValues("error").Inc()
		return res, err
	}
	metrics.SyncPasses.WithLabelValues("success").Inc()
	return res, nil
}

func (s *Service) sync(ctx context.Context, userID int64) (Result, error) {
	settings, err := s.settings.GetEmailSettingsByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrNotConfigured
		}
		return Result{}, fmt.Errorf("loading email settings: %w", err)
	}
	if !settings.IsActive {
		return Result{}, ErrInactive
	}

	creds, err := s.decryptCredentials(settings)
	if err != nil {
		return Result{}, err
	}

	mailbox, err := s.dialer.Dial(ctx, creds)
	if err != nil {
		return Result{}, fmt.Errorf("connecting to mail server: %w", err)
	}
	defer func() {
		if closeErr := mailbox.Close(); closeErr != nil {
			slog.Warn("closing mail session", "user_id", userID, "error", closeErr)
		}
	}()

	watermark := time.Now().Add(-s.lookback)
	if settings.LastSynced != nil {
		watermark = *settings.LastSynced
	}

	records, err := mailbox.FetchSince(ctx, "INBOX", watermark)
	if err != nil {
		return Result{}, fmt.Errorf("fetching messages: %w", err)
	}

	result := Result{}
	for _, record := range records {
		stored, err := s.storeRecord(ctx, userID, record)
		if err != nil {
			return result, err
		}
		if stored {
			result.NewEmails++
		}
	}

	if err := s.settings.UpdateLastSynced(ctx, userID, time.Now()); err != nil {
		return result, fmt.Errorf("advancing sync watermark: %w", err)
	}

	slog.Info("email sync pass finished",
		"user_id", userID,
		"fetched", len(records),
		"stored", result.NewEmails,
	)

	return result, nil
}

// storeRecord persists one fetched record. Returns false when the message was
// already known.
func (s *Service) storeRecord(ctx context.Context, userID int64, record mailer.Record) (bool, error) {
	// Existence check first so re-delivered messages never trigger an LLM call.
	if _, err := s.emails.GetEmailByMessageID(ctx, userID, record.MessageID); err == nil {
		metrics.EmailsSynced.WithLabelValues("duplicate").Inc()
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("checking for existing message: %w", err)
	}

	needsResponse := s.generator.ClassifyNeedsResponse(ctx, record.Subject, record.Text)

	email, err := s.emails.CreateEmail(ctx, models.EmailCreateParams{
		UserID:        userID,
		MessageID:     record.MessageID,
		FromAddress:   record.From,
		ToAddress:     strings.Join(record.To, ", "),
		CCAddress:     strings.Join(record.CC, ", "),
		Subject:       record.Subject,
		TextBody:      record.Text,
		HTMLBody:      record.HTML,
		ReceivedAt:    record.Date,
		NeedsResponse: needsResponse,
		Folder:        "INBOX",
	})
	if err != nil {
		// Two passes racing on the same message resolve via the unique
		// constraint; the loser treats the insert as a no-op.
		if errors.Is(err, store.ErrDuplicateMessageID) {
			metrics.EmailsSynced.WithLabelValues("duplicate").Inc()
			return false, nil
		}
		return false, fmt.Errorf("storing email: %w", err)
	}
	metrics.EmailsSynced.WithLabelValues("stored").Inc()

	if needsResponse {
		if err := s.GenerateResponse(ctx, email); err != nil {
			// The inbox view re-offers generation for emails flagged
			// needs_response without a stored draft.
			slog.Error("auto-generating response failed",
				"user_id", userID,
				"email_id", email.ID,
				"error", err,
			)
		}
	}

	return true, nil
}

// GenerateResponse drafts a reply for the email and stores it, then flags the
// email. The two writes are not atomic; a crash in between is self-healing
// because response_generated stays false.
func (s *Service) GenerateResponse(ctx context.Context, email *models.Email) error {
	contexts, err := s.contexts.GetActiveContextsByUserID(ctx, email.UserID)
	if err != nil {
		return fmt.Errorf("loading active contexts: %w", err)
	}

	draft, err := s.generator.DraftResponse(ctx, email, contexts)
	if err != nil {
		return fmt.Errorf("drafting response: %w", err)
	}

	if _, err := s.responses.CreateEmailResponse(ctx, email.ID, email.UserID, draft.DraftResponse, draft.SuggestedActions); err != nil {
		return fmt.Errorf("storing response: %w", err)
	}

	if err := s.emails.SetResponseGenerated(ctx, email.ID); err != nil {
		return fmt.Errorf("flagging email: %w", err)
	}

	return nil
}

// SendResponse delivers a stored response via SMTP and marks it sent. When
// editedBody is non-empty it replaces the stored draft before sending.
func (s *Service) SendResponse(ctx context.Context, response *models.EmailResponse, email *models.Email, editedBody string) error {
	settings, err := s.settings.GetEmailSettingsByUserID(ctx, response.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotConfigured
		}
		return fmt.Errorf("loading email settings: %w", err)
	}

	creds, err := s.decryptCredentials(settings)
	if err != nil {
		return err
	}

	body := response.DraftResponse
	if editedBody != "" {
		body = editedBody
	}

	if err := s.sender(creds, mailer.Reply{
		FromAddress:   settings.EmailAddress,
		OrigFrom:      email.FromAddress,
		OrigSubject:   email.Subject,
		OrigMessageID: email.MessageID,
		Body:          body,
	}); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}

	if editedBody != "" && editedBody != response.DraftResponse {
		if err := s.responses.UpdateEmailResponseDraft(ctx, response.ID, editedBody, models.ResponseStatusEdited); err != nil {
			return fmt.Errorf("storing edited draft: %w", err)
		}
	}

	if err := s.responses.MarkEmailResponseSent(ctx, response.ID, time.Now()); err != nil {
		return fmt.Errorf("marking response sent: %w", err)
	}

	return nil
}

func (s *Service) decryptCredentials(settings *models.EmailSettings) (mailer.Credentials, error) {
	plaintext, err := s.vault.Decrypt(settings.EncryptedCredentials)
	if err != nil {
		return mailer.Credentials{}, fmt.Errorf("decrypting credentials: %w", err)
	}

	var creds mailer.Credentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return mailer.Credentials{}, fmt.Errorf("decoding credentials: %w", err)
	}
	return creds, nil
}
