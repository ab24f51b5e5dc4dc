package emailsync

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/domyjob/domyjob/internal/ai"
	"github.com/domyjob/domyjob/internal/mailer"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/vault"
)

// --- Mock stores ---

type mockSettingsStore struct {
	byUser map[int64]*models.EmailSettings
}

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{byUser: make(map[int64]*models.EmailSettings)}
}

func (m *mockSettingsStore) UpsertEmailSettings(_ context.Context, userID int64, provider, emailAddress, encryptedCredentials string, isActive bool) (*models.EmailSettings, error) {
	settings := &models.EmailSettings{
		ID:                   userID,
		UserID:               userID,
		Provider:             provider,
		EmailAddress:         emailAddress,
		EncryptedCredentials: encryptedCredentials,
		IsActive:             isActive,
	}
	m.byUser[userID] = settings
	return settings, nil
}

func (m *mockSettingsStore) GetEmailSettingsByUserID(_ context.Context, userID int64) (*models.EmailSettings, error) {
	settings, ok := m.byUser[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return settings, nil
}

func (m *mockSettingsStore) UpdateLastSynced(_ context.Context, userID int64, syncedAt time.Time) error {
	settings, ok := m.byUser[userID]
	if !ok {
		return sql.ErrNoRows
	}
	settings.LastSynced = &syncedAt
	return nil
}

type mockEmailStore struct {
	emails      map[int64]*models.Email
	byMessageID map[string]*models.Email
	nextID      int64
}

func newMockEmailStore() *mockEmailStore {
	return &mockEmailStore{
		emails:      make(map[int64]*models.Email),
		byMessageID: make(map[string]*models.Email),
		nextID:      1,
	}
}

func (m *mockEmailStore) CreateEmail(_ context.Context, params models.EmailCreateParams) (*models.Email, error) {
	if _, exists := m.byMessageID[params.MessageID]; exists {
		return nil, fmt.Errorf("message %q: %w", params.MessageID, store.ErrDuplicateMessageID)
	}
	email := &models.Email{
		ID:            m.nextID,
		PublicID:      uuid.New(),
		UserID:        params.UserID,
		MessageID:     params.MessageID,
		FromAddress:   params.FromAddress,
		ToAddress:     params.ToAddress,
		CCAddress:     params.CCAddress,
		Subject:       params.Subject,
		TextBody:      params.TextBody,
		HTMLBody:      params.HTMLBody,
		ReceivedAt:    params.ReceivedAt,
		NeedsResponse: params.NeedsResponse,
		Folder:        params.Folder,
		CreatedAt:     time.Now(),
	}
	m.nextID++
	m.emails[email.ID] = email
	m.byMessageID[email.MessageID] = email
	return email, nil
}

func (m *mockEmailStore) GetEmailByID(_ context.Context, id int64) (*models.Email, error) {
	email, ok := m.emails[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return email, nil
}

func (m *mockEmailStore) GetEmailByMessageID(_ context.Context, userID int64, messageID string) (*models.Email, error) {
	email, ok := m.byMessageID[messageID]
	if !ok || email.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return email, nil
}

func (m *mockEmailStore) ListEmailsByUserID(_ context.Context, userID int64, query models.EmailQuery) ([]models.Email, error) {
	var out []models.Email
	for _, email := range m.emails {
		if email.UserID != userID {
			continue
		}
		if query.NeedsResponse != nil && email.NeedsResponse != *query.NeedsResponse {
			continue
		}
		out = append(out, *email)
	}
	return out, nil
}

func (m *mockEmailStore) MarkEmailRead(_ context.Context, id int64) error {
	email, ok := m.emails[id]
	if !ok {
		return sql.ErrNoRows
	}
	email.IsRead = true
	return nil
}

func (m *mockEmailStore) SetResponseGenerated(_ context.Context, id int64) error {
	email, ok := m.emails[id]
	if !ok {
		return sql.ErrNoRows
	}
	email.ResponseGenerated = true
	return nil
}

type mockResponseStore struct {
	responses map[int64]*models.EmailResponse
	nextID    int64
}

func newMockResponseStore() *mockResponseStore {
	return &mockResponseStore{
		responses: make(map[int64]*models.EmailResponse),
		nextID:    1,
	}
}

func (m *mockResponseStore) CreateEmailResponse(_ context.Context, emailID, userID int64, draft string, actions []models.SuggestedAction) (*models.EmailResponse, error) {
	resp := &models.EmailResponse{
		ID:               m.nextID,
		PublicID:         uuid.New(),
		EmailID:          emailID,
		UserID:           userID,
		DraftResponse:    draft,
		SuggestedActions: actions,
		Status:           models.ResponseStatusDraft,
		CreatedAt:        time.Now(),
	}
	m.nextID++
	m.responses[resp.ID] = resp
	return resp, nil
}

func (m *mockResponseStore) GetEmailResponseByID(_ context.Context, id int64) (*models.EmailResponse, error) {
	resp, ok := m.responses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return resp, nil
}

func (m *mockResponseStore) ListEmailResponsesByEmailID(_ context.Context, emailID int64) ([]models.EmailResponse, error) {
	var out []models.EmailResponse
	for _, resp := range m.responses {
		if resp.EmailID == emailID {
			out = append(out, *resp)
		}
	}
	return out, nil
}

func (m *mockResponseStore) UpdateEmailResponseDraft(_ context.Context, id int64, draft, status string) error {
	resp, ok := m.responses[id]
	if !ok {
		return sql.ErrNoRows
	}
	resp.DraftResponse = draft
	resp.Status = status
	return nil
}

func (m *mockResponseStore) MarkEmailResponseSent(_ context.Context, id int64, sentAt time.Time) error {
	resp, ok := m.responses[id]
	if !ok {
		return sql.ErrNoRows
	}
	resp.Status = models.ResponseStatusSent
	resp.SentAt = &sentAt
	return nil
}

type mockContextStore struct {
	contexts []models.Context
}

func (m *mockContextStore) CreateContext(_ context.Context, params models.ContextCreateParams) (*models.Context, error) {
	return nil, errors.New("not implemented")
}

func (m *mockContextStore) GetContextByID(_ context.Context, _ int64) (*models.Context, error) {
	return nil, sql.ErrNoRows
}

func (m *mockContextStore) GetContextsByUserID(_ context.Context, _ int64) ([]models.Context, error) {
	return m.contexts, nil
}

func (m *mockContextStore) GetActiveContextsByUserID(_ context.Context, userID int64) ([]models.Context, error) {
	var out []models.Context
	for _, c := range m.contexts {
		if c.UserID == userID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockContextStore) SetContextActive(_ context.Context, _ int64, _ bool) error { return nil }
func (m *mockContextStore) DeleteContext(_ context.Context, _ int64) error           { return nil }

// --- Fake mail transport ---

type fakeMailbox struct {
	records   []mailer.Record
	fetchErr  error
	lastSince time.Time
	closed    bool
}

func (f *fakeMailbox) FetchSince(_ context.Context, _ string, since time.Time) ([]mailer.Record, error) {
	f.lastSince = since
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.records, nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	mailbox *fakeMailbox
	dialErr error
	creds   mailer.Credentials
}

func (f *fakeDialer) Dial(_ context.Context, creds mailer.Credentials) (Mailbox, error) {
	f.creds = creds
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return f.mailbox, nil
}

// --- Fake generator ---

type fakeGenerator struct {
	needsResponse bool
	classifyCalls int
	draft         ai.Draft
	draftErr      error
	draftCalls    int
	seenContexts  []models.Context
}

func (f *fakeGenerator) ClassifyNeedsResponse(_ context.Context, _, _ string) bool {
	f.classifyCalls++
	return f.needsResponse
}

func (f *fakeGenerator) DraftResponse(_ context.Context, _ *models.Email, contexts []models.Context) (ai.Draft, error) {
	f.draftCalls++
	f.seenContexts = contexts
	if f.draftErr != nil {
		return ai.Draft{}, f.draftErr
	}
	return f.draft, nil
}

// --- Helpers ---

type fixture struct {
	svc       *Service
	settings  *mockSettingsStore
	emails    *mockEmailStore
	responses *mockResponseStore
	contexts  *mockContextStore
	dialer    *fakeDialer
	generator *fakeGenerator
	vault     *vault.Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := vault.New(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("creating vault: %v", err)
	}

	f := &fixture{
		settings:  newMockSettingsStore(),
		emails:    newMockEmailStore(),
		responses: newMockResponseStore(),
		contexts:  &mockContextStore{},
		dialer:    &fakeDialer{mailbox: &fakeMailbox{}},
		generator: &fakeGenerator{draft: ai.Draft{DraftResponse: "Sounds good."}},
		vault:     v,
	}
	f.svc = NewService(f.settings, f.emails, f.responses, f.contexts, v, f.dialer, f.generator, 3)
	return f
}

func (f *fixture) configure(t *testing.T, userID int64, active bool) {
	t.Helper()

	creds, _ := json.Marshal(mailer.Credentials{
		Username: "me@example.com",
		Password: "hunter2",
		Host:     "imap.example.com",
		Port:     993,
		TLS:      true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
	})
	encrypted, err := f.vault.Encrypt(string(creds))
	if err != nil {
		t.Fatalf("encrypting credentials: %v", err)
	}
	if _, err := f.settings.UpsertEmailSettings(context.Background(), userID, "custom", "me@example.com", encrypted, active); err != nil {
		t.Fatalf("saving settings: %v", err)
	}
}

func record(messageID string) mailer.Record {
	return mailer.Record{
		MessageID: messageID,
		From:      "John Smith <john@example.com>",
		To:        []string{"me@example.com"},
		Subject:   "Please confirm budget by Friday",
		Date:      time.Now().Add(-time.Hour),
		Text:      "Can you confirm the Q3 budget by Friday?",
	}
}

// --- Tests ---

func TestSync_NotConfigured(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Sync(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSync_Inactive(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, false)

	if _, err := f.svc.Sync(context.Background(), 1); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestSync_StoresNewEmailAndDraftsResponse(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)
	f.generator.needsResponse = true
	f.dialer.mailbox.records = []mailer.Record{record("<msg-1@example.com>")}

	result, err := f.svc.Sync(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.NewEmails != 1 {
		t.Fatalf("expected 1 new email, got %d", result.NewEmails)
	}

	email, err := f.emails.GetEmailByMessageID(context.Background(), 1, "<msg-1@example.com>")
	if err != nil {
		t.Fatalf("stored email not found: %v", err)
	}
	if !email.NeedsResponse {
		t.Error("expected needs_response=true")
	}
	if !email.ResponseGenerated {
		t.Error("expected response_generated=true after auto drafting")
	}

	responses, _ := f.responses.ListEmailResponsesByEmailID(context.Background(), email.ID)
	if len(responses) != 1 {
		t.Fatalf("expected exactly 1 response, got %d", len(responses))
	}
	if responses[0].Status != models.ResponseStatusDraft {
		t.Errorf("expected status draft, got %q", responses[0].Status)
	}
	if !f.dialer.mailbox.closed {
		t.Error("mail session should be closed after the pass")
	}
}

func TestSync_NoResponseNeededCreatesNoDraft(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)
	f.generator.needsResponse = false
	f.dialer.mailbox.records = []mailer.Record{record("<msg-1@example.com>")}

	if _, err := f.svc.Sync(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if f.generator.draftCalls != 0 {
		t.Errorf("expected no draft calls, got %d", f.generator.draftCalls)
	}
	if len(f.responses.responses) != 0 {
		t.Errorf("expected no stored responses, got %d", len(f.responses.responses))
	}
}

func TestSync_ExistingMessageSkipsClassification(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)
	f.dialer.mailbox.records = []mailer.Record{record("<known@example.com>")}

	// Seed the message as already stored.
	r := record("<known@example.com>")
	if _, err := f.emails.CreateEmail(context.Background(), models.EmailCreateParams{
		UserID: 1, MessageID: r.MessageID, FromAddress: r.From,
		ToAddress: "me@example.com", Subject: r.Subject, TextBody: r.Text, ReceivedAt: r.Date,
	}); err != nil {
		t.Fatalf("seeding email: %v", err)
	}

	result, err := f.svc.Sync(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.NewEmails != 0 {
		t.Errorf("expected 0 new emails, got %d", result.NewEmails)
	}
	if f.generator.classifyCalls != 0 {
		t.Errorf("existence check must short-circuit before classification, got %d calls", f.generator.classifyCalls)
	}
}

func TestSync_SameMessageTwiceInOnePass(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)
	f.dialer.mailbox.records = []mailer.Record{
		record("<dup@example.com>"),
		record("<dup@example.com>"),
	}

	result, err := f.svc.Sync(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.NewEmails != 1 {
		t.Errorf("expected 1 new email, got %d", result.NewEmails)
	}
	if f.generator.classifyCalls != 1 {
		t.Errorf("expected 1 classification call, got %d", f.generator.classifyCalls)
	}
}

func TestSync_AdvancesWatermarkEvenWithNoMessages(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)

	before := time.Now()
	if _, err := f.svc.Sync(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	settings, _ := f.settings.GetEmailSettingsByUserID(context.Background(), 1)
	if settings.LastSynced == nil || settings.LastSynced.Before(before) {
		t.Error("expected last_synced to advance to now")
	}
}

func TestSync_WatermarkDefaultsToLookback(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)

	if _, err := f.svc.Sync(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	since := f.dialer.mailbox.lastSince
	expected := time.Now().Add(-3 * 24 * time.Hour)
	if since.Before(expected.Add(-time.Minute)) || since.After(expected.Add(time.Minute)) {
		t.Errorf("expected watermark ~3 days back, got %v", since)
	}
}

func TestSync_UsesStoredWatermark(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)

	lastSynced := time.Now().Add(-2 * time.Hour)
	_ = f.settings.UpdateLastSynced(context.Background(), 1, lastSynced)

	if _, err := f.svc.Sync(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !f.dialer.mailbox.lastSince.Equal(lastSynced) {
		t.Errorf("expected watermark %v, got %v", lastSynced, f.dialer.mailbox.lastSince)
	}
}

func TestSync_FetchErrorLeavesWatermarkUnchanged(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)
	f.dialer.mailbox.fetchErr = errors.New("connection reset")

	if _, err := f.svc.Sync(context.Background(), 1); err == nil {
		t.Fatal("expected fetch error to propagate")
	}

	settings, _ := f.settings.GetEmailSettingsByUserID(context.Background(), 1)
	if settings.LastSynced != nil {
		t.Error("watermark must not advance on a failed pass")
	}
}

func TestSync_DraftFailureStillStoresEmail(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)
	f.generator.needsResponse = true
	f.generator.draftErr = errors.New("model unavailable")
	f.dialer.mailbox.records = []mailer.Record{record("<msg-1@example.com>")}

	result, err := f.svc.Sync(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.NewEmails != 1 {
		t.Errorf("expected 1 new email, got %d", result.NewEmails)
	}

	email, _ := f.emails.GetEmailByMessageID(context.Background(), 1, "<msg-1@example.com>")
	if email.ResponseGenerated {
		t.Error("response_generated must stay false when drafting fails")
	}
}

func TestGenerateResponse_UsesOnlyActiveContexts(t *testing.T) {
	f := newFixture(t)
	f.contexts.contexts = []models.Context{
		{ID: 1, UserID: 1, Name: "active doc", Content: "keep", IsActive: true},
		{ID: 2, UserID: 1, Name: "inactive doc", Content: "drop", IsActive: false},
	}

	email, _ := f.emails.CreateEmail(context.Background(), models.EmailCreateParams{
		UserID: 1, MessageID: "<m@e>", FromAddress: "a@b.c", ToAddress: "me", TextBody: "body", ReceivedAt: time.Now(),
	})

	if err := f.svc.GenerateResponse(context.Background(), email); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(f.generator.seenContexts) != 1 || f.generator.seenContexts[0].Name != "active doc" {
		t.Errorf("expected only the active context, got %+v", f.generator.seenContexts)
	}
}

func TestSendResponse_MarksSentAndPreservesDraft(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)

	var sent mailer.Reply
	f.svc.sender = func(_ mailer.Credentials, reply mailer.Reply) error {
		sent = reply
		return nil
	}

	email, _ := f.emails.CreateEmail(context.Background(), models.EmailCreateParams{
		UserID: 1, MessageID: "<orig@example.com>", FromAddress: "John <john@example.com>",
		ToAddress: "me@example.com", Subject: "Budget", TextBody: "confirm?", ReceivedAt: time.Now(),
	})
	resp, _ := f.responses.CreateEmailResponse(context.Background(), email.ID, 1, "Confirmed.", nil)

	if err := f.svc.SendResponse(context.Background(), resp, email, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := f.responses.GetEmailResponseByID(context.Background(), resp.ID)
	if stored.Status != models.ResponseStatusSent {
		t.Errorf("expected status sent, got %q", stored.Status)
	}
	if stored.SentAt == nil {
		t.Error("expected sent_at to be set")
	}
	if stored.DraftResponse != "Confirmed." {
		t.Errorf("draft must not change without an edited body, got %q", stored.DraftResponse)
	}
	if sent.Body != "Confirmed." {
		t.Errorf("expected stored draft to be sent, got %q", sent.Body)
	}
	if sent.OrigMessageID != "<orig@example.com>" {
		t.Errorf("expected threading to the original message, got %q", sent.OrigMessageID)
	}
}

func TestSendResponse_EditedBodyIsStoredAndSent(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)

	var sent mailer.Reply
	f.svc.sender = func(_ mailer.Credentials, reply mailer.Reply) error {
		sent = reply
		return nil
	}

	email, _ := f.emails.CreateEmail(context.Background(), models.EmailCreateParams{
		UserID: 1, MessageID: "<orig@example.com>", FromAddress: "john@example.com",
		ToAddress: "me@example.com", Subject: "Budget", TextBody: "confirm?", ReceivedAt: time.Now(),
	})
	resp, _ := f.responses.CreateEmailResponse(context.Background(), email.ID, 1, "Confirmed.", nil)

	if err := f.svc.SendResponse(context.Background(), resp, email, "Confirmed, with caveats."); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := f.responses.GetEmailResponseByID(context.Background(), resp.ID)
	if stored.DraftResponse != "Confirmed, with caveats." {
		t.Errorf("expected edited body stored, got %q", stored.DraftResponse)
	}
	if sent.Body != "Confirmed, with caveats." {
		t.Errorf("expected edited body sent, got %q", sent.Body)
	}
}

func TestSendResponse_SendFailureLeavesStatus(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)

	f.svc.sender = func(_ mailer.Credentials, _ mailer.Reply) error {
		return errors.New("smtp unavailable")
	}

	email, _ := f.emails.CreateEmail(context.Background(), models.EmailCreateParams{
		UserID: 1, MessageID: "<orig@example.com>", FromAddress: "john@example.com",
		ToAddress: "me@example.com", Subject: "Budget", TextBody: "confirm?", ReceivedAt: time.Now(),
	})
	resp, _ := f.responses.CreateEmailResponse(context.Background(), email.ID, 1, "Confirmed.", nil)

	if err := f.svc.SendResponse(context.Background(), resp, email, ""); err == nil {
		t.Fatal("expected send error to propagate")
	}

	stored, _ := f.responses.GetEmailResponseByID(context.Background(), resp.ID)
	if stored.Status != models.ResponseStatusDraft {
		t.Errorf("status must stay draft on send failure, got %q", stored.Status)
	}
}

func TestSync_DecryptFailureWithRotatedKey(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 1, true)

	// Simulate a key rotation by swapping the service's vault.
	otherVault, _ := vault.New(bytes.Repeat([]byte{0x99}, 32))
	f.svc.vault = otherVault

	_, err := f.svc.Sync(context.Background(), 1)
	if err == nil {
		t.Fatal("expected decryption error after key change")
	}
	if !errors.Is(err, vault.ErrDecrypt) {
		// Wrong-key CBC decryption can also fail at the JSON decode step.
		if !strings.Contains(err.Error(), "credentials") {
			t.Errorf("expected a credentials error, got %v", err)
		}
	}
}
