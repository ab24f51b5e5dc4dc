package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/domyjob/domyjob/internal/models"
)

// --- Shared mock stores used by the handler tests ---

type mockContextStore struct {
	contexts map[int64]*models.Context
	nextID   int64
}

func newMockContextStore() *mockContextStore {
	return &mockContextStore{contexts: make(map[int64]*models.Context), nextID: 1}
}

func (m *mockContextStore) CreateContext(_ context.Context, params models.ContextCreateParams) (*models.Context, error) {
	c := &models.Context{
		ID:          m.nextID,
		PublicID:    uuid.New(),
		UserID:      params.UserID,
		Name:        params.Name,
		ContentType: params.ContentType,
		Content:     params.Content,
		FileSize:    params.FileSize,
		PageCount:   params.PageCount,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	m.nextID++
	m.contexts[c.ID] = c
	return c, nil
}

func (m *mockContextStore) GetContextByID(_ context.Context, id int64) (*models.Context, error) {
	c, ok := m.contexts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockContextStore) GetContextsByUserID(_ context.Context, userID int64) ([]models.Context, error) {
	var out []models.Context
	for _, c := range m.contexts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockContextStore) GetActiveContextsByUserID(_ context.Context, userID int64) ([]models.Context, error) {
	var out []models.Context
	for _, c := range m.contexts {
		if c.UserID == userID && c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockContextStore) SetContextActive(_ context.Context, id int64, active bool) error {
	c, ok := m.contexts[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.IsActive = active
	return nil
}

func (m *mockContextStore) DeleteContext(_ context.Context, id int64) error {
	if _, ok := m.contexts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.contexts, id)
	return nil
}

type mockEmailStore struct {
	emails map[int64]*models.Email
	nextID int64
}

func newMockEmailStore() *mockEmailStore {
	return &mockEmailStore{emails: make(map[int64]*models.Email), nextID: 1}
}

func (m *mockEmailStore) addEmail(e *models.Email) {
	if e.ID == 0 {
		e.ID = m.nextID
		m.nextID++
	}
	m.emails[e.ID] = e
}

func (m *mockEmailStore) CreateEmail(_ context.Context, params models.EmailCreateParams) (*models.Email, error) {
	e := &models.Email{
		ID:        m.nextID,
		PublicID:  uuid.New(),
		UserID:    params.UserID,
		MessageID: params.MessageID,
		Subject:   params.Subject,
	}
	m.nextID++
	m.emails[e.ID] = e
	return e, nil
}

func (m *mockEmailStore) GetEmailByID(_ context.Context, id int64) (*models.Email, error) {
	e, ok := m.emails[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (m *mockEmailStore) GetEmailByMessageID(_ context.Context, userID int64, messageID string) (*models.Email, error) {
	for _, e := range m.emails {
		if e.UserID == userID && e.MessageID == messageID {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEmailStore) ListEmailsByUserID(_ context.Context, userID int64, query models.EmailQuery) ([]models.Email, error) {
	var out []models.Email
	for _, e := range m.emails {
		if e.UserID != userID {
			continue
		}
		if query.NeedsResponse != nil && e.NeedsResponse != *query.NeedsResponse {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockEmailStore) MarkEmailRead(_ context.Context, id int64) error {
	e, ok := m.emails[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.IsRead = true
	return nil
}

func (m *mockEmailStore) SetResponseGenerated(_ context.Context, id int64) error {
	e, ok := m.emails[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.ResponseGenerated = true
	return nil
}

type mockResponseStore struct {
	responses map[int64]*models.EmailResponse
	nextID    int64
}

func newMockResponseStore() *mockResponseStore {
	return &mockResponseStore{responses: make(map[int64]*models.EmailResponse), nextID: 1}
}

func (m *mockResponseStore) addResponse(r *models.EmailResponse) {
	if r.ID == 0 {
		r.ID = m.nextID
		m.nextID++
	}
	m.responses[r.ID] = r
}

func (m *mockResponseStore) CreateEmailResponse(_ context.Context, emailID, userID int64, draft string, actions []models.SuggestedAction) (*models.EmailResponse, error) {
	r := &models.EmailResponse{
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
	m.responses[r.ID] = r
	return r, nil
}

func (m *mockResponseStore) GetEmailResponseByID(_ context.Context, id int64) (*models.EmailResponse, error) {
	r, ok := m.responses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (m *mockResponseStore) ListEmailResponsesByEmailID(_ context.Context, emailID int64) ([]models.EmailResponse, error) {
	var out []models.EmailResponse
	for _, r := range m.responses {
		if r.EmailID == emailID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResponseStore) UpdateEmailResponseDraft(_ context.Context, id int64, draft, status string) error {
	r, ok := m.responses[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.DraftResponse = draft
	r.Status = status
	return nil
}

func (m *mockResponseStore) MarkEmailResponseSent(_ context.Context, id int64, sentAt time.Time) error {
	r, ok := m.responses[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = models.ResponseStatusSent
	r.SentAt = &sentAt
	return nil
}

type mockSettingsStore struct {
	byUser map[int64]*models.EmailSettings
}

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{byUser: make(map[int64]*models.EmailSettings)}
}

func (m *mockSettingsStore) UpsertEmailSettings(_ context.Context, userID int64, provider, emailAddress, encryptedCredentials string, isActive bool) (*models.EmailSettings, error) {
	s := &models.EmailSettings{
		ID:                   userID,
		UserID:               userID,
		Provider:             provider,
		EmailAddress:         emailAddress,
		EncryptedCredentials: encryptedCredentials,
		IsActive:             isActive,
	}
	m.byUser[userID] = s
	return s, nil
}

func (m *mockSettingsStore) GetEmailSettingsByUserID(_ context.Context, userID int64) (*models.EmailSettings, error) {
	s, ok := m.byUser[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockSettingsStore) UpdateLastSynced(_ context.Context, userID int64, syncedAt time.Time) error {
	s, ok := m.byUser[userID]
	if !ok {
		return sql.ErrNoRows
	}
	s.LastSynced = &syncedAt
	return nil
}

// memBlobStore keeps uploads in a map.
type memBlobStore struct {
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (m *memBlobStore) Put(_ context.Context, key, _ string, body []byte) error {
	m.objects[key] = body
	return nil
}

func (m *memBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return body, nil
}

func (m *memBlobStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}
