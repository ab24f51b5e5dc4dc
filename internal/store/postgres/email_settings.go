package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/domyjob/domyjob/internal/models"
)

type EmailSettingsStore struct {
	db *sql.DB
}

func NewEmailSettingsStore(db *sql.DB) *EmailSettingsStore {
	return &EmailSettingsStore{db: db}
}

func (s *EmailSettingsStore) UpsertEmailSettings(ctx context.Context, userID int64, provider, emailAddress, encryptedCredentials string, isActive bool) (*models.EmailSettings, error) {
	settings := &models.EmailSettings{
		UserID:               userID,
		Provider:             provider,
		EmailAddress:         emailAddress,
		EncryptedCredentials: encryptedCredentials,
		IsActive:             isActive,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO email_settings (user_id, provider, email_address, encrypted_credentials, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		   provider = EXCLUDED.provider,
		   email_address = EXCLUDED.email_address,
		   encrypted_credentials = EXCLUDED.encrypted_credentials,
		   is_active = EXCLUDED.is_active,
		   updated_at = NOW()
		 RETURNING id, last_synced, created_at, updated_at`,
		settings.UserID, settings.Provider, settings.EmailAddress, settings.EncryptedCredentials, settings.IsActive,
	).Scan(&settings.ID, &settings.LastSynced, &settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return settings, nil
}

func (s *EmailSettingsStore) GetEmailSettingsByUserID(ctx context.Context, userID int64) (*models.EmailSettings, error) {
	settings := &models.EmailSettings{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, email_address, encrypted_credentials, is_active, last_synced, created_at, updated_at
		 FROM email_settings WHERE user_id = $1`,
		userID,
	).Scan(&settings.ID, &settings.UserID, &settings.Provider, &settings.EmailAddress,
		&settings.EncryptedCredentials, &settings.IsActive, &settings.LastSynced,
		&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *EmailSettingsStore) UpdateLastSynced(ctx context.Context, userID int64, syncedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_settings SET last_synced = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, syncedAt,
	)
	return err
}
