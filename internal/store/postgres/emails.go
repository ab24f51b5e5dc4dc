package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
)

type EmailStore struct {
	db *sql.DB
}

func NewEmailStore(db *sql.DB) *EmailStore {
	return &EmailStore{db: db}
}

func (s *EmailStore) CreateEmail(ctx context.Context, params models.EmailCreateParams) (*models.Email, error) {
	email := &models.Email{
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
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO emails (public_id, user_id, message_id, from_address, to_address, cc_address,
		                     subject, text_body, html_body, received_at, needs_response, folder)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, is_read, response_generated, created_at`,
		email.PublicID, email.UserID, email.MessageID, email.FromAddress, email.ToAddress, email.CCAddress,
		email.Subject, email.TextBody, email.HTMLBody, email.ReceivedAt, email.NeedsResponse, email.Folder,
	).Scan(&email.ID, &email.IsRead, &email.ResponseGenerated, &email.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("message %q: %w", email.MessageID, store.ErrDuplicateMessageID)
		}
		return nil, err
	}

	return email, nil
}

func (s *EmailStore) GetEmailByID(ctx context.Context, id int64) (*models.Email, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectEmail+` WHERE id = $1`, id))
}

func (s *EmailStore) GetEmailByMessageID(ctx context.Context, userID int64, messageID string) (*models.Email, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectEmail+` WHERE user_id = $1 AND message_id = $2`, userID, messageID))
}

func (s *EmailStore) ListEmailsByUserID(ctx context.Context, userID int64, query models.EmailQuery) ([]models.Email, error) {
	q := selectEmail + ` WHERE user_id = $1`
	args := []interface{}{userID}
	if query.NeedsResponse != nil {
		args = append(args, *query.NeedsResponse)
		q += fmt.Sprintf(` AND needs_response = $%d`, len(args))
	}
	args = append(args, query.Limit)
	q += fmt.Sprintf(` ORDER BY received_at DESC LIMIT $%d`, len(args))
	args = append(args, query.Offset)
	q += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []models.Email
	for rows.Next() {
		var e models.Email
		if err := scanEmail(rows, &e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (s *EmailStore) MarkEmailRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE emails SET is_read = TRUE WHERE id = $1`, id)
	return err
}

func (s *EmailStore) SetResponseGenerated(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE emails SET response_generated = TRUE WHERE id = $1`, id)
	return err
}

const selectEmail = `SELECT id, public_id, user_id, message_id, from_address, to_address, cc_address,
       subject, text_body, html_body, received_at, is_read, needs_response, response_generated, folder, created_at
  FROM emails`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *EmailStore) scanOne(row rowScanner) (*models.Email, error) {
	email := &models.Email{}
	if err := scanEmail(row, email); err != nil {
		return nil, err
	}
	return email, nil
}

func scanEmail(row rowScanner, e *models.Email) error {
	return row.Scan(&e.ID, &e.PublicID, &e.UserID, &e.MessageID, &e.FromAddress, &e.ToAddress, &e.CCAddress,
		&e.Subject, &e.TextBody, &e.HTMLBody, &e.ReceivedAt, &e.IsRead, &e.NeedsResponse, &e.ResponseGenerated,
		&e.Folder, &e.CreatedAt)
}
