package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/domyjob/domyjob/internal/models"
)

type EmailResponseStore struct {
	db *sql.DB
}

func NewEmailResponseStore(db *sql.DB) *EmailResponseStore {
	return &EmailResponseStore{db: db}
}

func (s *EmailResponseStore) CreateEmailResponse(ctx context.Context, emailID, userID int64, draft string, actions []models.SuggestedAction) (*models.EmailResponse, error) {
	if actions == nil {
		actions = []models.SuggestedAction{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("encoding suggested actions: %w", err)
	}

	resp := &models.EmailResponse{
		PublicID:         uuid.New(),
		EmailID:          emailID,
		UserID:           userID,
		DraftResponse:    draft,
		SuggestedActions: actions,
		Status:           models.ResponseStatusDraft,
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO email_responses (public_id, email_id, user_id, draft_response, suggested_actions, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		resp.PublicID, resp.EmailID, resp.UserID, resp.DraftResponse, actionsJSON, resp.Status,
	).Scan(&resp.ID, &resp.CreatedAt, &resp.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *EmailResponseStore) GetEmailResponseByID(ctx context.Context, id int64) (*models.EmailResponse, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, email_id, user_id, draft_response, suggested_actions, status, sent_at, created_at, updated_at
		 FROM email_responses WHERE id = $1`,
		id,
	)
	return scanEmailResponse(row)
}

func (s *EmailResponseStore) ListEmailResponsesByEmailID(ctx context.Context, emailID int64) ([]models.EmailResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, public_id, email_id, user_id, draft_response, suggested_actions, status, sent_at, created_at, updated_at
		 FROM email_responses WHERE email_id = $1
		 ORDER BY created_at DESC`,
		emailID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []models.EmailResponse
	for rows.Next() {
		resp, err := scanEmailResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, rows.Err()
}

func (s *EmailResponseStore) UpdateEmailResponseDraft(ctx context.Context, id int64, draft, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_responses SET draft_response = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, draft, status,
	)
	return err
}

func (s *EmailResponseStore) MarkEmailResponseSent(ctx context.Context, id int64, sentAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_responses SET status = $2, sent_at = $3, updated_at = NOW() WHERE id = $1`,
		id, models.ResponseStatusSent, sentAt,
	)
	return err
}

func scanEmailResponse(row rowScanner) (*models.EmailResponse, error) {
	resp := &models.EmailResponse{}
	var actionsJSON []byte
	err := row.Scan(&resp.ID, &resp.PublicID, &resp.EmailID, &resp.UserID, &resp.DraftResponse,
		&actionsJSON, &resp.Status, &resp.SentAt, &resp.CreatedAt, &resp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &resp.SuggestedActions); err != nil {
			return nil, fmt.Errorf("decoding suggested actions: %w", err)
		}
	}
	return resp, nil
}
