package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/domyjob/domyjob/internal/models"
)

type ContextStore struct {
	db *sql.DB
}

func NewContextStore(db *sql.DB) *ContextStore {
	return &ContextStore{db: db}
}

func (s *ContextStore) CreateContext(ctx context.Context, params models.ContextCreateParams) (*models.Context, error) {
	c := &models.Context{
		PublicID:    uuid.New(),
		UserID:      params.UserID,
		Name:        params.Name,
		ContentType: params.ContentType,
		Content:     params.Content,
		FileSize:    params.FileSize,
		PageCount:   params.PageCount,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO contexts (public_id, user_id, name, content_type, content, file_size, page_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, is_active, created_at, updated_at`,
		c.PublicID, c.UserID, c.Name, c.ContentType, c.Content, c.FileSize, c.PageCount,
	).Scan(&c.ID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (s *ContextStore) GetContextByID(ctx context.Context, id int64) (*models.Context, error) {
	c := &models.Context{}
	err := s.db.QueryRowContext(ctx, selectContext+` WHERE id = $1`, id).Scan(
		&c.ID, &c.PublicID, &c.UserID, &c.Name, &c.ContentType, &c.Content,
		&c.FileSize, &c.PageCount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ContextStore) GetContextsByUserID(ctx context.Context, userID int64) ([]models.Context, error) {
	return s.list(ctx, selectContext+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *ContextStore) GetActiveContextsByUserID(ctx context.Context, userID int64) ([]models.Context, error) {
	return s.list(ctx, selectContext+` WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at DESC`, userID)
}

func (s *ContextStore) SetContextActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contexts SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		id, active,
	)
	return err
}

func (s *ContextStore) DeleteContext(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contexts WHERE id = $1`, id)
	return err
}

const selectContext = `SELECT id, public_id, user_id, name, content_type, content, file_size, page_count, is_active, created_at, updated_at
  FROM contexts`

func (s *ContextStore) list(ctx context.Context, query string, args ...interface{}) ([]models.Context, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contexts []models.Context
	for rows.Next() {
		var c models.Context
		if err := rows.Scan(&c.ID, &c.PublicID, &c.UserID, &c.Name, &c.ContentType, &c.Content,
			&c.FileSize, &c.PageCount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}
