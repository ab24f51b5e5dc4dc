package postgres

import (
	"context"
	"database/sql"

	"github.com/domyjob/domyjob/internal/models"
)

type LearningProgressStore struct {
	db *sql.DB
}

func NewLearningProgressStore(db *sql.DB) *LearningProgressStore {
	return &LearningProgressStore{db: db}
}

func (s *LearningProgressStore) UpsertLearningProgress(ctx context.Context, userID int64, category string, completedCount, totalCount int) (*models.LearningProgress, error) {
	lp := &models.LearningProgress{
		UserID:         userID,
		Category:       category,
		CompletedCount: completedCount,
		TotalCount:     totalCount,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO learning_progress (user_id, category, completed_count, total_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, category) DO UPDATE SET
		   completed_count = EXCLUDED.completed_count,
		   total_count = EXCLUDED.total_count,
		   updated_at = NOW()
		 RETURNING id, updated_at`,
		lp.UserID, lp.Category, lp.CompletedCount, lp.TotalCount,
	).Scan(&lp.ID, &lp.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return lp, nil
}

func (s *LearningProgressStore) GetLearningProgressByUserID(ctx context.Context, userID int64) ([]models.LearningProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, category, completed_count, total_count, updated_at
		 FROM learning_progress WHERE user_id = $1
		 ORDER BY category ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []models.LearningProgress
	for rows.Next() {
		var lp models.LearningProgress
		if err := rows.Scan(&lp.ID, &lp.UserID, &lp.Category, &lp.CompletedCount, &lp.TotalCount, &lp.UpdatedAt); err != nil {
			return nil, err
		}
		progress = append(progress, lp)
	}
	return progress, rows.Err()
}
