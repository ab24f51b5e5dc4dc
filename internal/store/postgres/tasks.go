package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/domyjob/domyjob/internal/models"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) CreateTask(ctx context.Context, userID int64, title, description, status, priority string, dueDate *time.Time) (*models.Task, error) {
	task := &models.Task{
		PublicID:    uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		DueDate:     dueDate,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (public_id, user_id, title, description, status, priority, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		task.PublicID, task.UserID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return task, nil
}

func (s *TaskStore) GetTaskByID(ctx context.Context, id int64) (*models.Task, error) {
	task := &models.Task{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, user_id, title, description, status, priority, due_date, created_at, updated_at
		 FROM tasks WHERE id = $1`,
		id,
	).Scan(&task.ID, &task.PublicID, &task.UserID, &task.Title, &task.Description,
		&task.Status, &task.Priority, &task.DueDate, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskStore) GetTasksByUserID(ctx context.Context, userID int64) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, public_id, user_id, title, description, status, priority, due_date, created_at, updated_at
		 FROM tasks WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.PublicID, &t.UserID, &t.Title, &t.Description,
			&t.Status, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) UpdateTask(ctx context.Context, task *models.Task) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = $2, description = $3, status = $4, priority = $5, due_date = $6, updated_at = NOW()
		 WHERE id = $1`,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
	)
	return err
}
