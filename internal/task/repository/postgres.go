package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"task-manager/backend/internal/task/domain"
)

const taskColumns = "id, project_id, title, description, status, due_date, created_by, created_at, updated_at"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a task repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, title, description, status, due_date, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, timeToNullTime(t.DueDate), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetByID returns the task for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByProject returns the project's tasks, newest first.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE project_id = $1 ORDER BY created_at DESC", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET title = $2, description = $3, status = $4, due_date = $5, updated_at = $6
		 WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Status, timeToNullTime(t.DueDate), t.UpdatedAt)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var due sql.NullTime
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &due, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return &t, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
