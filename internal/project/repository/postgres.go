package repository

import (
	"context"
	"database/sql"
	"errors"

	"task-manager/backend/internal/project/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a project repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO projects (id, name, created_at) VALUES ($1, $2, $3)",
		p.ID, p.Name, p.CreatedAt)
	return err
}

// GetByID returns the project for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM projects WHERE id = $1", id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser returns projects the user is a member of, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.created_at FROM projects p
		 JOIN project_members pm ON pm.project_id = p.id
		 WHERE pm.user_id = $1
		 ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, p *domain.Project) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE projects SET name = $2 WHERE id = $1", p.ID, p.Name)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = $1", id)
	return err
}

// AddMember adds or replaces the user's membership role.
func (r *PostgresRepository) AddMember(ctx context.Context, m *domain.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (id, project_id, user_id, role)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		m.ID, m.ProjectID, m.UserID, m.Role)
	return err
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM project_members WHERE project_id = $1 AND user_id = $2", projectID, userID)
	return err
}

// GetMemberRole returns the user's role in the project, or "" for non-members.
func (r *PostgresRepository) GetMemberRole(ctx context.Context, projectID, userID string) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		"SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2",
		projectID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, projectID string) ([]*domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, user_id, role FROM project_members
		 WHERE project_id = $1 ORDER BY role, user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
