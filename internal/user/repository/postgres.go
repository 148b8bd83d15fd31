package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"task-manager/backend/internal/user/domain"
)

const userColumns = "id, first_name, last_name, email, password_hash, created_at, updated_at"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return err
}

// Update updates the existing user record. A missing user is not an error.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, email = $4, password_hash = $5, updated_at = $6
		 WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.UpdatedAt)
	return err
}

// GetRoles returns the role names assigned to the user, sorted.
func (r *PostgresRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// AssignRole grants the named role to the user, creating the role row on
// first use. Granting an already-held role is a no-op.
func (r *PostgresRepository) AssignRole(ctx context.Context, userID, role string) error {
	var roleID string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = $1", role).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		roleID = uuid.New().String()
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO roles (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING", roleID, role)
		if err != nil {
			return err
		}
		// A concurrent insert may have won; re-read the canonical id.
		if err = r.db.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = $1", role).Scan(&roleID); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", userID, roleID)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
