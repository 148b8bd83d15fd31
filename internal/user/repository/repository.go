package repository

import (
	"context"

	"task-manager/backend/internal/user/domain"
)

// Repository defines persistence for users and their role assignments.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	// GetRoles returns the role names assigned to the user, sorted.
	GetRoles(ctx context.Context, userID string) ([]string, error)
	// AssignRole grants the named role to the user. Granting an already-held
	// role is a no-op.
	AssignRole(ctx context.Context, userID, role string) error
}
