package repository

import (
	"context"

	"task-manager/backend/internal/project/domain"
)

// Repository defines persistence for projects and their memberships.
type Repository interface {
	Create(ctx context.Context, p *domain.Project) error
	// GetByID returns the project for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	// ListByUser returns projects the user is a member of, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error

	// AddMember adds or replaces the user's membership role.
	AddMember(ctx context.Context, m *domain.Member) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	// GetMemberRole returns the user's role in the project, or "" for non-members.
	GetMemberRole(ctx context.Context, projectID, userID string) (string, error)
	ListMembers(ctx context.Context, projectID string) ([]*domain.Member, error)
}
