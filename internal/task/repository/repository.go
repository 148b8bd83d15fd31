package repository

import (
	"context"

	"task-manager/backend/internal/task/domain"
)

// Repository defines persistence for tasks.
type Repository interface {
	Create(ctx context.Context, t *domain.Task) error
	// GetByID returns the task for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	// ListByProject returns the project's tasks, newest first.
	ListByProject(ctx context.Context, projectID string) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
}
