// Package service implements task CRUD within a project, delegating
// authorization to the project's access model.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"task-manager/backend/internal/task/domain"
	"task-manager/backend/internal/task/repository"
)

// Sentinel errors for the task service; handler maps them to HTTP statuses.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrInvalidStatus = errors.New("invalid task status")
	ErrTitleRequired = errors.New("task title is required")
)

// ProjectAccess authorizes project-scoped actions for a caller.
type ProjectAccess interface {
	Authorize(ctx context.Context, callerID, projectID, action string) error
}

// TaskInput carries caller-supplied task fields.
type TaskInput struct {
	Title       string
	Description string
	Status      string
	DueDate     *time.Time
}

// Service implements task operations within a project.
type Service struct {
	repo    repository.Repository
	access  ProjectAccess
}

// NewService returns a task Service.
func NewService(repo repository.Repository, access ProjectAccess) *Service {
	return &Service{repo: repo, access: access}
}

// Create adds a task to the project. Status defaults to PENDING.
func (s *Service) Create(ctx context.Context, callerID, projectID string, in TaskInput) (*domain.Task, error) {
	if err := s.access.Authorize(ctx, callerID, projectID, "task.create"); err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, ErrTitleRequired
	}
	if in.Status == "" {
		in.Status = domain.StatusPending
	}
	if !domain.ValidStatus(in.Status) {
		return nil, ErrInvalidStatus
	}
	now := time.Now().UTC()
	t := &domain.Task{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		DueDate:     in.DueDate,
		CreatedBy:   callerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the task if the caller may view its project. The task must
// belong to the named project; a task id from another project is not found.
func (s *Service) Get(ctx context.Context, callerID, projectID, taskID string) (*domain.Task, error) {
	if err := s.access.Authorize(ctx, callerID, projectID, "task.view"); err != nil {
		return nil, err
	}
	return s.getInProject(ctx, projectID, taskID)
}

// List returns the project's tasks, newest first.
func (s *Service) List(ctx context.Context, callerID, projectID string) ([]*domain.Task, error) {
	if err := s.access.Authorize(ctx, callerID, projectID, "task.view"); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

// Update replaces the task's caller-editable fields.
func (s *Service) Update(ctx context.Context, callerID, projectID, taskID string, in TaskInput) (*domain.Task, error) {
	if err := s.access.Authorize(ctx, callerID, projectID, "task.update"); err != nil {
		return nil, err
	}
	t, err := s.getInProject(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if in.Status != "" && !domain.ValidStatus(in.Status) {
		return nil, ErrInvalidStatus
	}
	if in.Title != "" {
		t.Title = in.Title
	}
	t.Description = in.Description
	if in.Status != "" {
		t.Status = in.Status
	}
	t.DueDate = in.DueDate
	t.UpdatedAt = time.Now().UTC()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes the task.
func (s *Service) Delete(ctx context.Context, callerID, projectID, taskID string) error {
	if err := s.access.Authorize(ctx, callerID, projectID, "task.delete"); err != nil {
		return err
	}
	if _, err := s.getInProject(ctx, projectID, taskID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, taskID)
}

func (s *Service) getInProject(ctx context.Context, projectID, taskID string) (*domain.Task, error) {
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil || t.ProjectID != projectID {
		return nil, ErrTaskNotFound
	}
	return t, nil
}
