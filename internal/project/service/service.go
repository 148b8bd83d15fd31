// Package service implements project CRUD and membership management with
// policy-based authorization.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"task-manager/backend/internal/policy/engine"
	"task-manager/backend/internal/project/domain"
	"task-manager/backend/internal/project/repository"
)

// Sentinel errors for the project service; handler maps them to HTTP statuses.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidRole     = errors.New("invalid project role")
	ErrLastOwner       = errors.New("cannot remove the last owner")
)

// UserRoles returns the caller's global role names for policy input.
type UserRoles interface {
	GetRoles(ctx context.Context, userID string) ([]string, error)
}

// Service implements project operations. Every operation authorizes the
// caller through the policy evaluator before touching state.
type Service struct {
	repo      repository.Repository
	userRoles UserRoles
	policy    engine.Evaluator
}

// NewService returns a project Service.
func NewService(repo repository.Repository, userRoles UserRoles, policy engine.Evaluator) *Service {
	return &Service{repo: repo, userRoles: userRoles, policy: policy}
}

// Create creates a project and makes the caller its OWNER.
func (s *Service) Create(ctx context.Context, callerID, name string) (*domain.Project, error) {
	p := &domain.Project{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	owner := &domain.Member{
		ID:        uuid.New().String(),
		ProjectID: p.ID,
		UserID:    callerID,
		Role:      domain.RoleOwner,
	}
	if err := s.repo.AddMember(ctx, owner); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the project if the caller may view it.
func (s *Service) Get(ctx context.Context, callerID, projectID string) (*domain.Project, error) {
	if err := s.authorize(ctx, callerID, projectID, "project.view"); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// List returns the caller's projects. No policy check: membership itself is
// the filter.
func (s *Service) List(ctx context.Context, callerID string) ([]*domain.Project, error) {
	return s.repo.ListByUser(ctx, callerID)
}

// Update renames the project.
func (s *Service) Update(ctx context.Context, callerID, projectID, name string) (*domain.Project, error) {
	if err := s.authorize(ctx, callerID, projectID, "project.update"); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	p.Name = name
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the project and, via cascade, its tasks and memberships.
func (s *Service) Delete(ctx context.Context, callerID, projectID string) error {
	if err := s.authorize(ctx, callerID, projectID, "project.delete"); err != nil {
		return err
	}
	return s.repo.Delete(ctx, projectID)
}

// AddMember grants userID the given role on the project.
func (s *Service) AddMember(ctx context.Context, callerID, projectID, userID, role string) error {
	if !domain.ValidRole(role) {
		return ErrInvalidRole
	}
	if err := s.authorize(ctx, callerID, projectID, "project.manage_members"); err != nil {
		return err
	}
	m := &domain.Member{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
	}
	return s.repo.AddMember(ctx, m)
}

// RemoveMember removes userID from the project. The last OWNER cannot be
// removed; a project without an owner would be unmanageable.
func (s *Service) RemoveMember(ctx context.Context, callerID, projectID, userID string) error {
	if err := s.authorize(ctx, callerID, projectID, "project.manage_members"); err != nil {
		return err
	}
	role, err := s.repo.GetMemberRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if role == domain.RoleOwner {
		members, err := s.repo.ListMembers(ctx, projectID)
		if err != nil {
			return err
		}
		owners := 0
		for _, m := range members {
			if m.Role == domain.RoleOwner {
				owners++
			}
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}
	return s.repo.RemoveMember(ctx, projectID, userID)
}

// ListMembers returns the project's memberships if the caller may view it.
func (s *Service) ListMembers(ctx context.Context, callerID, projectID string) ([]*domain.Member, error) {
	if err := s.authorize(ctx, callerID, projectID, "project.view"); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, projectID)
}

// Authorize checks whether the caller may perform action on the project.
// Exposed for the task service, which shares the project's access model.
func (s *Service) Authorize(ctx context.Context, callerID, projectID, action string) error {
	return s.authorize(ctx, callerID, projectID, action)
}

func (s *Service) authorize(ctx context.Context, callerID, projectID, action string) error {
	memberRole, err := s.repo.GetMemberRole(ctx, projectID, callerID)
	if err != nil {
		return err
	}
	globalRoles, err := s.userRoles.GetRoles(ctx, callerID)
	if err != nil {
		return err
	}
	allowed, err := s.policy.Allow(ctx, engine.AccessInput{
		UserID:      callerID,
		GlobalRoles: globalRoles,
		ProjectRole: memberRole,
		Action:      action,
	})
	if err != nil {
		// Fail closed on evaluation problems.
		return ErrForbidden
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}
