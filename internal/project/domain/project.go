package domain

import (
	"errors"
	"time"
)

// Project groups tasks and members.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Member binds a user to a project with a role.
type Member struct {
	ID        string
	ProjectID string
	UserID    string
	Role      string
}

// Project member roles.
const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// ValidRole reports whether role is a known project role.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Validate validates the project for persistence.
func (p *Project) Validate() error {
	if p.Name == "" {
		return errors.New("project name is required")
	}
	return nil
}
