package engine

import "context"

// AccessInput describes one authorization question: may a user holding the
// given project role (and global roles) perform the action?
type AccessInput struct {
	UserID      string
	GlobalRoles []string
	ProjectRole string // OWNER, ADMIN, MEMBER, or "" for non-members
	Action      string // e.g. project.view, task.create
}

// Evaluator answers project access questions. Implementations must fail
// closed: any evaluation problem denies the action.
type Evaluator interface {
	Allow(ctx context.Context, in AccessInput) (bool, error)
}
