package repository

import (
	"context"

	"task-manager/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs. Audit entries are append-only.
type Repository interface {
	// Create persists the audit log. The entry must have ID set.
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByUser returns the user's audit entries newest first, paginated.
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}
