package repository

import (
	"context"
	"time"

	"task-manager/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Implementations must make each
// operation individually atomic; the service layer relies on that instead of
// in-process locking.
type Repository interface {
	// Create persists a new session. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetByRefreshHash returns the non-revoked session holding the given
	// refresh credential hash, or nil if there is none.
	GetByRefreshHash(ctx context.Context, hash string) (*domain.Session, error)
	// ListActiveByOwner returns the owner's non-revoked sessions, newest-created first.
	ListActiveByOwner(ctx context.Context, ownerID string) ([]*domain.Session, error)
	// CountActiveByOwner returns the number of non-revoked sessions for the owner.
	CountActiveByOwner(ctx context.Context, ownerID string) (int64, error)
	// UpdateAccessHash replaces the stored access credential hash.
	// Missing sessions are not an error; returns the number of rows updated.
	UpdateAccessHash(ctx context.Context, id, hash string) (int64, error)
	// UpdateRefreshHash replaces the stored refresh credential hash.
	// Missing sessions are not an error; returns the number of rows updated.
	UpdateRefreshHash(ctx context.Context, id, hash string) (int64, error)
	// Touch updates last_accessed_at. Best-effort; lost touches are harmless.
	Touch(ctx context.Context, id string, at time.Time) error
	// Revoke marks the session revoked with the given reason at the given time.
	// Already-revoked sessions keep their original revocation record (the update
	// only applies where revoked is still false).
	Revoke(ctx context.Context, id, reason string, at time.Time) error
	// RevokeAllByOwner revokes every non-revoked session of the owner in one
	// atomic statement, preserving earlier revocation records.
	RevokeAllByOwner(ctx context.Context, ownerID, reason string, at time.Time) error
	// DeleteByID removes the session record entirely.
	DeleteByID(ctx context.Context, id string) error
	// DeleteRefreshExpiredBefore removes every session whose refresh horizon
	// passed before the cutoff, revoked or not. Returns the number deleted.
	DeleteRefreshExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
