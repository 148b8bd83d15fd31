// Package service implements the session lifecycle: creation, validation,
// credential recording, revocation, and enumeration. A session moves from
// active to revoked (terminal) and is reclaimed by the janitor once its
// refresh horizon passes; no transition leaves the revoked state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"task-manager/backend/internal/security"
	"task-manager/backend/internal/session/domain"
	"task-manager/backend/internal/session/repository"
)

// Sentinel errors; handlers map them to HTTP statuses.
var (
	// ErrSessionNotFound is returned when the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked is returned when the referenced session has been revoked.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrStoreUnavailable is returned when the session store fails transiently.
	// Callers can retry; it is never folded into an authorization failure.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Service orchestrates session lifecycle against the session store. All
// mutations go through the store's atomic operations; the service holds no
// per-session state of its own.
type Service struct {
	repo         repository.Repository
	accessTTL    time.Duration
	refreshTTL   time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// NewService returns a Service with the given store and horizons.
// storeTimeout bounds each store operation; zero disables the bound.
func NewService(repo repository.Repository, accessTTL, refreshTTL, storeTimeout time.Duration) *Service {
	return &Service{
		repo:         repo,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession generates a new session for owner and persists it. Credential
// hashes start empty: the session id must exist before the codec can issue
// credentials that reference it, so the caller records the hashes afterwards.
func (s *Service) CreateSession(ctx context.Context, ownerID, deviceInfo, ipAddress, userAgent, sessionType string) (*domain.Session, error) {
	if sessionType == "" {
		sessionType = domain.SessionTypeWeb
	}
	now := s.now()
	sess := &domain.Session{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		DeviceInfo:       deviceInfo,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		SessionType:      sessionType,
		CreatedAt:        now,
		LastAccessedAt:   now,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	// Creation is never silently retried: the caller must know whether the
	// session exists before handing out credentials for it.
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sess, nil
}

// RecordAccessCredential hashes the raw access credential and stores the
// digest on the session. A missing session is a no-op, not an error: issuance
// bookkeeping is best-effort and may race the janitor.
func (s *Service) RecordAccessCredential(ctx context.Context, sessionID, rawCredential string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	_, err := s.repo.UpdateAccessHash(ctx, sessionID, security.HashCredential(rawCredential))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RecordRefreshCredential hashes the raw refresh credential and stores the
// digest on the session. A missing session is a no-op, not an error.
func (s *Service) RecordRefreshCredential(ctx context.Context, sessionID, rawCredential string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	_, err := s.repo.UpdateRefreshHash(ctx, sessionID, security.HashCredential(rawCredential))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ValidateAccess reports whether the session may be used for access right now.
// It fails closed: a missing, revoked, or access-expired session is simply not
// valid, and the caller is deliberately not told which. On success the
// last-accessed timestamp is touched best-effort.
//
// This is the hot path: one read plus one write.
func (s *Service) ValidateAccess(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.getByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	now := s.now()
	if !sess.UsableForAccess(now) {
		return false, nil
	}
	tctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.repo.Touch(tctx, sessionID, now); err != nil {
		// Lost touches are harmless; last_accessed_at is not a security input.
		log.Printf("session: touch %s: %v", sessionID, err)
	}
	return true, nil
}

// ValidateRefresh reports whether the raw refresh credential maps to a live
// session inside its refresh horizon. Fails closed like ValidateAccess.
func (s *Service) ValidateRefresh(ctx context.Context, rawCredential string) (bool, error) {
	sess, err := s.getByRefreshHash(ctx, security.HashCredential(rawCredential))
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	return sess.UsableForRefresh(s.now()), nil
}

// LookupByRefresh returns the session matching the raw refresh credential for
// rotation, or nil when there is no live match. Revoked sessions never match;
// the store query already excludes them.
func (s *Service) LookupByRefresh(ctx context.Context, rawCredential string) (*domain.Session, error) {
	return s.getByRefreshHash(ctx, security.HashCredential(rawCredential))
}

// Revoke marks the session revoked with the given reason. Idempotent: if the
// session is already revoked or absent this is a no-op and the first
// revocation's timestamp and reason are preserved. A store failure is
// surfaced, never retried, so a caller cannot believe a logout succeeded when
// it did not.
func (s *Service) Revoke(ctx context.Context, sessionID, reason string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.repo.Revoke(ctx, sessionID, reason, s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAllForOwner atomically revokes every live session of the owner.
// Used for "log out everywhere" and security incidents.
func (s *Service) RevokeAllForOwner(ctx context.Context, ownerID, reason string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.repo.RevokeAllByOwner(ctx, ownerID, reason, s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListActiveSessions returns the owner's non-revoked sessions, newest-created
// first. Sessions past their access horizon still appear; only revocation
// removes a session from this list.
func (s *Service) ListActiveSessions(ctx context.Context, ownerID string) ([]*domain.Session, error) {
	var out []*domain.Session
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ListActiveByOwner(ctx, ownerID)
		return err
	})
	return out, err
}

// ActiveSessionCount returns the number of non-revoked sessions for the owner.
func (s *Service) ActiveSessionCount(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.CountActiveByOwner(ctx, ownerID)
		return err
	})
	return n, err
}

// Sweep hard-deletes sessions whose refresh horizon passed before now,
// revoked or not, and returns the number reclaimed. Revoked sessions inside
// their refresh horizon are retained for their audit trail.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.repo.DeleteRefreshExpiredBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *Service) getByID(ctx context.Context, id string) (*domain.Session, error) {
	var sess *domain.Session
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.repo.GetByID(ctx, id)
		return err
	})
	return sess, err
}

func (s *Service) getByRefreshHash(ctx context.Context, hash string) (*domain.Session, error) {
	var sess *domain.Session
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.repo.GetByRefreshHash(ctx, hash)
		return err
	})
	return sess, err
}

// readWithRetry runs a read against the store, retrying once on failure.
// A second failure surfaces as ErrStoreUnavailable so callers can tell
// "try again" apart from "not authorized".
func (s *Service) readWithRetry(ctx context.Context, read func(context.Context) error) error {
	rctx, cancel := s.bound(ctx)
	err := read(rctx)
	cancel()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
	}
	rctx, cancel = s.bound(ctx)
	defer cancel()
	if err = read(rctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}
