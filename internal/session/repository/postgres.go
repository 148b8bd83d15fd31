package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"task-manager/backend/internal/session/domain"
)

const sessionColumns = `id, owner_id, access_credential_hash, refresh_credential_hash,
	device_info, ip_address, user_agent, session_type,
	created_at, last_accessed_at, access_expires_at, refresh_expires_at,
	revoked, revoked_at, revoked_reason`

// PostgresRepository persists sessions in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.OwnerID, s.AccessCredentialHash, s.RefreshCredentialHash,
		s.DeviceInfo, s.IPAddress, s.UserAgent, s.SessionType,
		s.CreatedAt, s.LastAccessedAt, s.AccessExpiresAt, s.RefreshExpiresAt,
		s.Revoked, timeToNullTime(s.RevokedAt), sql.NullString{String: s.RevokedReason, Valid: s.RevokedReason != ""},
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetByRefreshHash returns the non-revoked session holding the given refresh
// credential hash, or nil if not found. Revoked sessions never match, so a
// revoked session's refresh credential cannot be used for rotation.
func (r *PostgresRepository) GetByRefreshHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE refresh_credential_hash = $1 AND NOT revoked`, hash)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListActiveByOwner returns the owner's non-revoked sessions, newest-created first.
// Sessions past their access horizon are included; expiry is a validation-time
// concern, not a listing filter.
func (r *PostgresRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE owner_id = $1 AND NOT revoked
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountActiveByOwner returns the number of non-revoked sessions for the owner.
func (r *PostgresRepository) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE owner_id = $1 AND NOT revoked`, ownerID).Scan(&n)
	return n, err
}

// UpdateAccessHash replaces the stored access credential hash for the session.
// Returns the number of rows updated; zero when the session does not exist.
func (r *PostgresRepository) UpdateAccessHash(ctx context.Context, id, hash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET access_credential_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateRefreshHash replaces the stored refresh credential hash for the session.
// Returns the number of rows updated; zero when the session does not exist.
func (r *PostgresRepository) UpdateRefreshHash(ctx context.Context, id, hash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_credential_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Touch updates the session's last-accessed timestamp.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_accessed_at = $2 WHERE id = $1`, id, at)
	return err
}

// Revoke marks the session revoked. The WHERE clause guards the transition so
// a concurrent revoke cannot overwrite the first revocation's timestamp or
// reason: only the false->true transition ever writes revoked_at/revoked_reason.
func (r *PostgresRepository) Revoke(ctx context.Context, id, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_at = $3, revoked_reason = $2
		WHERE id = $1 AND NOT revoked`, id, reason, at)
	return err
}

// RevokeAllByOwner revokes every non-revoked session of the owner in a single
// statement. Already-revoked sessions keep their original revoked_at/reason.
func (r *PostgresRepository) RevokeAllByOwner(ctx context.Context, ownerID, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_at = $3, revoked_reason = $2
		WHERE owner_id = $1 AND NOT revoked`, ownerID, reason, at)
	return err
}

// DeleteByID removes the session record.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteRefreshExpiredBefore removes sessions whose refresh horizon passed
// before the cutoff, revoked or not, and returns the number deleted. Sessions
// still inside their refresh horizon are retained even when revoked; revoked
// records serve as an audit trail until their natural expiry.
func (r *PostgresRepository) DeleteRefreshExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE refresh_expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var revokedAt sql.NullTime
	var revokedReason sql.NullString
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.AccessCredentialHash, &s.RefreshCredentialHash,
		&s.DeviceInfo, &s.IPAddress, &s.UserAgent, &s.SessionType,
		&s.CreatedAt, &s.LastAccessedAt, &s.AccessExpiresAt, &s.RefreshExpiresAt,
		&s.Revoked, &revokedAt, &revokedReason,
	)
	if err != nil {
		return nil, err
	}
	s.RevokedAt = nullTimeToPtr(revokedAt)
	s.RevokedReason = revokedReason.String
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
