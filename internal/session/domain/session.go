package domain

import "time"

// SessionType classifies the client that opened a session. Informational only.
const (
	SessionTypeWeb    = "WEB"
	SessionTypeMobile = "MOBILE"
)

// Session binds a user to a pair of bearer credentials and their validity
// window. The raw credentials are never stored; only one-way digests are.
type Session struct {
	ID                    string
	OwnerID               string
	AccessCredentialHash  string // SHA-256 of the current access credential; empty until recorded
	RefreshCredentialHash string // SHA-256 of the current refresh credential; empty until recorded
	DeviceInfo            string
	IPAddress             string
	UserAgent             string
	SessionType           string
	CreatedAt             time.Time
	LastAccessedAt        time.Time
	AccessExpiresAt       time.Time
	RefreshExpiresAt      time.Time
	Revoked               bool
	RevokedAt             *time.Time // set once, on first revocation
	RevokedReason         string
}

// UsableForAccess reports whether the session accepts access credentials at t.
// Revocation wins over expiry.
func (s *Session) UsableForAccess(t time.Time) bool {
	if s.Revoked {
		return false
	}
	return t.Before(s.AccessExpiresAt)
}

// UsableForRefresh reports whether the session accepts refresh credentials at t.
func (s *Session) UsableForRefresh(t time.Time) bool {
	if s.Revoked {
		return false
	}
	return t.Before(s.RefreshExpiresAt)
}
