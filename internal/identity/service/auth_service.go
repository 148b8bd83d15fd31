// Package service implements authentication flows: register, login, refresh,
// and logout. It composes the user store, the session lifecycle manager, and
// the credential codec; it holds no persistence of its own.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-manager/backend/internal/security"
	sessiondomain "task-manager/backend/internal/session/domain"
	userdomain "task-manager/backend/internal/user/domain"
)

// Sentinel errors for auth service; handler maps them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrUserNotFound           = errors.New("user not found")
)

// AuthResult holds the outcome of Login or Refresh: the credential pair and
// their horizons. Refresh returns the caller's refresh credential unchanged,
// so RefreshExpiresAt reflects the session's original refresh horizon.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	UserID           string
	SessionID        string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	GetRoles(ctx context.Context, userID string) ([]string, error)
	AssignRole(ctx context.Context, userID, role string) error
}

// SessionManager is the slice of the session lifecycle service used here.
type SessionManager interface {
	CreateSession(ctx context.Context, ownerID, deviceInfo, ipAddress, userAgent, sessionType string) (*sessiondomain.Session, error)
	RecordAccessCredential(ctx context.Context, sessionID, rawCredential string) error
	RecordRefreshCredential(ctx context.Context, sessionID, rawCredential string) error
	LookupByRefresh(ctx context.Context, rawCredential string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, sessionID, reason string) error
	RevokeAllForOwner(ctx context.Context, ownerID, reason string) error
}

// ClientMeta carries per-request client attributes recorded on the session.
type ClientMeta struct {
	DeviceInfo  string
	IPAddress   string
	UserAgent   string
	SessionType string
}

// AuthService implements password register, login, refresh, and logout.
type AuthService struct {
	users    UserRepo
	sessions SessionManager
	hasher   *security.Hasher
	tokens   *security.TokenProvider
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(users UserRepo, sessions SessionManager, hasher *security.Hasher, tokens *security.TokenProvider) *AuthService {
	return &AuthService{users: users, sessions: sessions, hasher: hasher, tokens: tokens}
}

// Register creates a user with the given names, email, and password, and
// grants the default USER role. Returns the created user without tokens;
// the caller must Login to obtain credentials.
func (s *AuthService) Register(ctx context.Context, firstName, lastName, email, password string) (*userdomain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := userdomain.ValidatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.users.AssignRole(ctx, user.ID, userdomain.RoleUser); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates with email/password, creates a session, and returns a
// credential pair bound to it. All authentication failures collapse into
// ErrInvalidCredentials; a caller is never told whether the email exists.
func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	roles, err := s.users.GetRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.CreateSession(ctx, user.ID, meta.DeviceInfo, meta.IPAddress, meta.UserAgent, meta.SessionType)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, sess, user, roles)
}

// Refresh validates the refresh credential against both the codec and the
// session store and returns a new access credential. The refresh credential
// itself is returned unchanged and keeps its original horizon; only the
// access credential is reissued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessions.LookupByRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.ID != claims.SessionID || !sess.UsableForRefresh(time.Now().UTC()) {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, sess.OwnerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	// Roles are re-derived here, not read from the old credential, so a
	// refresh picks up role changes made since login.
	roles, err := s.users.GetRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(sess.ID, user.ID, user.Email, roles)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RecordAccessCredential(ctx, sess.ID, accessToken); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: sess.RefreshExpiresAt,
		UserID:           user.ID,
		SessionID:        sess.ID,
	}, nil
}

// Logout revokes the given session with reason "User logout". Idempotent:
// revoking an already-dead or unknown session succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionID, "User logout")
}

// LogoutAll revokes every live session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllForOwner(ctx, userID, "Logout all devices")
}

// Me returns the user's profile and role names.
func (s *AuthService) Me(ctx context.Context, userID string) (*userdomain.User, []string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	roles, err := s.users.GetRoles(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

func (s *AuthService) issuePair(ctx context.Context, sess *sessiondomain.Session, user *userdomain.User, roles []string) (*AuthResult, error) {
	accessToken, accessExp, err := s.tokens.IssueAccess(sess.ID, user.ID, user.Email, roles)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefresh(sess.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RecordAccessCredential(ctx, sess.ID, accessToken); err != nil {
		return nil, err
	}
	if err := s.sessions.RecordRefreshCredential(ctx, sess.ID, refreshToken); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		UserID:           user.ID,
		SessionID:        sess.ID,
	}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}
