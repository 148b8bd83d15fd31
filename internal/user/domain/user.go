package domain

import (
	"errors"
	"time"
	"unicode"
)

// User is the core user entity. PasswordHash holds a bcrypt digest and is
// never serialized outward.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role names assigned through user_roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// ErrWeakPassword is returned when a candidate password fails the policy.
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit, and a symbol")

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.FirstName == "" {
		return errors.New("first name is required")
	}
	if u.LastName == "" {
		return errors.New("last name is required")
	}
	return nil
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// ValidatePassword checks a candidate password against the policy: at least
// 8 characters with an uppercase letter, a lowercase letter, a digit, and a
// symbol.
func ValidatePassword(password string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	n := 0
	for _, r := range password {
		n++
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if n < 8 || !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return ErrWeakPassword
	}
	return nil
}
