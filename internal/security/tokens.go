package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredential is returned when a credential's signature does not verify.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpiredCredential is returned when a credential's signature verifies but it is past its expiry.
	ErrExpiredCredential = errors.New("expired credential")
	// ErrMalformedCredential is returned when a credential cannot be parsed at all.
	ErrMalformedCredential = errors.New("malformed credential")
)

// AccessClaims holds JWT claims for the access credential: subject identity,
// authorization roles, and the owning session.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	SessionID string   `json:"session_id"`
}

// RefreshClaims holds JWT claims for the refresh credential. It deliberately
// carries no authorization claims; roles are re-derived from the session's
// owner at refresh time so a refresh cannot replay stale privileges.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// TokenProvider issues and verifies JWT access and refresh credentials using
// RS256 or ES256. An optional previous public key covers signing-key rotation:
// verification tries the current key first and falls back to the previous one,
// so credentials issued before a key cutover stay verifiable until they expire.
type TokenProvider struct {
	privateKey  crypto.Signer
	publicKey   crypto.PublicKey
	previousKey crypto.PublicKey // nil when no rotation is in progress
	issuer      string
	audience    string
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and checked during verification.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// WithPreviousPublicKey sets the previous signing key's public half for the
// rotation grace period. Issuance always uses the current private key.
func (p *TokenProvider) WithPreviousPublicKey(pub crypto.PublicKey) *TokenProvider {
	p.previousKey = pub
	return p
}

// AccessTTL returns the access credential lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the refresh credential lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access credential for the given subject,
// carrying email, role names, and the owning session id.
// Returns the signed token and its expiration time.
func (p *TokenProvider) IssueAccess(sessionID, userID, email string, roles []string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     email,
		Roles:     roles,
		SessionID: sessionID,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh credential bound to the session id only.
func (p *TokenProvider) IssueRefresh(sessionID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidCredential
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// VerifyAccess verifies an access credential and returns its claims.
// Signature integrity is checked before expiry; claims from a credential that
// fails signature verification are never returned.
func (p *TokenProvider) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.verify(tokenString, claims); err != nil {
		return nil, err
	}
	if err := p.checkRegistered(&claims.RegisteredClaims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh verifies a refresh credential and returns its claims.
func (p *TokenProvider) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.verify(tokenString, claims); err != nil {
		return nil, err
	}
	if err := p.checkRegistered(&claims.RegisteredClaims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExtractSessionID parses the credential without verifying its signature and
// returns the embedded session id. Callers must still verify the credential
// before trusting any claim; this exists for lookup-then-verify flows.
func (p *TokenProvider) ExtractSessionID(tokenString string) (string, error) {
	claims := &AccessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return "", ErrMalformedCredential
	}
	if claims.SessionID == "" {
		return "", ErrMalformedCredential
	}
	return claims.SessionID, nil
}

// verify checks the signature against the current key, then the previous key
// when one is configured. Claims validation (exp, iss, aud) happens afterwards
// in checkRegistered so that a bad signature is never reported as expiry.
func (p *TokenProvider) verify(tokenString string, claims jwt.Claims) error {
	err := p.verifyWithKey(tokenString, claims, p.publicKey)
	if errors.Is(err, ErrInvalidCredential) && p.previousKey != nil {
		err = p.verifyWithKey(tokenString, claims, p.previousKey)
	}
	return err
}

func (p *TokenProvider) verifyWithKey(tokenString string, claims jwt.Claims, key crypto.PublicKey) error {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return key, nil
		default:
			return nil, ErrInvalidCredential
		}
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return ErrMalformedCredential
		}
		return ErrInvalidCredential
	}
	if !token.Valid {
		return ErrInvalidCredential
	}
	return nil
}

func (p *TokenProvider) checkRegistered(rc *jwt.RegisteredClaims) error {
	if rc.ExpiresAt == nil || !time.Now().Before(rc.ExpiresAt.Time) {
		return ErrExpiredCredential
	}
	if rc.Issuer != p.issuer {
		return ErrInvalidCredential
	}
	audOk := false
	for _, a := range rc.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return ErrInvalidCredential
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
