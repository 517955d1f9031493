// Package adminauth implements the Admin API's authentication: a single
// root-admin credential checked against an Argon2id hash, a short-lived JWT
// access token, and a Cache-backed session marker that lets the token be
// revoked before it expires.
//
// This is deliberately simpler than the teacher's user auth: there is no
// registration, no email verification, and no refresh-token rotation — one
// operator credential is provisioned at boot (internal/bootstrap) and every
// session is independently revocable.
package adminauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/uncord-chat/relay/internal/cache"
)

// Sentinel errors for the adminauth package.
var (
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	ErrInvalidToken       = errors.New("invalid or expired admin token")
	ErrSessionRevoked     = errors.New("admin session has been revoked")
)

// Argon2Params mirrors the config-driven hashing parameters.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Claims holds the JWT claims for an admin access token. SessionID identifies the revocable session row in Cache,
// distinct from the JWT's own expiry.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Service issues and validates admin sessions.
type Service struct {
	sessions    *cache.SessionStore
	jwtSecret   string
	accessTTL   time.Duration
	issuer      string
	adminUser   string
	adminHash   string
}

// New creates a new admin auth Service. adminPasswordHash is the Argon2id hash of the operator's bootstrap password,
// produced once at startup (internal/bootstrap) and held in memory rather than round-tripping to the Store on every
// login.
func New(sessions *cache.SessionStore, jwtSecret string, accessTTL time.Duration, issuer, adminUsername, adminPasswordHash string) *Service {
	return &Service{
		sessions:  sessions,
		jwtSecret: jwtSecret,
		accessTTL: accessTTL,
		issuer:    issuer,
		adminUser: adminUsername,
		adminHash: adminPasswordHash,
	}
}

// Login verifies the operator credential and issues a new admin session + access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUser)) != 1 {
		// Still run the hash comparison so failed-username and failed-password paths take comparable time.
		_, _ = argon2id.ComparePasswordAndHash(password, s.adminHash)
		return "", ErrInvalidCredentials
	}

	match, err := argon2id.ComparePasswordAndHash(password, s.adminHash)
	if err != nil {
		return "", fmt.Errorf("compare admin password: %w", err)
	}
	if !match {
		return "", ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	if err := s.sessions.Save(ctx, sessionID, s.accessTTL); err != nil {
		return "", fmt.Errorf("save admin session: %w", err)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.adminUser,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenStr, checks its signature and expiry, and confirms the session has not been revoked.
func (s *Service) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	valid, err := s.sessions.IsValid(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check admin session: %w", err)
	}
	if !valid {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

// Logout revokes the session backing tokenStr so it can no longer be used even though it has not yet expired.
func (s *Service) Logout(ctx context.Context, tokenStr string) error {
	claims, err := s.Validate(ctx, tokenStr)
	if err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, claims.SessionID)
}

// HashPassword hashes the bootstrap admin password with the given Argon2id parameters.
func HashPassword(password string, p Argon2Params) (string, error) {
	hash, err := argon2id.CreateHash(password, &argon2id.Params{
		Memory:      p.Memory,
		Iterations:  p.Iterations,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	})
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return hash, nil
}
