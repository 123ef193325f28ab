// Package auth is the identity and session layer: password digests, signed
// session tokens and the role permission table.  It decides who the caller
// is and what they may do; it never touches reservation records.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/valetpark/valetpark/internal/model"
	"github.com/valetpark/valetpark/internal/repository"
)

// SessionTTL is the fixed lifetime of a session token, counted from its
// issue timestamp.
const SessionTTL = 24 * time.Hour

// Actor is the resolved identity behind a verified session token.  Engine
// operations receive an Actor and check its role against the permission
// table before mutating anything.
type Actor struct {
	UserID   string
	Username string
	Role     model.Role
}

// Manager issues and verifies sessions and authenticates credentials.
type Manager struct {
	users      *repository.UserRepo
	secret     []byte
	bcryptCost int
	log        *logrus.Logger
	now        func() time.Time
}

// NewManager builds a Manager.  The secret signs session tokens and must be
// identical across restarts for sessions to survive them.
func NewManager(users *repository.UserRepo, secret string, bcryptCost int, log *logrus.Logger) *Manager {
	return &Manager{
		users:      users,
		secret:     []byte(secret),
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

// BcryptCost exposes the configured hashing cost for account creation.
func (m *Manager) BcryptCost() int { return m.bcryptCost }

// Authenticate verifies a username/password pair and returns the user on
// success, updating its last-login timestamp.  Unknown usernames, inactive
// accounts and wrong passwords all return ErrInvalidCredentials so the
// response never leaks which condition failed; the distinction is only
// logged.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := m.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		m.log.WithField("username", username).Debug("login: unknown username")
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if !u.IsActive {
		m.log.WithField("username", username).Debug("login: account inactive")
		return model.User{}, ErrInvalidCredentials
	}
	if !VerifyPassword(u.PasswordHash, password) {
		m.log.WithField("username", username).Debug("login: password mismatch")
		return model.User{}, ErrInvalidCredentials
	}

	now := m.now().UTC()
	u.LastLoginAt = &now
	if err := m.users.Update(ctx, &u); err != nil {
		return model.User{}, fmt.Errorf("update last login: %w", err)
	}
	return u, nil
}

// IssueToken signs an HS256 session token for the user.  The token carries
// the user id and the issue timestamp; everything else, including the role,
// is resolved from the live user record at verification time.
func (m *Manager) IssueToken(u model.User) (string, time.Time, error) {
	issued := m.now().UTC()
	expires := issued.Add(SessionTTL)
	claims := jwt.MapClaims{
		"sub": u.ID,
		"iat": issued.Unix(),
		"exp": expires.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// VerifyToken runs the session checks in a fixed order, short-circuiting on
// the first failure: token structure, signature, age, then the live user
// record.  A structurally valid, correctly signed token still fails when
// the account behind it has been deactivated since issue.
func (m *Manager) VerifyToken(ctx context.Context, token string) (Actor, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Actor{}, &AuthorizationError{Reason: "malformed session token"}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Actor{}, &AuthorizationError{Reason: "invalid session signature"}
	case errors.Is(err, jwt.ErrTokenExpired):
		return Actor{}, &AuthorizationError{Reason: "session expired"}
	case err != nil:
		return Actor{}, &AuthorizationError{Reason: "invalid session token"}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, &AuthorizationError{Reason: "invalid session claims"}
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return Actor{}, &AuthorizationError{Reason: "invalid session claims"}
	}
	issued, err := claims.GetIssuedAt()
	if err != nil || issued == nil {
		return Actor{}, &AuthorizationError{Reason: "invalid session claims"}
	}
	if m.now().Sub(issued.Time) > SessionTTL {
		return Actor{}, &AuthorizationError{Reason: "session expired"}
	}

	u, err := m.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Actor{}, &AuthorizationError{Reason: "unknown session user"}
	}
	if err != nil {
		return Actor{}, err
	}
	if !u.IsActive {
		return Actor{}, &AuthorizationError{Reason: "account deactivated"}
	}
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}
