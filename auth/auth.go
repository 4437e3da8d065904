// Package auth implements Session & Identity (C9): bcrypt password
// verification, JWT issuance/validation, and the server-side session
// record. Grounded on the teacher's web/middleware/session.go
// cookie-verify-or-create shape, generalized from anonymous per-browser
// identity to username/password accounts.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"docrag/database"
	docerr "docrag/errors"

	"github.com/google/uuid"
)

type Service struct {
	store  *database.PostgresStore
	issuer *JWTIssuer
	ttl    time.Duration
}

func NewService(store *database.PostgresStore, jwtSecret string, ttl time.Duration) *Service {
	return &Service{store: store, issuer: NewJWTIssuer(jwtSecret, ttl), ttl: ttl}
}

// TTLSeconds returns the session lifetime in whole seconds, for the
// Set-Cookie max-age spec.md §4.9 requires alongside the bearer token.
func (s *Service) TTLSeconds() int64 {
	return int64(s.ttl.Seconds())
}

// LoginResult is the tagged variant spec.md §9 asks for in place of
// exception-per-outcome control flow.
type LoginResult struct {
	Token     string
	Username  string
	GroupID   string
	UserID    int64
	SessionID uuid.UUID
}

// Login verifies credentials and, on success, deactivates prior sessions
// and creates a new one. Failures return a *docerr.Error whose Kind is one
// of UserNotFound, UserInactive, InvalidPassword — stable across releases.
func (s *Service) Login(ctx context.Context, username, password, ip, userAgent string) (LoginResult, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoginResult{}, docerr.New(docerr.UserNotFound, "no account with that username")
		}
		return LoginResult{}, docerr.Wrap(docerr.Internal, "login lookup failed", err)
	}

	if !user.IsActive {
		return LoginResult{}, docerr.New(docerr.UserInactive, "account is not yet active")
	}

	if !CheckPassword(user.PasswordHash, password) {
		return LoginResult{}, docerr.New(docerr.InvalidPassword, "incorrect password")
	}

	sessionID := uuid.New()
	token, _, err := s.issuer.Issue(user.ID, user.Username, user.PrimaryGroupID, sessionID.String())
	if err != nil {
		return LoginResult{}, docerr.Wrap(docerr.Internal, "issue token failed", err)
	}

	sess, err := s.store.CreateSession(ctx, sessionID, user.ID, token, ip, userAgent, s.ttl)
	if err != nil {
		return LoginResult{}, docerr.Wrap(docerr.Internal, "create session failed", err)
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		return LoginResult{}, docerr.Wrap(docerr.Internal, "update last login failed", err)
	}

	return LoginResult{
		Token:     token,
		Username:  user.Username,
		GroupID:   user.PrimaryGroupID,
		UserID:    user.ID,
		SessionID: sess.SessionID,
	}, nil
}

// Register creates a new, inactive user. Duplicate username/email surfaces
// as Conflict.
func (s *Service) Register(ctx context.Context, username, email, password string) (database.User, error) {
	if !ValidUsername(username) || !ValidPassword(password) {
		return database.User{}, docerr.New(docerr.ValidationError, "username and password must each be at least 9 characters")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return database.User{}, docerr.Wrap(docerr.Internal, "hash password failed", err)
	}

	user, err := s.store.CreateUser(ctx, username, email, hash)
	if err != nil {
		return database.User{}, docerr.Wrap(docerr.Conflict, "username or email already registered", err)
	}
	return user, nil
}

// Logout flips the session's is_active flag so it no longer validates.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.store.InvalidateSession(ctx, sessionID)
}

// ValidateBearer parses and verifies a bearer token's signature and expiry,
// then confirms the session it names is still active: spec.md §3's Session
// invariant and §4.9's state machine both require that logging out (or a
// session expiring server-side) immediately stops the token from
// validating, for the rest of its JWT lifetime too.
func (s *Service) ValidateBearer(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, docerr.Wrap(docerr.Unauthenticated, "invalid or expired token", err)
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, docerr.New(docerr.Unauthenticated, "token carries no valid session")
	}

	sess, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docerr.New(docerr.Unauthenticated, "session no longer exists")
		}
		return nil, docerr.Wrap(docerr.Internal, "session lookup failed", err)
	}
	if !sess.IsActive {
		return nil, docerr.New(docerr.Unauthenticated, "session has been logged out")
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, docerr.New(docerr.Unauthenticated, "session has expired")
	}

	return claims, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return docerr.Wrap(docerr.NotFound, "user not found", err)
	}
	if !CheckPassword(user.PasswordHash, currentPassword) {
		return docerr.New(docerr.InvalidPassword, "current password is incorrect")
	}
	if !ValidPassword(newPassword) {
		return docerr.New(docerr.ValidationError, "new password must be at least 9 characters")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return docerr.Wrap(docerr.Internal, "hash password failed", err)
	}
	return s.store.UpdatePassword(ctx, userID, hash)
}
