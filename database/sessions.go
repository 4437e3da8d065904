package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Session struct {
	SessionID uuid.UUID
	UserID    int64
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	IsActive  bool
}

// CreateSession marks any prior active sessions of the user inactive, then
// inserts a new one under sessionID — atomically, per spec.md §5's
// transaction-wrap rule for login session creation. sessionID is
// pre-generated by the caller so it can be embedded in the JWT signed
// before the row exists.
func (s *PostgresStore) CreateSession(ctx context.Context, sessionID uuid.UUID, userID int64, token, ip, userAgent string, ttl time.Duration) (Session, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`, userID); err != nil {
		return Session{}, fmt.Errorf("deactivate prior sessions: %w", err)
	}

	sess := Session{
		SessionID: sessionID,
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
		IPAddress: ip,
		UserAgent: userAgent,
		IsActive:  true,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, token, created_at, expires_at, ip_address, user_agent, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sess.SessionID, sess.UserID, sess.Token, sess.CreatedAt, sess.ExpiresAt, sess.IPAddress, sess.UserAgent, sess.IsActive)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit session tx: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) GetSessionByID(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	var sess Session
	err := s.DB.QueryRowContext(ctx, `
		SELECT session_id, user_id, token, created_at, expires_at, COALESCE(ip_address,''), COALESCE(user_agent,''), is_active
		FROM sessions WHERE session_id = $1
	`, sessionID).Scan(&sess.SessionID, &sess.UserID, &sess.Token, &sess.CreatedAt, &sess.ExpiresAt, &sess.IPAddress, &sess.UserAgent, &sess.IsActive)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *PostgresStore) InvalidateSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// CreatePasswordResetToken inserts a single-use token valid for ttl.
func (s *PostgresStore) CreatePasswordResetToken(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (token, user_id, created_at, expires_at, used)
		VALUES ($1, $2, NOW(), $3, FALSE)
	`, token, userID, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("create password reset token: %w", err)
	}
	return nil
}

func (s *PostgresStore) ConsumePasswordResetToken(ctx context.Context, token string) (int64, error) {
	var userID int64
	var expiresAt time.Time
	var used bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT user_id, expires_at, used FROM password_reset_tokens WHERE token = $1
	`, token).Scan(&userID, &expiresAt, &used)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("reset token not found")
		}
		return 0, fmt.Errorf("lookup reset token: %w", err)
	}
	if used || time.Now().After(expiresAt) {
		return 0, fmt.Errorf("reset token expired or already used")
	}
	if _, err := s.DB.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE WHERE token = $1`, token); err != nil {
		return 0, fmt.Errorf("mark reset token used: %w", err)
	}
	return userID, nil
}
