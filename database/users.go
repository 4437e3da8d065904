package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string
	IsActive       bool
	PrimaryGroupID string
	CreatedAt      time.Time
	LastLogin      *time.Time
}

// CreateUser inserts a new (inactive) user, assigning it to DefaultGroupID.
// Any insert failure, including a taken username or email, is returned
// wrapped; auth.Register maps every such error to Conflict.
func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, is_active, primary_group_id, created_at)
		VALUES ($1, $2, $3, FALSE, $4, NOW())
		RETURNING id, username, email, password_hash, is_active, primary_group_id, created_at, last_login
	`
	var u User
	var lastLogin sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, username, email, passwordHash, DefaultGroupID).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.PrimaryGroupID, &u.CreatedAt, &lastLogin,
	)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}

	if _, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, u.ID, DefaultGroupID); err != nil {
		return User{}, fmt.Errorf("assign default group: %w", err)
	}

	return u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.scanUser(ctx, `
		SELECT id, username, email, password_hash, is_active, primary_group_id, created_at, last_login
		FROM users WHERE username = $1
	`, username)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	return s.scanUser(ctx, `
		SELECT id, username, email, password_hash, is_active, primary_group_id, created_at, last_login
		FROM users WHERE id = $1
	`, id)
}

func (s *PostgresStore) scanUser(ctx context.Context, query string, arg any) (User, error) {
	var u User
	var lastLogin sql.NullTime
	var primaryGroup sql.NullString
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &primaryGroup, &u.CreatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, sql.ErrNoRows
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	if primaryGroup.Valid {
		u.PrimaryGroupID = primaryGroup.String
	}
	return u, nil
}

func (s *PostgresStore) ActivateUser(ctx context.Context, userID int64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET is_active = TRUE WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID int64) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsAdmin reports whether userID belongs to the admin group.
func (s *PostgresStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_groups WHERE user_id = $1 AND group_id = $2)
	`, userID, AdminGroupID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin membership: %w", err)
	}
	return exists, nil
}
