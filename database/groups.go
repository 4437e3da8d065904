package database

import (
	"context"
	"fmt"
)

type Group struct {
	ID          string
	Name        string
	Description string
}

// NextGroupID computes the next GRP%06d id, scanning the existing max.
// Conventional admin/default groups occupy GRP000001/GRP000002.
func (s *PostgresStore) NextGroupID(ctx context.Context) (string, error) {
	var maxN int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(id FROM 4) AS INTEGER)), 0) FROM groups WHERE id ~ '^GRP[0-9]+$'
	`).Scan(&maxN)
	if err != nil {
		return "", fmt.Errorf("compute next group id: %w", err)
	}
	return fmt.Sprintf("GRP%06d", maxN+1), nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, name, description string) (Group, error) {
	id, err := s.NextGroupID(ctx)
	if err != nil {
		return Group{}, err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO groups (id, name, description) VALUES ($1, $2, $3)`, id, name, description)
	if err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	return Group{ID: id, Name: name, Description: description}, nil
}

func (s *PostgresStore) UpdateGroup(ctx context.Context, id, name, description string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE groups SET name = $1, description = $2 WHERE id = $3`, name, description, id)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; membership and permission rows cascade via FK.
func (s *PostgresStore) DeleteGroup(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, description FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *PostgresStore) GroupUsers(ctx context.Context, groupID string) ([]User, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.is_active, u.primary_group_id, u.created_at, u.last_login
		FROM users u JOIN user_groups ug ON ug.user_id = u.id
		WHERE ug.group_id = $1
		ORDER BY u.username
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var lastLogin nullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.PrimaryGroupID, &u.CreatedAt, &lastLogin.NullTime); err != nil {
			return nil, fmt.Errorf("scan group user: %w", err)
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLogin = &t
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserGroupList returns the group ids a user belongs to.
func (s *PostgresStore) UserGroupList(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT group_id FROM user_groups WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("user group list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user group: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveGroups replaces a user's group memberships with the given set.
func (s *PostgresStore) SaveGroups(ctx context.Context, userID int64, groupIDs []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}
	for _, gid := range groupIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, gid); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) AssignGroup(ctx context.Context, userID int64, groupID string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, groupID)
	if err != nil {
		return fmt.Errorf("assign group: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveGroup(ctx context.Context, userID int64, groupID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if err != nil {
		return fmt.Errorf("remove group: %w", err)
	}
	return nil
}
