package database

import (
	"context"
	"fmt"
)

// Permission is one row of collection_permissions.
type Permission struct {
	CollectionID int64
	GroupID      string
	CanRead      bool
	CanWrite     bool
	CanDelete    bool
}

// PermissionsForCollection returns every group-level permission row set on
// a collection.
func (s *PostgresStore) PermissionsForCollection(ctx context.Context, collectionID int64) ([]Permission, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT collection_id, group_id, can_read, can_write, can_delete
		FROM collection_permissions WHERE collection_id = $1
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("permissions for collection: %w", err)
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.CollectionID, &p.GroupID, &p.CanRead, &p.CanWrite, &p.CanDelete); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PermissionsForGroups returns every permission row whose group_id is in
// groupIDs, across every collection — the raw material for the ACL engine's
// OR-reduction.
func (s *PostgresStore) PermissionsForGroups(ctx context.Context, groupIDs []string) ([]Permission, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT collection_id, group_id, can_read, can_write, can_delete
		FROM collection_permissions WHERE group_id = ANY($1)
	`, groupIDsArray(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("permissions for groups: %w", err)
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.CollectionID, &p.GroupID, &p.CanRead, &p.CanWrite, &p.CanDelete); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplacePermissions atomically deletes all existing permission rows for a
// collection and re-inserts the given set, per spec.md §4.8.
func (s *PostgresStore) ReplacePermissions(ctx context.Context, collectionID int64, perms []Permission) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_permissions WHERE collection_id = $1`, collectionID); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_permissions (collection_id, group_id, can_read, can_write, can_delete)
			VALUES ($1, $2, $3, $4, $5)
		`, collectionID, p.GroupID, p.CanRead, p.CanWrite, p.CanDelete); err != nil {
			return fmt.Errorf("insert permission: %w", err)
		}
	}

	return tx.Commit()
}

func groupIDsArray(ids []string) []string {
	// Named helper purely for readability at call sites; pq/pgx both accept
	// a plain []string for ANY($1) through the driver's array support.
	return ids
}
