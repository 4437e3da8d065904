package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Collection struct {
	ID            int64
	Name          string
	CreatorUserID int64
	CreatedAt     time.Time
}

var (
	collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,61}[A-Za-z0-9]$`)
	ipv4Pattern           = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ValidCollectionName reports whether name satisfies spec.md §3's naming
// rule: the regex, no IPv4-shaped name, no consecutive dots.
func ValidCollectionName(name string) bool {
	if !collectionNamePattern.MatchString(name) {
		return false
	}
	if ipv4Pattern.MatchString(name) {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return true
}

var ErrAlreadyExists = errors.New("collection already exists")
var ErrInvalidName = errors.New("invalid collection name")

func (s *PostgresStore) CreateCollection(ctx context.Context, name string, creatorUserID int64) (Collection, error) {
	if !ValidCollectionName(name) {
		return Collection{}, ErrInvalidName
	}

	var existing int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = $1`, name).Scan(&existing); err != nil {
		return Collection{}, fmt.Errorf("check existing collection: %w", err)
	}
	if existing > 0 {
		return Collection{}, ErrAlreadyExists
	}

	var c Collection
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO collections (name, creator_user_id, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, creator_user_id, created_at
	`, name, creatorUserID).Scan(&c.ID, &c.Name, &c.CreatorUserID, &c.CreatedAt)
	if err != nil {
		return Collection{}, fmt.Errorf("create collection: %w", err)
	}
	return c, nil
}

// DeleteCollection removes the collection and all its chunks atomically
// (ON DELETE CASCADE on documents.collection_id handles the chunk purge).
func (s *PostgresStore) DeleteCollection(ctx context.Context, name string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM collections WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
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

func (s *PostgresStore) GetCollectionByName(ctx context.Context, name string) (Collection, error) {
	var c Collection
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, creator_user_id, created_at FROM collections WHERE name = $1
	`, name).Scan(&c.ID, &c.Name, &c.CreatorUserID, &c.CreatedAt)
	if err != nil {
		return Collection{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetCollectionByID(ctx context.Context, id int64) (Collection, error) {
	var c Collection
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, creator_user_id, created_at FROM collections WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.CreatorUserID, &c.CreatedAt)
	if err != nil {
		return Collection{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, creator_user_id, created_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatorUserID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
