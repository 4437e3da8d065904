// Package database is the Postgres-backed persistence layer: users, groups,
// collection ACLs, document chunks (dense + lexical), and sessions. One
// PostgresStore wraps a single *sql.DB; every query shape gets its own
// exported method, following the same shape as the rest of this layer.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// AdminGroupID is the conventional, fixed id of the admin group, seeded by
// EnsureSchema. Spec.md §3: "the lowest-numbered one".
const AdminGroupID = "GRP000001"

// DefaultGroupID is assigned to fresh registrants.
const DefaultGroupID = "GRP000002"

type PostgresStore struct {
	DB *sql.DB

	// VectorIndexBackend selects how SearchVector computes similarity:
	// "" scans the REAL[] column and computes cosine similarity in Go;
	// "pgvector" additionally maintains a pgvector.Vector column with an ANN
	// index and ranks in SQL.
	VectorIndexBackend string
	VectorDimension    int
}

// Config configures the connection pool. Design value from spec.md §5:
// bounded 1..10 connections.
type Config struct {
	ConnString         string
	MaxOpenConns       int
	MaxIdleConns       int
	VectorIndexBackend string
	VectorDimension    int
}

func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 1
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	dim := cfg.VectorDimension
	if dim <= 0 {
		dim = 768
	}

	return &PostgresStore{
		DB:                 db,
		VectorIndexBackend: cfg.VectorIndexBackend,
		VectorDimension:    dim,
	}, nil
}

// EnsureSchema creates the required tables and indexes if they do not
// already exist, and seeds the two conventional groups.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			description TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			primary_group_id TEXT REFERENCES groups(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS user_groups (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS collections (
			id BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			creator_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS collection_permissions (
			collection_id BIGINT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			can_read BOOLEAN NOT NULL DEFAULT FALSE,
			can_write BOOLEAN NOT NULL DEFAULT FALSE,
			can_delete BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (collection_id, group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			collection_id BIGINT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			dense_vector REAL[],
			content_tsv tsvector,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			ip_address TEXT,
			user_agent TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS password_reset_tokens (
			token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	// content_tsv is written by InsertChunks via to_tsvector (no GENERATED
	// column, to keep the teacher's explicit-write style instead of a
	// Postgres trigger).
	indexStmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_documents_collection_id ON documents(collection_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection_source ON documents (collection_id, (metadata ->> 'source'))`,
		`CREATE INDEX IF NOT EXISTS idx_documents_metadata_source ON documents ((metadata ->> 'source'))`,
		`CREATE INDEX IF NOT EXISTS idx_documents_content_tsv ON documents USING GIN (content_tsv)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_user_groups_group_id ON user_groups(group_id)`,
	}
	for _, stmt := range indexStmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}

	if s.VectorIndexBackend == "pgvector" {
		if err := s.ensurePgvectorColumn(ctx); err != nil {
			return fmt.Errorf("ensure pgvector column: %w", err)
		}
	}

	if _, err := s.DB.ExecContext(ctx, `
		INSERT INTO groups (id, name, description) VALUES
			($1, 'admin', 'administrators, implicit full access to every collection'),
			($2, 'default', 'default group assigned to fresh registrants')
		ON CONFLICT (id) DO NOTHING
	`, AdminGroupID, DefaultGroupID); err != nil {
		return fmt.Errorf("seed conventional groups: %w", err)
	}

	return nil
}

// ensurePgvectorColumn adds the pgvector.Vector column and its ANN index.
// Requires the pgvector extension to be installed in the target database;
// that installation step is an operator responsibility, not this service's.
func (s *PostgresStore) ensurePgvectorColumn(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	alter := fmt.Sprintf(`ALTER TABLE documents ADD COLUMN IF NOT EXISTS embedding vector(%d)`, s.VectorDimension)
	if _, err := s.DB.ExecContext(ctx, alter); err != nil {
		return fmt.Errorf("add embedding column: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_documents_embedding_ivfflat
		ON documents USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`); err != nil {
		return fmt.Errorf("create ivfflat index: %w", err)
	}
	return nil
}
