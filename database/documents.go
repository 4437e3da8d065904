package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// ChunkRecord is what the ingestor hands to InsertChunks: the store derives
// the lexical (tsvector) representation from Content itself.
type ChunkRecord struct {
	Content     string
	Metadata    map[string]any
	DenseVector []float32
}

// StoredChunk is a row as read back from documents.
type StoredChunk struct {
	ID          uuid.UUID
	Collection  int64
	Content     string
	Metadata    map[string]any
	DenseVector []float32
	CreatedAt   time.Time
}

// LexicalHit is one BM25-style candidate.
type LexicalHit struct {
	Chunk StoredChunk
	Score float64 // normalized [0,1]
}

// VectorHit is one ANN candidate.
type VectorHit struct {
	Chunk StoredChunk
	Score float64 // 1 - cosine distance, clamped [0,1]
}

// InsertChunks writes every record in one transaction (spec.md §5's
// preferred atomicity rule), deriving content_tsv via to_tsvector. Per-chunk
// failures (bad dimension) are skipped and counted rather than aborting the
// whole batch, matching §4.4's {stored, failed} contract.
func (s *PostgresStore) InsertChunks(ctx context.Context, collectionID int64, records []ChunkRecord) (stored, failed int, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, len(records), fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	usePgvector := s.VectorIndexBackend == "pgvector"

	for _, rec := range records {
		if s.VectorDimension > 0 && len(rec.DenseVector) != s.VectorDimension {
			failed++
			continue
		}

		metaJSON, merr := json.Marshal(rec.Metadata)
		if merr != nil {
			failed++
			continue
		}

		id := uuid.New()
		if usePgvector {
			_, ierr := tx.ExecContext(ctx, `
				INSERT INTO documents (id, collection_id, content, metadata, dense_vector, embedding, content_tsv, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, to_tsvector('english', $3), NOW())
			`, id, collectionID, rec.Content, metaJSON, pq.Array(rec.DenseVector), pgvector.NewVector(rec.DenseVector))
			if ierr != nil {
				failed++
				continue
			}
		} else {
			_, ierr := tx.ExecContext(ctx, `
				INSERT INTO documents (id, collection_id, content, metadata, dense_vector, content_tsv, created_at)
				VALUES ($1, $2, $3, $4, $5, to_tsvector('english', $3), NOW())
			`, id, collectionID, rec.Content, metaJSON, pq.Array(rec.DenseVector))
			if ierr != nil {
				failed++
				continue
			}
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, len(records), fmt.Errorf("commit insert chunks: %w", err)
	}
	return stored, failed, nil
}

// DeleteBySource deletes every chunk whose metadata.source matches.
func (s *PostgresStore) DeleteBySource(ctx context.Context, collectionID int64, source string) (int, error) {
	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM documents WHERE collection_id = $1 AND metadata ->> 'source' = $2
	`, collectionID, source)
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Sources returns distinct metadata.source values in a collection, optionally
// filtered by substring.
func (s *PostgresStore) Sources(ctx context.Context, collectionID int64, prefix string) ([]string, error) {
	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT DISTINCT metadata ->> 'source' FROM documents
			WHERE collection_id = $1 AND metadata ->> 'source' IS NOT NULL
			ORDER BY 1
		`, collectionID)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT DISTINCT metadata ->> 'source' FROM documents
			WHERE collection_id = $1 AND metadata ->> 'source' ILIKE '%' || $2 || '%'
			ORDER BY 1
		`, collectionID, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// Pages returns the count of distinct metadata.page values for a source.
func (s *PostgresStore) Pages(ctx context.Context, collectionID int64, source string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT metadata ->> 'page') FROM documents
		WHERE collection_id = $1 AND metadata ->> 'source' = $2
	`, collectionID, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return count, nil
}

// GetChunkByPage returns the concatenated content of all chunks on a page,
// ordered by insertion (created_at, then id as a stable tiebreak).
func (s *PostgresStore) GetChunkByPage(ctx context.Context, collectionID int64, source string, page int) (string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT content FROM documents
		WHERE collection_id = $1 AND metadata ->> 'source' = $2 AND metadata ->> 'page' = $3
		ORDER BY created_at ASC, id ASC
	`, collectionID, source, fmt.Sprint(page))
	if err != nil {
		return "", fmt.Errorf("get chunk by page: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("scan page content: %w", err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}
	return b.String(), rows.Err()
}

// SearchLexical runs the BM25-class ranked full-text query over the given
// collections, grounded on the teacher's SearchRAGDocumentsBM25: websearch_to_tsquery
// ranked by ts_rank_cd, normalized to [0,1] by dividing by a fixed ceiling
// and clamping, with an exact-substring bonus.
func (s *PostgresStore) SearchLexical(ctx context.Context, collectionIDs []int64, queryText string, limit int) ([]LexicalHit, error) {
	if len(collectionIDs) == 0 || strings.TrimSpace(queryText) == "" {
		return nil, nil
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, collection_id, content, metadata, dense_vector, created_at,
			ts_rank_cd(content_tsv, websearch_to_tsquery('english', $2)) AS rank
		FROM documents
		WHERE collection_id = ANY($1) AND content_tsv @@ websearch_to_tsquery('english', $2)
		ORDER BY rank DESC
		LIMIT $3
	`, pq.Array(collectionIDs), queryText, limit)
	if err != nil {
		return nil, fmt.Errorf("search lexical: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		chunk, rank, err := scanChunkWithRank(rows)
		if err != nil {
			return nil, err
		}
		score := rank / 0.5 // empirical ts_rank_cd ceiling for short documents
		if strings.Contains(strings.ToLower(chunk.Content), strings.ToLower(queryText)) {
			score += 0.1
		}
		score = clamp01(score)
		hits = append(hits, LexicalHit{Chunk: chunk, Score: score})
	}
	return hits, rows.Err()
}

// SearchVector returns the top candidates by vector similarity. With the
// pgvector backend this is an ANN index scan; otherwise it falls back to
// scanning the collections' dense_vector rows and computing cosine
// similarity in application code, mirroring the teacher's in-memory
// comparison approach.
func (s *PostgresStore) SearchVector(ctx context.Context, collectionIDs []int64, queryVector []float32, limit int) ([]VectorHit, error) {
	if len(collectionIDs) == 0 || len(queryVector) == 0 {
		return nil, nil
	}

	if s.VectorIndexBackend == "pgvector" {
		rows, err := s.DB.QueryContext(ctx, `
			SELECT id, collection_id, content, metadata, dense_vector, created_at,
				1 - (embedding <=> $2) AS similarity
			FROM documents
			WHERE collection_id = ANY($1)
			ORDER BY embedding <=> $2
			LIMIT $3
		`, pq.Array(collectionIDs), pgvector.NewVector(queryVector), limit)
		if err != nil {
			return nil, fmt.Errorf("search vector (pgvector): %w", err)
		}
		defer rows.Close()

		var hits []VectorHit
		for rows.Next() {
			chunk, sim, err := scanChunkWithRank(rows)
			if err != nil {
				return nil, err
			}
			hits = append(hits, VectorHit{Chunk: chunk, Score: clamp01(sim)})
		}
		return hits, rows.Err()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, collection_id, content, metadata, dense_vector, created_at
		FROM documents WHERE collection_id = ANY($1) AND dense_vector IS NOT NULL
	`, pq.Array(collectionIDs))
	if err != nil {
		return nil, fmt.Errorf("search vector (scan): %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		sim := cosineSimilarity(queryVector, chunk.DenseVector)
		hits = append(hits, VectorHit{Chunk: chunk, Score: clamp01(sim)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(rows rowScanner) (StoredChunk, error) {
	var c StoredChunk
	var metaJSON []byte
	var vec pq.Float32Array
	if err := rows.Scan(&c.ID, &c.Collection, &c.Content, &metaJSON, &vec, &c.CreatedAt); err != nil {
		return StoredChunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return StoredChunk{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	c.DenseVector = []float32(vec)
	return c, nil
}

func scanChunkWithRank(rows rowScanner) (StoredChunk, float64, error) {
	var c StoredChunk
	var metaJSON []byte
	var vec pq.Float32Array
	var rank float64
	if err := rows.Scan(&c.ID, &c.Collection, &c.Content, &metaJSON, &vec, &c.CreatedAt, &rank); err != nil {
		return StoredChunk{}, 0, fmt.Errorf("scan chunk with rank: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return StoredChunk{}, 0, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	c.DenseVector = []float32(vec)
	return c, rank, nil
}

// ViewCollectionPreview returns the most recently inserted chunks, used by
// the /api/view-collection endpoint.
func (s *PostgresStore) ViewCollectionPreview(ctx context.Context, collectionID int64, limit int) ([]StoredChunk, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, collection_id, content, metadata, dense_vector, created_at
		FROM documents WHERE collection_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("view collection preview: %w", err)
	}
	defer rows.Close()

	var out []StoredChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
