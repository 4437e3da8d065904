// Package ingest implements the chunk-and-embed pipeline (C4): turning
// extracted page records into stored, searchable chunks. Grounded on
// rag/document_chunk.go and rag/document_persist.go's split between
// preparing chunks and writing them, here folded into one Ingestor since
// the store no longer needs the teacher's separate embedding-cache table.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docrag/database"
	"docrag/embed"
	"docrag/extract"
)

// Result reports what happened to one source document's ingestion,
// mirroring spec.md §4.4's {stored, failed} contract.
type Result struct {
	Source string
	Stored int
	Failed int
}

type Ingestor struct {
	chunker  *Chunker
	embedder *embed.Provider
	store    *database.PostgresStore
	logger   *zap.Logger
}

func NewIngestor(chunker *Chunker, embedder *embed.Provider, store *database.PostgresStore, logger *zap.Logger) *Ingestor {
	return &Ingestor{chunker: chunker, embedder: embedder, store: store, logger: logger}
}

// Ingest chunks and embeds every page record, then inserts the resulting
// chunks into collectionID. Re-ingesting the same source is idempotent:
// callers are expected to call DeleteBySource first (the upload handler
// does this before calling Ingest), matching spec.md §4.2's "re-uploading
// a source replaces it" rule.
func (ig *Ingestor) Ingest(ctx context.Context, collectionID int64, pages []extract.PageRecord) (Result, error) {
	if len(pages) == 0 {
		return Result{}, nil
	}
	source := pages[0].Source

	chunks := ig.chunker.ChunkPages(pages)
	if len(chunks) == 0 {
		return Result{Source: source}, nil
	}

	// Embed one chunk at a time: spec.md §4.4 classifies an embedding
	// failure as a per-chunk outcome to log and skip, not grounds to
	// abort the whole source — a single-batch call would let one bad
	// chunk fail every chunk in the source.
	records := make([]database.ChunkRecord, 0, len(chunks))
	embedFailed := 0
	for _, c := range chunks {
		vector, err := ig.embedder.EmbedOne(ctx, c.Content)
		if err != nil {
			embedFailed++
			if ig.logger != nil {
				ig.logger.Warn("embedding chunk failed, skipping",
					zap.String("source", c.Source), zap.Int("page", c.Page), zap.Error(err))
			}
			continue
		}
		records = append(records, database.ChunkRecord{
			Content: c.Content,
			Metadata: map[string]any{
				"source":       c.Source,
				"page":         c.Page,
				"chunk_index":  c.ChunkIndex,
				"processed_at": c.ProcessedAt.UTC().Format("2006-01-02T15:04:05Z"),
			},
			DenseVector: vector,
		})
	}

	if len(records) == 0 {
		return Result{Source: source, Failed: embedFailed}, nil
	}

	stored, batchFailed, err := ig.store.InsertChunks(ctx, collectionID, records)
	if err != nil {
		return Result{Source: source, Failed: embedFailed + len(records)}, fmt.Errorf("insert chunks: %w", err)
	}

	return Result{Source: source, Stored: stored, Failed: embedFailed + batchFailed}, nil
}

// Reingest replaces every chunk belonging to source with a freshly chunked
// and embedded version of pages.
func (ig *Ingestor) Reingest(ctx context.Context, collectionID int64, source string, pages []extract.PageRecord) (Result, error) {
	if _, err := ig.store.DeleteBySource(ctx, collectionID, source); err != nil {
		return Result{Source: source}, fmt.Errorf("delete existing source: %w", err)
	}
	return ig.Ingest(ctx, collectionID, pages)
}
