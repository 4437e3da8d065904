// Package retriever implements hybrid search (C5): combining lexical and
// vector candidate sets from the store into one ranked result list over the
// named collections; Query does no ACL check, its callers check access first. Grounded on rag/query_hybrid.go's gatherCandidates/scoreHybrid/
// deduplicateShingles, generalized from the teacher's session-memory
// weights to the fixed 0.3/0.7 lexical/vector fusion rule.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"docrag/database"
	"docrag/embed"
)

const (
	lexicalWeight   = 0.3
	vectorWeight    = 0.7
	lexicalEntryMin = 0.1
)

// SourceFilter restricts results to a specific (collection, source) pair.
type SourceFilter struct {
	Collection string
	Source     string
}

// Hit is one ranked passage returned to the caller.
type Hit struct {
	Content    string
	Collection string
	Source     string
	Page       int
	Score      float64
}

type Retriever struct {
	store    *database.PostgresStore
	embedder *embed.Provider
	logger   *zap.Logger
}

func New(store *database.PostgresStore, embedder *embed.Provider, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Query runs hybrid search over collectionNames, restricted by an optional
// sourceFilters set, keeping only hits whose combined score is ≥ theta, and
// returning at most k results.
func (r *Retriever) Query(ctx context.Context, collectionNames []string, query string, sourceFilters []SourceFilter, theta float64, k int) ([]Hit, error) {
	if theta <= 0 {
		theta = 0.5
	}
	if k <= 0 {
		k = 5
	}

	idToName := make(map[int64]string, len(collectionNames))
	var collectionIDs []int64
	for _, name := range collectionNames {
		col, err := r.store.GetCollectionByName(ctx, name)
		if err != nil {
			r.logger.Warn("unknown collection in query, skipping", zap.String("collection", name), zap.Error(err))
			continue
		}
		idToName[col.ID] = col.Name
		collectionIDs = append(collectionIDs, col.ID)
	}
	if len(collectionIDs) == 0 {
		return nil, nil
	}

	candidateLimit := k * 4
	if candidateLimit < 20 {
		candidateLimit = 20
	}

	terms := tokenize(query)
	lexicalQuery := strings.Join(terms, " ")
	if lexicalQuery == "" {
		lexicalQuery = query
	}

	lexicalHits, err := r.store.SearchLexical(ctx, collectionIDs, lexicalQuery, candidateLimit)
	if err != nil {
		r.logger.Warn("lexical search failed, continuing with vector only", zap.Error(err))
		lexicalHits = nil
	}

	var vectorHits []database.VectorHit
	queryVector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, continuing with lexical only", zap.Error(err))
	} else {
		vectorHits, err = r.store.SearchVector(ctx, collectionIDs, queryVector, candidateLimit)
		if err != nil {
			r.logger.Warn("vector search failed, continuing with lexical only", zap.Error(err))
			vectorHits = nil
		}
	}

	candidates := mergeCandidates(lexicalHits, vectorHits, theta)

	filterSet := buildFilterSet(sourceFilters)
	var kept []candidate
	for _, c := range candidates {
		if c.combined < theta {
			continue
		}
		if len(filterSet) > 0 {
			meta := c.chunk.Metadata
			source, _ := meta["source"].(string)
			collName := idToName[c.chunk.Collection]
			if !filterSet[filterKey(collName, source)] {
				continue
			}
		}
		kept = append(kept, c)
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.combined != b.combined {
			return a.combined > b.combined
		}
		if a.vectorScore != b.vectorScore {
			return a.vectorScore > b.vectorScore
		}
		if a.lexicalScore != b.lexicalScore {
			return a.lexicalScore > b.lexicalScore
		}
		return a.chunk.CreatedAt.Before(b.chunk.CreatedAt)
	})

	if len(kept) > k {
		kept = kept[:k]
	}

	hits := make([]Hit, 0, len(kept))
	for _, c := range kept {
		source, _ := c.chunk.Metadata["source"].(string)
		page := 0
		if p, ok := c.chunk.Metadata["page"].(float64); ok {
			page = int(p)
		}
		hits = append(hits, Hit{
			Content:    c.chunk.Content,
			Collection: idToName[c.chunk.Collection],
			Source:     source,
			Page:       page,
			Score:      c.combined,
		})
	}
	return hits, nil
}

type candidate struct {
	chunk        database.StoredChunk
	lexicalScore float64
	vectorScore  float64
	hasLexical   bool
	hasVector    bool
	combined     float64
}

// mergeCandidates applies spec.md §4.5's fusion rule: both signals blend
// 0.3/0.7, a lexical-only hit keeps its lexical score, and a vector-only
// hit only survives if it already clears theta on its own.
func mergeCandidates(lexicalHits []database.LexicalHit, vectorHits []database.VectorHit, theta float64) []candidate {
	byID := make(map[string]*candidate)
	order := make([]string, 0, len(lexicalHits)+len(vectorHits))

	get := func(chunk database.StoredChunk) *candidate {
		key := chunk.ID.String()
		if c, ok := byID[key]; ok {
			return c
		}
		c := &candidate{chunk: chunk}
		byID[key] = c
		order = append(order, key)
		return c
	}

	for _, h := range lexicalHits {
		if h.Score <= lexicalEntryMin {
			continue
		}
		c := get(h.Chunk)
		c.lexicalScore = h.Score
		c.hasLexical = true
	}
	for _, h := range vectorHits {
		c := get(h.Chunk)
		c.vectorScore = h.Score
		c.hasVector = true
	}

	out := make([]candidate, 0, len(order))
	for _, key := range order {
		c := byID[key]
		switch {
		case c.hasLexical && c.hasVector:
			c.combined = clamp01(lexicalWeight*c.lexicalScore + vectorWeight*c.vectorScore)
		case c.hasLexical:
			c.combined = c.lexicalScore
		case c.hasVector:
			if c.vectorScore < theta {
				continue
			}
			c.combined = c.vectorScore
		default:
			continue
		}
		out = append(out, *c)
	}
	return out
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

func buildFilterSet(filters []SourceFilter) map[string]bool {
	if len(filters) == 0 {
		return nil
	}
	set := make(map[string]bool, len(filters))
	for _, f := range filters {
		set[filterKey(f.Collection, f.Source)] = true
	}
	return set
}

func filterKey(collection, source string) string {
	return collection + "\x00" + source
}

// tokenize extracts lexical search terms: quoted substrings verbatim, plus
// nouns and other content words from a POS-tagged parse. Falls back to a
// plain whitespace split if prose fails to parse the query.
func tokenize(query string) []string {
	var terms []string

	remainder := query
	for {
		start := strings.IndexByte(remainder, '"')
		if start == -1 {
			break
		}
		end := strings.IndexByte(remainder[start+1:], '"')
		if end == -1 {
			break
		}
		quoted := remainder[start+1 : start+1+end]
		if quoted != "" {
			terms = append(terms, quoted)
		}
		remainder = remainder[start+1+end+1:]
	}

	doc, err := prose.NewDocument(query)
	if err != nil {
		return append(terms, strings.Fields(query)...)
	}
	for _, tok := range doc.Tokens() {
		if isContentTag(tok.Tag) {
			terms = append(terms, tok.Text)
		}
	}
	if len(terms) == 0 {
		terms = strings.Fields(query)
	}
	return terms
}

// isContentTag keeps nouns, proper nouns, verbs, and adjectives — the
// Penn Treebank tags a simple word extractor cares about — and drops
// determiners, prepositions, and punctuation tokens.
func isContentTag(tag string) bool {
	switch {
	case strings.HasPrefix(tag, "NN"):
		return true
	case strings.HasPrefix(tag, "VB"):
		return true
	case strings.HasPrefix(tag, "JJ"):
		return true
	default:
		return false
	}
}
