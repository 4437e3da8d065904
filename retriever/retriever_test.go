package retriever

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"docrag/database"
)

func chunkWithID(id string) database.StoredChunk {
	return database.StoredChunk{ID: uuid.MustParse(id), CreatedAt: time.Now()}
}

func TestMergeCandidatesBothSignalsFuse(t *testing.T) {
	id := "00000000-0000-0000-0000-000000000001"
	lexical := []database.LexicalHit{{Chunk: chunkWithID(id), Score: 0.8}}
	vector := []database.VectorHit{{Chunk: chunkWithID(id), Score: 0.6}}

	out := mergeCandidates(lexical, vector, 0.5)
	if len(out) != 1 {
		t.Fatalf("expected one merged candidate, got %d", len(out))
	}
	want := 0.3*0.8 + 0.7*0.6
	if out[0].combined < want-1e-9 || out[0].combined > want+1e-9 {
		t.Errorf("combined = %v, want %v", out[0].combined, want)
	}
}

func TestMergeCandidatesLexicalOnlyKeepsLexicalScore(t *testing.T) {
	id := "00000000-0000-0000-0000-000000000002"
	lexical := []database.LexicalHit{{Chunk: chunkWithID(id), Score: 0.4}}

	out := mergeCandidates(lexical, nil, 0.5)
	if len(out) != 1 || out[0].combined != 0.4 {
		t.Fatalf("expected lexical-only score 0.4, got %+v", out)
	}
}

func TestMergeCandidatesVectorOnlyRequiresTheta(t *testing.T) {
	below := "00000000-0000-0000-0000-000000000003"
	above := "00000000-0000-0000-0000-000000000004"
	vector := []database.VectorHit{
		{Chunk: chunkWithID(below), Score: 0.4},
		{Chunk: chunkWithID(above), Score: 0.9},
	}

	out := mergeCandidates(nil, vector, 0.5)
	if len(out) != 1 {
		t.Fatalf("expected only the above-theta vector hit to survive, got %d", len(out))
	}
	if out[0].chunk.ID.String() != above {
		t.Errorf("expected surviving candidate %s, got %s", above, out[0].chunk.ID)
	}
}

func TestMergeCandidatesLexicalBelowEntryThresholdDropped(t *testing.T) {
	id := "00000000-0000-0000-0000-000000000005"
	lexical := []database.LexicalHit{{Chunk: chunkWithID(id), Score: 0.05}}

	out := mergeCandidates(lexical, nil, 0.5)
	if len(out) != 0 {
		t.Errorf("expected lexical score below entry threshold to be dropped, got %+v", out)
	}
}

func TestTokenizeExtractsQuotedSubstrings(t *testing.T) {
	terms := tokenize(`find the "annual report" from last year`)
	found := false
	for _, term := range terms {
		if term == "annual report" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected quoted substring in terms, got %v", terms)
	}
}
