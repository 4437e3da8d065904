package ingest

import (
	"strings"
	"testing"

	"docrag/extract"
)

func TestChunkerBoundaryCase(t *testing.T) {
	// target_size=10, overlap=3 on an unbroken run with no paragraph,
	// sentence, or whitespace boundaries at all.
	c := NewChunker(10, 3)
	pages := []extract.PageRecord{{Source: "s.txt", Page: 1, Content: "aaaaabbbbbccccc"}}

	chunks := c.ChunkPages(pages)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, ch := range chunks {
		if n := len([]rune(ch.Content)); n > 10 {
			t.Errorf("chunk %q exceeds target size: %d runes", ch.Content, n)
		}
	}
}

func TestChunkerOverlapBetweenConsecutiveChunks(t *testing.T) {
	c := NewChunker(10, 3)
	pieces := c.packSegments("aaaaabbbbbccccc")
	if len(pieces) < 2 {
		t.Fatalf("expected at least two segments, got %d: %v", len(pieces), pieces)
	}
	for i := 1; i < len(pieces); i++ {
		prevTail := lastRunes(pieces[i-1], 3)
		if !strings.HasPrefix(pieces[i], prevTail) {
			t.Errorf("segment %d (%q) does not carry overlap %q from segment %d (%q)", i, pieces[i], prevTail, i-1, pieces[i-1])
		}
	}
}

func TestChunkerRespectsSentenceBoundaries(t *testing.T) {
	c := NewChunker(64, 8)
	text := "This is the first sentence. This is the second sentence. This is the third."
	pages := []extract.PageRecord{{Source: "s.txt", Page: 1, Content: text}}

	chunks := c.ChunkPages(pages)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Content)
	}
	if !strings.Contains(rebuilt.String(), "first sentence") {
		t.Errorf("lost content across chunk boundaries: %q", rebuilt.String())
	}
}

func TestChunkerEmptyPageProducesNoChunks(t *testing.T) {
	c := NewChunker(100, 10)
	chunks := c.ChunkPages([]extract.PageRecord{{Source: "empty.txt", Page: 1, Content: ""}})
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty page, got %d", len(chunks))
	}
}

func TestChunkerMultiplePages(t *testing.T) {
	c := NewChunker(20, 4)
	pages := []extract.PageRecord{
		{Source: "doc.pdf", Page: 1, Content: "Page one content here."},
		{Source: "doc.pdf", Page: 2, Content: "Page two content here."},
	}
	chunks := c.ChunkPages(pages)

	seenPage1, seenPage2 := false, false
	for _, ch := range chunks {
		if ch.Page == 1 {
			seenPage1 = true
		}
		if ch.Page == 2 {
			seenPage2 = true
		}
	}
	if !seenPage1 || !seenPage2 {
		t.Errorf("expected chunks tagged with both pages, got %+v", chunks)
	}
}
