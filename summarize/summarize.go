// Package summarize implements the Summarizer (C7): map-reduce
// summarization of a chunk set, streamed as a lazy sequence of tagged
// events. Grounded on web/services/stream_service.go's SSE writer shape
// (WriteSSEData/ProcessStreamByWord) for the event model, and
// rag/document_chunk.go's chunking approach for the token-bounded re-split.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"docrag/database"
	docerr "docrag/errors"
	"docrag/extract"
	"docrag/ingest"
	"docrag/llm"
)

// EventType tags one event in the summarizer's output sequence.
type EventType string

const (
	EventProgress EventType = "progress"
	EventInfo     EventType = "info"
	EventError    EventType = "error"
	EventSummary  EventType = "summary"
)

// Event is the lazy sequence's tagged value; the HTTP layer serializes each
// one to an SSE frame.
type Event struct {
	Type     EventType
	Percent  int
	Message  string
	Text     string
	Metadata map[string]any
}

const (
	maxPages     = 100
	maxSubChunks = 100
	pieceTokens  = 1000
	pieceOverlap = 100
	reduceWords  = 10240
)

type Summarizer struct {
	store    *database.PostgresStore
	router   *llm.Router
	backend  llm.Kind
	model    string
	splitter *ingest.Chunker
}

func New(store *database.PostgresStore, router *llm.Router, backend llm.Kind, model string) *Summarizer {
	// ~1000 tokens ≈ 4000 characters at the ~4-chars/token estimate the
	// embedding provider already uses; 100-token overlap ≈ 400 characters.
	return &Summarizer{
		store:    store,
		router:   router,
		backend:  backend,
		model:    model,
		splitter: ingest.NewChunker(pieceTokens*4, pieceOverlap*4),
	}
}

// Target names what to summarize: either every chunk under a (collection,
// source) pair, or one specific page of a source.
type Target struct {
	CollectionID int64
	Source       string
	Page         int // 0 means "entire source"
}

// Run gathers the chunks for every target, guards against an oversized
// input, re-splits into token-bounded pieces, maps the summary prompt over
// each piece, reduces the results, and emits the event sequence on the
// returned channel. The channel is closed after the terminal Summary or
// Error event; it is not restartable and honors ctx cancellation.
func (s *Summarizer) Run(ctx context.Context, targets []Target) <-chan Event {
	out := make(chan Event, 4)
	go func() {
		defer close(out)
		s.run(ctx, targets, out)
	}()
	return out
}

func (s *Summarizer) run(ctx context.Context, targets []Target, out chan<- Event) {
	content, pages, err := s.gather(ctx, targets)
	if err != nil {
		emit(ctx, out, Event{Type: EventError, Message: err.Error()})
		return
	}
	if content == "" {
		emit(ctx, out, Event{Type: EventError, Message: "no content found for the requested source"})
		return
	}

	pieces := s.splitter.ChunkPages([]extract.PageRecord{{Source: "summary-input", Page: 1, Content: content}})
	if tooLarge(pages, len(pieces)) {
		emit(ctx, out, Event{Type: EventError, Message: docerr.New(docerr.TooLarge, "summarization input too large").Error()})
		return
	}

	var mapped []string
	for i, piece := range pieces {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := s.router.Complete(ctx, llm.Request{
			Backend:      s.backend,
			Model:        s.model,
			SystemPrompt: "Summarize the following passage concisely, preserving key facts.",
			UserPrompt:   piece.Content,
			MaxTokens:    512,
			Temperature:  0.2,
		})
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Message: err.Error()})
			return
		}
		mapped = append(mapped, resp.Content)

		percent := ((i + 1) * 100) / len(pieces)
		if !emit(ctx, out, Event{Type: EventProgress, Percent: percent}) {
			return
		}
	}

	combined := strings.Join(mapped, "\n\n")
	if wordCount(combined) > reduceWords {
		emit(ctx, out, Event{Type: EventInfo, Message: "compressing combined summary"})
		resp, err := s.router.Complete(ctx, llm.Request{
			Backend:      s.backend,
			Model:        s.model,
			SystemPrompt: "Combine the following partial summaries into one coherent summary.",
			UserPrompt:   combined,
			MaxTokens:    1024,
			Temperature:  0.2,
		})
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Message: err.Error()})
			return
		}
		combined = resp.Content
	}

	emit(ctx, out, Event{
		Type:     EventSummary,
		Text:     combined,
		Metadata: map[string]any{"pieces": len(pieces), "pages": pages},
	})
}

// gather concatenates the stored content for every target and returns the
// total page count across all of them, the TooLarge guard's other input.
func (s *Summarizer) gather(ctx context.Context, targets []Target) (string, int, error) {
	var b strings.Builder
	totalPages := 0
	for _, t := range targets {
		if t.Page > 0 {
			content, err := s.store.GetChunkByPage(ctx, t.CollectionID, t.Source, t.Page)
			if err != nil {
				return "", 0, fmt.Errorf("get page content: %w", err)
			}
			b.WriteString(content)
			b.WriteString("\n\n")
			totalPages++
			continue
		}

		pageCount, err := s.store.Pages(ctx, t.CollectionID, t.Source)
		if err != nil {
			return "", 0, fmt.Errorf("count pages: %w", err)
		}
		totalPages += pageCount
		for p := 1; p <= pageCount; p++ {
			content, err := s.store.GetChunkByPage(ctx, t.CollectionID, t.Source, p)
			if err != nil {
				return "", 0, fmt.Errorf("get page content: %w", err)
			}
			b.WriteString(content)
			b.WriteString("\n\n")
		}
	}
	return b.String(), totalPages, nil
}

// tooLarge is the input guard: more than maxPages pages or maxSubChunks
// re-split pieces and the summarization is refused outright.
func tooLarge(pages, pieces int) bool {
	return pages > maxPages || pieces > maxSubChunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// emit sends an event unless the context is already done; returns false if
// the caller should stop producing further events.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
