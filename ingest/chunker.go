package ingest

import (
	"strings"
	"time"

	"docrag/extract"
)

// Chunk is the Chunker's output unit, the input to the embedding step.
type Chunk struct {
	Content     string
	Source      string
	Page        int
	ChunkIndex  int
	ProcessedAt time.Time
}

type Chunker struct {
	TargetSize int
	Overlap    int
	splitter   RegexSentenceSplitter
}

func NewChunker(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = 2048
	}
	if overlap < 0 || overlap >= targetSize {
		overlap = 200
	}
	return &Chunker{TargetSize: targetSize, Overlap: overlap}
}

// ChunkPages splits every page record into bounded, overlapping chunks,
// preferring paragraph, then sentence, then whitespace, then a raw-rune
// fallback split — grounded on rag/document_chunk.go's prepareChunks.
func (c *Chunker) ChunkPages(pages []extract.PageRecord) []Chunk {
	now := time.Now()
	var out []Chunk
	for _, page := range pages {
		pieces := c.packSegments(page.Content)
		for i, piece := range pieces {
			out = append(out, Chunk{
				Content:     piece,
				Source:      page.Source,
				Page:        page.Page,
				ChunkIndex:  i,
				ProcessedAt: now,
			})
		}
	}
	return out
}

// packSegments greedily packs text into segments of at most TargetSize
// runes, with Overlap trailing runes of each segment repeated at the start
// of the next. Splitting prefers paragraph boundaries, then sentences,
// then whitespace, and finally a hard rune-count split for unbroken runs
// that exceed TargetSize on their own (the boundary case from spec.md §8:
// target_size=10, overlap=3 on "aaaaabbbbbccccc").
func (c *Chunker) packSegments(text string) []string {
	units := c.splitIntoUnits(text)
	if len(units) == 0 {
		return nil
	}

	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		segments = append(segments, current.String())
		current.Reset()
	}

	for _, unit := range units {
		if current.Len() > 0 && current.Len()+len(unit) > c.TargetSize {
			flush()
			if c.Overlap > 0 && len(segments) > 0 {
				tail := lastRunes(segments[len(segments)-1], c.Overlap)
				current.WriteString(tail)
			}
		}
		current.WriteString(unit)
	}
	flush()

	return enforceMaxLen(segments, c.TargetSize, c.Overlap)
}

// splitIntoUnits breaks text into the smallest indivisible pieces the
// packer assembles from: paragraphs split into sentences split into
// whitespace-delimited words; any single word still longer than
// TargetSize is hard-split by rune count.
func (c *Chunker) splitIntoUnits(text string) []string {
	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sentences := c.splitter.Split(para)
		if len(sentences) == 0 {
			sentences = []string{para}
		}
		for _, sentence := range sentences {
			if len([]rune(sentence)) <= c.TargetSize {
				units = append(units, sentence+" ")
				continue
			}
			for _, word := range strings.Fields(sentence) {
				if len([]rune(word)) <= c.TargetSize {
					units = append(units, word+" ")
					continue
				}
				units = append(units, hardSplit(word, c.TargetSize)...)
			}
		}
	}

	// An unbroken run (the boundary-test shape) is already hard-split in the
	// word loop above; this fallback only fires when every paragraph trims
	// to empty, and then rune-window splits the raw text.
	if len(units) == 0 && text != "" {
		units = hardSplit(text, c.TargetSize)
	}

	return units
}

func hardSplit(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// enforceMaxLen is a final safety pass: the greedy packer can overshoot
// TargetSize when the overlap tail carried into a new segment plus the
// next unit exceeds it; re-split
// any such segment with the hard-rune splitter so every returned chunk
// satisfies length ≤ TargetSize.
func enforceMaxLen(segments []string, targetSize, overlap int) []string {
	var out []string
	for _, seg := range segments {
		if len([]rune(seg)) <= targetSize {
			out = append(out, seg)
			continue
		}
		runes := []rune(seg)
		step := targetSize - overlap
		if step <= 0 {
			step = targetSize
		}
		for i := 0; i < len(runes); i += step {
			end := i + targetSize
			if end > len(runes) {
				end = len(runes)
			}
			out = append(out, string(runes[i:end]))
			if end == len(runes) {
				break
			}
		}
	}
	return out
}
