// Package extract implements the Text Extractor (C1): producing an ordered
// sequence of page records from a byte stream of known type. Grounded on
// web/services/pdf_service.go's ExtractText/ExtractTextSmart for the PDF
// path; the other formats follow the same page-record contract.
package extract

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	docerr "docrag/errors"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// PageRecord is the per-format output unit from spec.md §4.1.
type PageRecord struct {
	Source  string
	Page    int
	Content string
}

// Extractor dispatches extraction by file extension. Its zero value works
// for every format except HWP/HWPX, which falls back to plain-text decoding
// unless an HWPConverter dependency is supplied — threaded in explicitly
// rather than read from a package-level variable, so a caller that never
// needs HWP conversion never has to think about it.
type Extractor struct {
	HWP HWPConverter
}

// Extract dispatches on file extension and returns normalized page records.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) ([]PageRecord, error) {
	source := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))

	var records []PageRecord
	var err error

	switch ext {
	case ".pdf":
		records, err = extractPDF(source, data)
	case ".docx", ".doc":
		records, err = extractWord(source, data)
	case ".xlsx", ".xls":
		records, err = extractSpreadsheet(source, data)
	case ".pptx", ".ppt":
		records, err = extractPresentation(source, data)
	case ".hwp", ".hwpx":
		records, err = extractHWP(ctx, e.HWP, source, data)
	case ".html", ".htm":
		records, err = extractHTML(source, data)
	case ".md", ".markdown":
		records, err = extractMarkdown(source, data)
	case ".txt", "":
		records, err = extractPlainText(source, data)
	default:
		return nil, docerr.New(docerr.UnsupportedFormat, "unsupported file extension: "+ext)
	}
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Content = normalizeText(records[i].Content)
	}

	nonEmpty := records[:0]
	for _, r := range records {
		if strings.TrimSpace(r.Content) != "" {
			nonEmpty = append(nonEmpty, r)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, docerr.New(docerr.NoTextExtracted, "no text could be extracted from "+source)
	}

	return nonEmpty, nil
}

var (
	whitespaceRun = regexp.MustCompile(`[ \t]+`)
	crlf          = regexp.MustCompile(`\r\n?`)
)

// normalizeText collapses non-newline whitespace runs, normalizes line
// endings, and strips control characters, per spec.md §4.1.
func normalizeText(s string) string {
	s = crlf.ReplaceAllString(s, "\n")
	s = whitespaceRun.ReplaceAllString(s, " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// decodeBytes decodes via UTF-8, falling back to CP949 (EUC-KR-compatible,
// via golang.org/x/text/encoding/korean) when the bytes are not valid UTF-8.
func decodeBytes(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return "", docerr.Wrap(docerr.DecodeError, "failed to decode as UTF-8 or CP949", err)
	}
	// The EUC-KR decoder substitutes U+FFFD for invalid bytes instead of
	// returning an error, so a replacement rune means the fallback failed.
	if strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", docerr.New(docerr.DecodeError, "failed to decode as UTF-8 or CP949")
	}
	return string(decoded), nil
}
