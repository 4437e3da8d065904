package extract

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	docerr "docrag/errors"
)

func TestNormalizeTextCollapsesWhitespaceAndControlChars(t *testing.T) {
	in := "line one\t\t  spaced\r\nline two\x00\x07 with control chars\n\n  trailing  "
	got := normalizeText(in)

	if strings.Contains(got, "\x00") || strings.Contains(got, "\x07") {
		t.Fatalf("normalizeText left control characters in %q", got)
	}
	if strings.Contains(got, "\t") {
		t.Fatalf("normalizeText left a tab run uncollapsed in %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Fatalf("normalizeText left a double space in %q", got)
	}
	if strings.Contains(got, "\r") {
		t.Fatalf("normalizeText left a carriage return in %q", got)
	}
	if got != strings.TrimSpace(got) {
		t.Fatalf("normalizeText did not trim surrounding whitespace: %q", got)
	}
}

func TestNormalizeTextKeepsNewlines(t *testing.T) {
	got := normalizeText("first\nsecond")
	if got != "first\nsecond" {
		t.Fatalf("normalizeText altered a bare newline-separated string: %q", got)
	}
}

func TestDecodeBytesPassesThroughValidUTF8(t *testing.T) {
	text, err := decodeBytes([]byte("hello, 세계"))
	if err != nil {
		t.Fatalf("decodeBytes returned error on valid UTF-8: %v", err)
	}
	if text != "hello, 세계" {
		t.Fatalf("decodeBytes changed valid UTF-8 input: %q", text)
	}
}

func TestDecodeBytesFallsBackToCP949(t *testing.T) {
	want := "안녕하세요"
	encoded, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(want))
	if err != nil {
		t.Fatalf("failed to encode fixture as CP949/EUC-KR: %v", err)
	}

	got, err := decodeBytes(encoded)
	if err != nil {
		t.Fatalf("decodeBytes failed on CP949 bytes: %v", err)
	}
	if got != want {
		t.Fatalf("decodeBytes(CP949 bytes) = %q, want %q", got, want)
	}
}

func TestDecodeBytesRejectsUndecodableInput(t *testing.T) {
	// 0xFF is not a valid lead byte in either UTF-8 or EUC-KR.
	_, err := decodeBytes([]byte{0xFF, 0xFE, 0x00, 0xFF})
	if err == nil {
		t.Fatal("expected decodeBytes to fail on bytes that are neither UTF-8 nor CP949")
	}
	if docerr.KindOf(err) != docerr.DecodeError {
		t.Fatalf("decodeBytes error kind = %v, want DecodeError", docerr.KindOf(err))
	}
}

func TestExtractRejectsUnsupportedExtension(t *testing.T) {
	e := &Extractor{}
	_, err := e.Extract(context.Background(), "notes.exe", []byte("anything"))
	if err == nil {
		t.Fatal("expected unsupported-format error")
	}
	if docerr.KindOf(err) != docerr.UnsupportedFormat {
		t.Fatalf("error kind = %v, want UnsupportedFormat", docerr.KindOf(err))
	}
}

func TestExtractRejectsBlankDocument(t *testing.T) {
	e := &Extractor{}
	_, err := e.Extract(context.Background(), "empty.txt", []byte("   \n\t  "))
	if err == nil {
		t.Fatal("expected no-text-extracted error on a whitespace-only document")
	}
	if docerr.KindOf(err) != docerr.NoTextExtracted {
		t.Fatalf("error kind = %v, want NoTextExtracted", docerr.KindOf(err))
	}
}

func TestExtractPlainTextRoundTrips(t *testing.T) {
	e := &Extractor{}
	pages, err := e.Extract(context.Background(), "doc.txt", []byte("hello   world\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].Content != "hello world" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
	if pages[0].Source != "doc.txt" {
		t.Fatalf("source = %q, want doc.txt", pages[0].Source)
	}
}

type fakeHWPConverter struct {
	called bool
	err    error
}

func (f *fakeHWPConverter) ConvertToPDF(ctx context.Context, data []byte) ([]byte, error) {
	f.called = true
	return nil, f.err
}

func TestExtractHWPFallsBackToPlainTextWithoutConverter(t *testing.T) {
	e := &Extractor{}
	pages, err := e.Extract(context.Background(), "doc.hwp", []byte("plain fallback content"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].Content != "plain fallback content" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}

func TestExtractHWPUsesConverterWhenConfigured(t *testing.T) {
	conv := &fakeHWPConverter{err: errBoom}
	e := &Extractor{HWP: conv}

	// The fake converter fails, so extractHWP should fall back to plain
	// text decoding rather than propagating the conversion error.
	pages, err := e.Extract(context.Background(), "doc.hwp", []byte("fallback text"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conv.called {
		t.Fatal("expected the configured HWPConverter to be invoked")
	}
	if len(pages) != 1 || pages[0].Content != "fallback text" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}

var errBoom = &stubError{"conversion unavailable"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
