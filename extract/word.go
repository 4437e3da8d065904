package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// extractWord reads the paragraph runs out of word/document.xml inside the
// OOXML zip container. No actively-maintained, freely-licensed Go OOXML
// library exists anywhere in the example pack (see DESIGN.md), so this
// reads the container directly: a .docx is just a zip of XML parts.
func extractWord(source string, data []byte) ([]PageRecord, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("word/document.xml not found in %s", source)
	}

	paragraphs := extractWordParagraphs(docXML)

	var records []PageRecord
	var current strings.Builder
	page := 1
	for _, para := range paragraphs {
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(para)
		if utf8.RuneCountInString(current.String()) > 1000 {
			records = append(records, PageRecord{Source: source, Page: page, Content: current.String()})
			page++
			current.Reset()
		}
	}
	if current.Len() > 0 {
		records = append(records, PageRecord{Source: source, Page: page, Content: current.String()})
	}

	return records, nil
}

// wordParagraph/wordRun/wordBody mirror just enough of the WordprocessingML
// schema to pull run text out of each <w:p> paragraph.
type wordRun struct {
	Text []string `xml:"t"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordBody struct {
	Paragraphs []wordParagraph `xml:"p"`
}

type wordDocument struct {
	Body wordBody `xml:"body"`
}

func extractWordParagraphs(docXML []byte) []string {
	var doc wordDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return nil
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t)
			}
		}
		if b.Len() > 0 {
			paragraphs = append(paragraphs, b.String())
		}
	}
	return paragraphs
}
