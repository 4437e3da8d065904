package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// extractPresentation reads ppt/slides/slideN.xml for each slide, in slide
// order, concatenating all shape text per slide. Same rationale as word.go
// for going directly against the zip/XML container rather than an OOXML
// library.
func extractPresentation(source string, data []byte) ([]PageRecord, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}

	type slideFile struct {
		index int
		file  *zip.File
	}
	var slides []slideFile
	for _, f := range zr.File {
		dir, name := path.Split(f.Name)
		if dir != "ppt/slides/" || !strings.HasPrefix(name, "slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "slide"), ".xml")
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{index: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].index < slides[j].index })

	var records []PageRecord
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		text := extractSlideText(raw)
		records = append(records, PageRecord{Source: source, Page: s.index, Content: text})
	}

	return records, nil
}

type slideTextRun struct {
	Text string `xml:"t"`
}

type slideParagraph struct {
	Runs []slideTextRun `xml:"r"`
}

type slideTextBody struct {
	Paragraphs []slideParagraph `xml:"p"`
}

type slideShape struct {
	TextBody slideTextBody `xml:"txBody"`
}

type slideSpTree struct {
	Shapes []slideShape `xml:"sp"`
}

type slideCSld struct {
	SpTree slideSpTree `xml:"spTree"`
}

type slideXML struct {
	CSld slideCSld `xml:"cSld"`
}

func extractSlideText(raw []byte) string {
	var slide slideXML
	if err := xml.Unmarshal(raw, &slide); err != nil {
		return ""
	}

	var b strings.Builder
	for _, shape := range slide.CSld.SpTree.Shapes {
		for _, para := range shape.TextBody.Paragraphs {
			for _, run := range para.Runs {
				b.WriteString(run.Text)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}
