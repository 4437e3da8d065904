package extract

import (
	"bytes"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/net/html"
)

func extractPlainText(source string, data []byte) ([]PageRecord, error) {
	text, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	return []PageRecord{{Source: source, Page: 1, Content: text}}, nil
}

// extractMarkdown renders Markdown to HTML (gomarkdown, already a teacher
// dependency used by web/format/markdown.go) and strips that down to plain
// text, preserving paragraph breaks.
func extractMarkdown(source string, data []byte) ([]PageRecord, error) {
	text, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	htmlBytes := markdown.ToHTML([]byte(text), p, nil)
	stripped := stripHTML(htmlBytes)
	return []PageRecord{{Source: source, Page: 1, Content: stripped}}, nil
}

func extractHTML(source string, data []byte) ([]PageRecord, error) {
	stripped := stripHTML(data)
	return []PageRecord{{Source: source, Page: 1, Content: stripped}}, nil
}

// blockLevelTags force a paragraph break when closed, so stripped text
// keeps its paragraph structure instead of collapsing into one run.
var blockLevelTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "tr": true, "blockquote": true,
}

func stripHTML(data []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	var b strings.Builder

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if blockLevelTags[string(name)] {
				b.WriteString("\n\n")
			}
		}
	}
}
