package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// tableRowPattern matches a line with 3+ whitespace-separated columns,
// grounded on web/services/pdf_service.go's detectTablesInText heuristic.
var tableRowPattern = regexp.MustCompile(`\S+([ \t]{2,}|\t)\S+([ \t]{2,}|\t)\S+`)

// extractPDF produces one page record per page, appending a Markdown-table
// rendering of any detected table region to that page's text.
func extractPDF(source string, data []byte) ([]PageRecord, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var records []PageRecord
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		content := text
		if table := renderDetectedTable(text); table != "" {
			content = content + "\n\n" + table
		}

		records = append(records, PageRecord{Source: source, Page: i, Content: content})
	}

	return records, nil
}

// renderDetectedTable scans text for contiguous table-shaped lines and
// renders them as a Markdown table; returns "" if no table region is found.
func renderDetectedTable(text string) string {
	lines := strings.Split(text, "\n")
	var tableLines []string
	for _, line := range lines {
		if tableRowPattern.MatchString(line) {
			tableLines = append(tableLines, line)
		}
	}
	if len(tableLines) < 2 {
		return ""
	}

	var b strings.Builder
	for i, line := range tableLines {
		cols := regexp.MustCompile(`[ \t]{2,}|\t`).Split(strings.TrimSpace(line), -1)
		b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
		if i == 0 {
			sep := make([]string, len(cols))
			for j := range sep {
				sep[j] = "---"
			}
			b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
		}
	}
	return b.String()
}
