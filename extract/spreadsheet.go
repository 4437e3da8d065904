package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/xuri/excelize/v2"
)

// extractSpreadsheet emits one record per worksheet; content is a JSON
// records serialization of rows, with key columns (by the uniqueness ×
// completeness × pattern-consistency × reference-frequency heuristic)
// promoted to the front of each row's field order.
func extractSpreadsheet(source string, data []byte) ([]PageRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var records []PageRecord
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		header := rows[0]
		dataRows := rows[1:]
		keyOrder := columnImportanceOrder(header, dataRows)

		jsonRows := make([]map[string]string, 0, len(dataRows))
		for _, row := range dataRows {
			rec := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(row) {
					rec[col] = row[i]
				} else {
					rec[col] = ""
				}
			}
			jsonRows = append(jsonRows, rec)
		}

		content, err := serializeOrderedRows(jsonRows, keyOrder)
		if err != nil {
			continue
		}

		records = append(records, PageRecord{Source: source, Page: len(records) + 1, Content: sheet + "\n" + content})
	}

	return records, nil
}

var patternDigits = regexp.MustCompile(`^\d+$`)

// columnImportanceOrder scores each column by uniqueness × completeness ×
// pattern_consistency × reference_frequency (spec.md §4.1), normalizes to
// [0,1], and returns columns scoring at or above the 70th percentile first;
// falls back to the first column if none qualify.
func columnImportanceOrder(header []string, rows [][]string) []string {
	type scored struct {
		name  string
		score float64
	}
	scores := make([]scored, len(header))

	for i, col := range header {
		seen := make(map[string]int)
		nonEmpty := 0
		digitLike := 0
		for _, row := range rows {
			var v string
			if i < len(row) {
				v = row[i]
			}
			if v != "" {
				nonEmpty++
				seen[v]++
				if patternDigits.MatchString(v) {
					digitLike++
				}
			}
		}

		total := len(rows)
		if total == 0 {
			scores[i] = scored{col, 0}
			continue
		}

		uniqueness := float64(len(seen)) / float64(total)
		completeness := float64(nonEmpty) / float64(total)
		patternConsistency := 1.0
		if nonEmpty > 0 {
			patternConsistency = float64(digitLike) / float64(nonEmpty)
			if patternConsistency < 0.5 {
				// text-heavy columns are at least as consistent as numeric ones
				patternConsistency = 1 - patternConsistency
			}
		}
		referenceFrequency := float64(nonEmpty) / float64(total)

		scores[i] = scored{col, uniqueness * completeness * patternConsistency * referenceFrequency}
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if len(scores) == 0 {
		return header
	}

	cutoffIdx := int(float64(len(scores)) * 0.3) // top 30% == ≥70th percentile
	if cutoffIdx < 1 {
		cutoffIdx = 1
	}

	order := make([]string, 0, len(header))
	used := make(map[string]bool)
	for i := 0; i < cutoffIdx && i < len(scores); i++ {
		order = append(order, scores[i].name)
		used[scores[i].name] = true
	}
	for _, col := range header {
		if !used[col] {
			order = append(order, col)
		}
	}
	if len(order) == 0 {
		return header
	}
	return order
}

func serializeOrderedRows(rows []map[string]string, order []string) (string, error) {
	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		buf := bytes.Buffer{}
		buf.WriteByte('{')
		for i, key := range order {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, _ := json.Marshal(key)
			valJSON, _ := json.Marshal(row[key])
			buf.Write(keyJSON)
			buf.WriteByte(':')
			buf.Write(valJSON)
		}
		buf.WriteByte('}')
		out = append(out, json.RawMessage(buf.Bytes()))
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
