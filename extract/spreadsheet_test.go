package extract

import "testing"

// columnImportanceOrder should promote the more "important" column (here,
// a unique, fully-populated id column) ahead of a column that repeats the
// same handful of values across every row.
func TestColumnImportanceOrderPromotesUniqueColumn(t *testing.T) {
	header := []string{"category", "id"}
	rows := [][]string{
		{"fruit", "1001"},
		{"fruit", "1002"},
		{"veg", "1003"},
		{"fruit", "1004"},
		{"veg", "1005"},
	}

	order := columnImportanceOrder(header, rows)
	if len(order) != 2 {
		t.Fatalf("expected 2 columns in order, got %d: %v", len(order), order)
	}
	if order[0] != "id" {
		t.Fatalf("columnImportanceOrder = %v, want id promoted first", order)
	}
}

func TestColumnImportanceOrderHandlesEmptyRows(t *testing.T) {
	header := []string{"a", "b"}
	order := columnImportanceOrder(header, nil)
	if len(order) != 2 {
		t.Fatalf("expected fallback to return every header column, got %v", order)
	}
}

func TestColumnImportanceOrderHandlesSparseColumns(t *testing.T) {
	header := []string{"always", "sometimes"}
	rows := [][]string{
		{"x", ""},
		{"x", "y"},
		{"x", ""},
	}

	order := columnImportanceOrder(header, rows)
	if len(order) != 2 {
		t.Fatalf("expected 2 columns, got %d: %v", len(order), order)
	}
	seen := map[string]bool{}
	for _, c := range order {
		seen[c] = true
	}
	if !seen["always"] || !seen["sometimes"] {
		t.Fatalf("columnImportanceOrder dropped a header column: %v", order)
	}
}
