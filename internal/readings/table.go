package readings

import "strings"

// Table is a raw tabular dataset with every cell rendered as text. Empty
// strings represent SQL NULL or empty CSV cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of the named column (case-insensitive), or -1.
func (t Table) Index(name string) int {
	for i, col := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
