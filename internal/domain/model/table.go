package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Table is a flattened dataset: one row per element of the "data" array,
// columns in first-seen order. Missing cells are nil.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns every value of the named column, or false when the column
// does not exist.
func (t *Table) Column(name string) ([]any, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// ExportRecord is one entry of the table export ledger.
type ExportRecord struct {
	ID         string
	Key        DatasetKey
	TableName  string
	RowCount   int
	ExportedAt time.Time
}

// FormatCell renders a cell as text. Nil is empty; arrays and objects are
// written as compact JSON.
func FormatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
