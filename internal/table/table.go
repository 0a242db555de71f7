// Package table holds raw vendor tables as header plus string rows.
package table

import (
	"regexp"
	"strings"
)

// Table is an in-memory raw table. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// New builds a table, cleaning header names and padding rows to the header width.
func New(header []string, rows [][]string) *Table {
	t := &Table{Header: make([]string, len(header))}
	for i, h := range header {
		t.Header[i] = cleanHeader(h)
	}
	t.reindex()
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		if blank(r) {
			continue
		}
		t.Rows = append(t.Rows, fit(r, len(t.Header)))
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Col returns the index of a column, or -1.
func (t *Table) Col(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether every named column is present.
func (t *Table) Has(names ...string) bool {
	return len(t.Missing(names...)) == 0
}

// Missing returns the named columns that are absent.
func (t *Table) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if t.Col(n) < 0 {
			missing = append(missing, n)
		}
	}
	return missing
}

// Value returns a row's cell for a column, or "" if the column is absent.
func (t *Table) Value(row int, column string) string {
	i := t.Col(column)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

// Lookup is like Value but reports whether the column exists.
func (t *Table) Lookup(row int, column string) (string, bool) {
	i := t.Col(column)
	if i < 0 {
		return "", false
	}
	return t.Rows[row][i], true
}

// Rename renames columns according to from→to. Unknown columns are ignored.
// It returns the number of columns renamed.
func (t *Table) Rename(mapping map[string]string) int {
	n := 0
	for i, h := range t.Header {
		if to, ok := mapping[h]; ok && to != "" && to != h {
			t.Header[i] = to
			n++
		}
	}
	t.reindex()
	return n
}

// SetColumn sets a column to a constant value, adding it if missing.
func (t *Table) SetColumn(name, value string) {
	i := t.Col(name)
	if i < 0 {
		t.Header = append(t.Header, name)
		t.reindex()
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], value)
		}
		return
	}
	for r := range t.Rows {
		t.Rows[r][i] = value
	}
}

// ReplaceStrings replaces cells of a column that equal old with new.
// It returns the number of cells changed.
func (t *Table) ReplaceStrings(column, old, new string) int {
	i := t.Col(column)
	if i < 0 {
		return 0
	}
	n := 0
	for _, r := range t.Rows {
		if r[i] == old {
			r[i] = new
			n++
		}
	}
	return n
}

// ReplaceRegex applies a regular expression substitution to a column.
func (t *Table) ReplaceRegex(column string, re *regexp.Regexp, repl string) int {
	i := t.Col(column)
	if i < 0 {
		return 0
	}
	n := 0
	for _, r := range t.Rows {
		out := re.ReplaceAllString(r[i], repl)
		if out != r[i] {
			r[i] = out
			n++
		}
	}
	return n
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func fit(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
