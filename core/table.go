package core

import (
	"fmt"
	"slices"
	"strings"
)

// Table is a tabular result set returned by the data-access tools.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Clone returns a copy of the table that shares no slices with t.
func (t Table) Clone() Table {
	c := Table{Columns: slices.Clone(t.Columns)}
	if t.Rows != nil {
		c.Rows = make([][]any, len(t.Rows))
		for i, r := range t.Rows {
			c.Rows[i] = slices.Clone(r)
		}
	}
	return c
}

// Records returns the rows as column-keyed maps.
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(r) {
				m[c] = r[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// Head returns a table holding at most n rows.
func (t Table) Head(n int) Table {
	if n < 0 || n >= len(t.Rows) {
		return t.Clone()
	}
	c := t.Clone()
	c.Rows = c.Rows[:n]
	return c
}

// String renders the table as pipe separated text for prompts and logs.
func (t Table) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, " | "))
	for _, r := range t.Rows {
		b.WriteByte('\n')
		for i, v := range r {
			if i > 0 {
				b.WriteString(" | ")
			}
			if v == nil {
				b.WriteString("NULL")
				continue
			}
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
