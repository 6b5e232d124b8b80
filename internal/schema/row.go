package schema

import (
	"strings"
	"time"
)

const (
	// DataTable is the synchronized table.
	DataTable = "dynamic_table"

	// ChangeTable is the change log populated by the capture hooks.
	ChangeTable = "sync_changes"

	// IdentityColumn is the stable row key on both sides.
	IdentityColumn = "Id"
)

// Row is an ordered mapping from column name to string value.
//
// Columns and Values always have the same length. Timestamp holds the audit
// timestamp read from the reserved spreadsheet column; it is never persisted
// as a table column.
type Row struct {
	Columns   []string
	Values    []string
	Timestamp *time.Time
}

// NewRow zips column names with values. Missing trailing values become "".
// Extra values beyond the last column are dropped.
func NewRow(columns []string, values []string) Row {
	row := Row{
		Columns: make([]string, len(columns)),
		Values:  make([]string, len(columns)),
	}
	copy(row.Columns, columns)
	for i := range columns {
		if i < len(values) {
			row.Values[i] = values[i]
		}
	}
	return row
}

// Get returns the value of the named column, or "" if the row has no such
// column. Column names match case-insensitively, like SQL identifiers.
func (r Row) Get(column string) string {
	if i := r.index(column); i >= 0 {
		return r.Values[i]
	}
	return ""
}

// Has reports whether the row carries the named column.
func (r Row) Has(column string) bool {
	return r.index(column) >= 0
}

// Set overwrites the named column, appending it when missing.
func (r *Row) Set(column, value string) {
	if i := r.index(column); i >= 0 {
		r.Values[i] = value
		return
	}
	r.Columns = append(r.Columns, column)
	r.Values = append(r.Values, value)
}

// ID returns the identity value of the row.
func (r Row) ID() string {
	return strings.TrimSpace(r.Get(IdentityColumn))
}

// IsBlank reports whether every value is empty or whitespace.
// Soft-deleted spreadsheet rows are blank.
func (r Row) IsBlank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Project returns the values of the given columns in that order.
// Columns the row does not carry yield "".
func (r Row) Project(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r.Get(c)
	}
	return out
}

// Equal compares two rows column by column over the union of their columns.
// Column order and the timestamp are ignored.
func (r Row) Equal(other Row) bool {
	for i, c := range r.Columns {
		if other.Get(c) != r.Values[i] {
			return false
		}
	}
	for i, c := range other.Columns {
		if r.Get(c) != other.Values[i] {
			return false
		}
	}
	return true
}

func (r Row) index(column string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}
