// Package sheets is the spreadsheet side of the sync: a small value-range
// client, the Google Sheets implementation of it and A1 range helpers.
package sheets

import (
	"context"

	"github.com/zeebo/errs"
)

// Error is the error class for spreadsheet failures.
var Error = errs.Class("sheets")

// Client reads and writes cell values by A1 range. Cells are exchanged as
// strings; rows read back have trailing empty cells and trailing empty rows
// trimmed, as the Sheets API does.
type Client interface {
	// ReadRange returns the values of the range, row by row.
	ReadRange(ctx context.Context, a1 string) ([][]string, error)

	// AppendRange writes rows after the last non-empty row of the table the
	// range points at.
	AppendRange(ctx context.Context, a1 string, rows [][]string) error

	// UpdateRange overwrites the cells of the range starting at its top-left
	// cell.
	UpdateRange(ctx context.Context, a1 string, rows [][]string) error
}
