// Package sheetstest provides an in-memory spreadsheet for tests.
package sheetstest

import (
	"context"
	"sync"

	"github.com/sheetsync/sheetsync/internal/sheets"
)

// Operation names recorded in Call.
const (
	OpRead   = "read"
	OpAppend = "append"
	OpUpdate = "update"
)

// Call is one request made against the fake.
type Call struct {
	Op    string
	Range string
	Rows  [][]string
}

// Spreadsheet is an in-memory sheets.Client. Reads trim trailing empty cells
// and rows like the Sheets API; appends land after the last non-empty row.
type Spreadsheet struct {
	mu    sync.Mutex
	grids map[string][][]string
	calls []Call

	// Fail, when set, is consulted before every call; a non-nil result is
	// returned instead of performing the call.
	Fail func(op, a1 string) error
}

var _ sheets.Client = (*Spreadsheet)(nil)

// New returns an empty spreadsheet.
func New() *Spreadsheet {
	return &Spreadsheet{grids: make(map[string][][]string)}
}

// SetRows replaces the content of a sheet.
func (s *Spreadsheet) SetRows(sheet string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grids[sheet] = copyRows(rows)
}

// Rows returns the content of a sheet as the API would return Sheet!A:ZZZ.
func (s *Spreadsheet) Rows(sheet string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return trim(copyRows(s.grids[sheet]))
}

// Calls returns the requests made so far.
func (s *Spreadsheet) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Call(nil), s.calls...)
}

// CallsOf returns the requests of one operation.
func (s *Spreadsheet) CallsOf(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ReadRange implements sheets.Client.
func (s *Spreadsheet) ReadRange(ctx context.Context, a1 string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.begin(ctx, OpRead, a1, nil)
	if err != nil {
		return nil, err
	}

	grid := s.grids[r.Sheet]
	firstRow, lastRow := bounds(r.FirstRow, r.LastRow, len(grid))

	var out [][]string
	for i := firstRow - 1; i < lastRow && i < len(grid); i++ {
		row := grid[i]
		firstCol, lastCol := bounds(r.FirstCol, r.LastCol, len(row))
		var cells []string
		for j := firstCol - 1; j < lastCol && j < len(row); j++ {
			cells = append(cells, row[j])
		}
		out = append(out, cells)
	}
	return trim(out), nil
}

// AppendRange implements sheets.Client.
func (s *Spreadsheet) AppendRange(ctx context.Context, a1 string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.begin(ctx, OpAppend, a1, rows)
	if err != nil {
		return err
	}

	next := len(trim(copyRows(s.grids[r.Sheet]))) + 1
	firstCol := r.FirstCol
	if firstCol == 0 {
		firstCol = 1
	}
	for i, row := range rows {
		s.write(r.Sheet, next+i, firstCol, row)
	}
	return nil
}

// UpdateRange implements sheets.Client.
func (s *Spreadsheet) UpdateRange(ctx context.Context, a1 string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.begin(ctx, OpUpdate, a1, rows)
	if err != nil {
		return err
	}

	firstRow, firstCol := r.FirstRow, r.FirstCol
	if firstRow == 0 {
		firstRow = 1
	}
	if firstCol == 0 {
		firstCol = 1
	}
	for i, row := range rows {
		s.write(r.Sheet, firstRow+i, firstCol, row)
	}
	return nil
}

func (s *Spreadsheet) begin(ctx context.Context, op, a1 string, rows [][]string) (sheets.Range, error) {
	s.calls = append(s.calls, Call{Op: op, Range: a1, Rows: copyRows(rows)})

	if err := ctx.Err(); err != nil {
		return sheets.Range{}, err
	}
	if s.Fail != nil {
		if err := s.Fail(op, a1); err != nil {
			return sheets.Range{}, err
		}
	}
	return sheets.ParseRange(a1)
}

// write stores cells at 1-based row and column, growing the grid as needed.
func (s *Spreadsheet) write(sheet string, row, col int, cells []string) {
	grid := s.grids[sheet]
	for len(grid) < row {
		grid = append(grid, nil)
	}
	line := grid[row-1]
	for len(line) < col-1+len(cells) {
		line = append(line, "")
	}
	copy(line[col-1:], cells)
	grid[row-1] = line
	s.grids[sheet] = grid
}

// bounds resolves open range bounds against the available length.
func bounds(first, last, length int) (int, int) {
	if first == 0 {
		first = 1
	}
	if last == 0 {
		last = length
	}
	return first, last
}

func trim(rows [][]string) [][]string {
	for i, row := range rows {
		end := len(row)
		for end > 0 && row[end-1] == "" {
			end--
		}
		if end == 0 {
			rows[i] = nil
		} else {
			rows[i] = row[:end]
		}
	}
	end := len(rows)
	for end > 0 && len(rows[end-1]) == 0 {
		end--
	}
	if end == 0 {
		return nil
	}
	return rows[:end]
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
