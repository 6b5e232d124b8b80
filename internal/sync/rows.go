package sync

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/sheetsync/sheetsync/internal/schema"
)

// timestampLayouts are tried before natural language parsing. Sheets renders
// dates in the locale of the spreadsheet, US by default.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
}

var naturalDates = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseTimestamp parses an audit timestamp cell. Unparseable and empty cells
// yield nil; relative expressions ("yesterday 10am") resolve against now.
func ParseTimestamp(cell string, now time.Time) *time.Time {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return &t
		}
	}

	r, err := naturalDates.Parse(cell, now)
	if err != nil || r == nil {
		return nil
	}
	t := r.Time
	return &t
}

// activeColumns counts header cells up to the first blank one.
func activeColumns(header []string) int {
	for i, cell := range header {
		if strings.TrimSpace(cell) == "" {
			return i
		}
	}
	return len(header)
}

// headerColumns returns the trimmed names of the active header cells,
// leaving out the timestamp column when it falls inside them. The returned
// positions map each name to its 0-based sheet column.
func headerColumns(header []string, timestampIndex int) (names []string, positions []int) {
	count := activeColumns(header)
	for i := 0; i < count; i++ {
		if i+1 == timestampIndex {
			continue
		}
		names = append(names, strings.TrimSpace(header[i]))
		positions = append(positions, i)
	}
	return names, positions
}

// buildRows zips each data row with the header names and attaches the audit
// timestamp of the same sheet row. dataRows excludes the header row;
// timestamps includes it. Entirely blank rows are skipped.
func buildRows(names []string, positions []int, dataRows, timestamps [][]string, now time.Time) []schema.Row {
	var rows []schema.Row
	for i, cells := range dataRows {
		values := make([]string, len(names))
		for j, pos := range positions {
			if pos < len(cells) {
				values[j] = cells[pos]
			}
		}

		row := schema.NewRow(names, values)
		if row.IsBlank() {
			continue
		}

		if i+1 < len(timestamps) && len(timestamps[i+1]) > 0 {
			row.Timestamp = ParseTimestamp(timestamps[i+1][0], now)
		}
		rows = append(rows, row)
	}
	return rows
}

// keepColumns restricts rows to the columns the table actually has, in
// table spelling. Columns whose DDL failed are dropped from the insert.
func keepColumns(rows []schema.Row, tableColumns []string) (kept []string, out []schema.Row) {
	if len(rows) == 0 {
		return nil, rows
	}

	for _, name := range rows[0].Columns {
		for _, c := range tableColumns {
			if strings.EqualFold(c, name) {
				kept = append(kept, c)
				break
			}
		}
	}

	out = make([]schema.Row, len(rows))
	for i, row := range rows {
		projected := schema.NewRow(kept, row.Project(kept))
		projected.Timestamp = row.Timestamp
		out[i] = projected
	}
	return kept, out
}
