package sync

import (
	"strings"

	"github.com/sheetsync/sheetsync/internal/sheets"
)

// Row lookup modes of the Exporter.
const (
	// LookupScan finds a sheet row by its Id cell in column A.
	LookupScan = "scan"

	// LookupPositional writes table row Id n to sheet row n+1.
	LookupPositional = "positional"
)

// Import modes of the Importer.
const (
	// ImportReplace deletes every table row and re-inserts the sheet rows.
	ImportReplace = "replace"

	// ImportDiff inserts, updates and deletes only the rows that differ.
	ImportDiff = "diff"
)

// Config configures both sync passes.
type Config struct {
	// Sheet is the sheet (tab) name inside the spreadsheet.
	Sheet string

	// TimestampColumn holds the per-row audit timestamp. It is read on
	// import but never stored as a table column.
	TimestampColumn string

	// BlankWidth is the minimum number of cells a soft-delete clears.
	BlankWidth int

	// RowLookup is LookupScan or LookupPositional.
	RowLookup string

	// ImportMode is ImportReplace or ImportDiff.
	ImportMode string
}

// DefaultConfig returns the settings of a single-sheet deployment.
func DefaultConfig() Config {
	return Config{
		Sheet:           "Sheet1",
		TimestampColumn: "Z",
		BlankWidth:      21,
		RowLookup:       LookupScan,
		ImportMode:      ImportReplace,
	}
}

// Validate checks the settings and fills defaults for empty fields.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Sheet == "" {
		c.Sheet = def.Sheet
	}
	if c.TimestampColumn == "" {
		c.TimestampColumn = def.TimestampColumn
	}
	if c.BlankWidth <= 0 {
		c.BlankWidth = def.BlankWidth
	}

	c.TimestampColumn = strings.ToUpper(c.TimestampColumn)
	if _, err := sheets.ColumnIndex(c.TimestampColumn); err != nil {
		return Error.New("invalid timestamp column: %w", err)
	}

	switch strings.ToLower(c.RowLookup) {
	case "":
		c.RowLookup = def.RowLookup
	case LookupScan, LookupPositional:
		c.RowLookup = strings.ToLower(c.RowLookup)
	default:
		return Error.New("unknown row lookup %q", c.RowLookup)
	}

	switch strings.ToLower(c.ImportMode) {
	case "":
		c.ImportMode = def.ImportMode
	case ImportReplace, ImportDiff:
		c.ImportMode = strings.ToLower(c.ImportMode)
	default:
		return Error.New("unknown import mode %q", c.ImportMode)
	}
	return nil
}

// timestampIndex returns the 1-based column number of the timestamp column.
func (c Config) timestampIndex() int {
	n, err := sheets.ColumnIndex(c.TimestampColumn)
	if err != nil {
		return 0
	}
	return n
}
