package sync

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sheetsync/sheetsync/internal/capture"
	"github.com/sheetsync/sheetsync/internal/schema"
	"github.com/sheetsync/sheetsync/internal/sheets"
	"github.com/sheetsync/sheetsync/internal/store"
)

// ExportResult summarizes one export pass.
type ExportResult struct {
	Drained  int
	Appended int
	Updated  int
	Blanked  int
	Skipped  int
}

// Applied returns the number of records acknowledged.
func (r ExportResult) Applied() int {
	return r.Appended + r.Updated + r.Blanked + r.Skipped
}

// Exporter replays captured table mutations onto the spreadsheet.
type Exporter struct {
	log     *zap.Logger
	sheet   sheets.Client
	store   Store
	capture capture.Capture
	config  Config
}

// NewExporter creates an exporter. The config is expected to be validated.
func NewExporter(log *zap.Logger, sheet sheets.Client, store Store, capt capture.Capture, config Config) *Exporter {
	return &Exporter{
		log:     log,
		sheet:   sheet,
		store:   store,
		capture: capt,
		config:  config,
	}
}

// Export drains the change log and applies each record to the spreadsheet in
// creation order. A record is acknowledged only after its write succeeded.
//
// When a record fails the pass stops; the remaining records stay for the
// next pass and capture is left suspended until then.
func (exp *Exporter) Export(ctx context.Context) (result ExportResult, err error) {
	defer mon.Task()(&ctx)(&err)

	records, err := exp.capture.Drain(ctx)
	if err != nil {
		return result, Error.New("failed to fetch sync changes: %w", err)
	}
	result.Drained = len(records)
	if len(records) == 0 {
		exp.log.Debug("No new changes to sync.")
		return result, nil
	}

	if err := exp.capture.Suspend(ctx); err != nil {
		return result, Error.New("failed to suspend capture: %w", err)
	}

	batch, err := exp.newBatch(ctx)
	if err != nil {
		exp.log.Warn("export aborted with capture suspended", zap.Error(err))
		return result, err
	}

	for _, rec := range records {
		if err := batch.apply(ctx, rec, &result); err != nil {
			exp.log.Warn("export aborted with capture suspended",
				zap.Stringer("change", rec), zap.Error(err))
			return result, err
		}
		if err := exp.capture.Ack(ctx, rec); err != nil {
			exp.log.Warn("export aborted with capture suspended",
				zap.Stringer("change", rec), zap.Error(err))
			return result, Error.New("failed to delete sync change: %w", err)
		}
	}

	if err := exp.capture.Resume(ctx); err != nil {
		return result, Error.New("failed to resume capture: %w", err)
	}

	exp.log.Info("export complete",
		zap.Int("changes", result.Drained),
		zap.Int("appended", result.Appended),
		zap.Int("updated", result.Updated),
		zap.Int("blanked", result.Blanked),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// batch carries the sheet layout across the records of one pass.
type batch struct {
	exp *Exporter

	// columns is the sheet header order; nil when the sheet has no header.
	columns []string

	// ids maps Id cells of column A to 1-based sheet rows. It is reloaded
	// lazily after appends.
	ids map[string]int
}

func (exp *Exporter) newBatch(ctx context.Context) (*batch, error) {
	header, err := exp.sheet.ReadRange(ctx, sheets.HeaderRange(exp.config.Sheet))
	if err != nil {
		return nil, Error.New("failed to read header: %w", err)
	}

	b := &batch{exp: exp}
	if len(header) > 0 {
		count := activeColumns(header[0])
		for i := 0; i < count; i++ {
			b.columns = append(b.columns, strings.TrimSpace(header[0][i]))
		}
	}
	return b, nil
}

func (b *batch) apply(ctx context.Context, rec schema.ChangeRecord, result *ExportResult) error {
	switch rec.Operation {
	case schema.OpInsert, schema.OpUpdate:
		return b.upsert(ctx, rec, result)
	case schema.OpDelete:
		return b.blank(ctx, rec, result)
	}
	return Error.New("unknown operation in %s", rec)
}

// upsert writes the current table row to the sheet.
func (b *batch) upsert(ctx context.Context, rec schema.ChangeRecord, result *ExportResult) error {
	log := b.exp.log
	sheet := b.exp.config.Sheet

	row, err := b.exp.store.GetRow(ctx, rec.RowID)
	if errors.Is(err, store.ErrRowNotFound) {
		log.Info("row no longer exists, skipping", zap.Stringer("change", rec))
		result.Skipped++
		return nil
	}
	if err != nil {
		return Error.New("failed to fetch row data: %w", err)
	}

	values := b.values(row)

	target := 0
	switch {
	case b.exp.config.RowLookup == LookupPositional && rec.Operation == schema.OpUpdate:
		target = int(rec.RowID) + 1
	case b.exp.config.RowLookup == LookupScan:
		target, err = b.locate(ctx, row.ID())
		if err != nil {
			return err
		}
	}

	if target == 0 {
		if err := b.exp.sheet.AppendRange(ctx, sheets.ColumnRange(sheet, "A"), [][]string{values}); err != nil {
			return Error.Wrap(err)
		}
		b.ids = nil
		result.Appended++
		log.Info("inserted row into Google Sheets", zap.Int64("id", rec.RowID))
		return nil
	}

	if err := b.exp.sheet.UpdateRange(ctx, sheets.RowRange(sheet, target, len(values)), [][]string{values}); err != nil {
		return Error.Wrap(err)
	}
	result.Updated++
	log.Info("updated row in Google Sheets", zap.Int64("id", rec.RowID), zap.Int("sheet_row", target))
	return nil
}

// blank soft-deletes the sheet row carrying the Id by clearing its cells.
func (b *batch) blank(ctx context.Context, rec schema.ChangeRecord, result *ExportResult) error {
	log := b.exp.log
	id := strconv.FormatInt(rec.RowID, 10)

	target, err := b.locate(ctx, id)
	if err != nil {
		return err
	}
	if target == 0 {
		log.Info("row not found in Google Sheets", zap.Int64("id", rec.RowID))
		result.Skipped++
		return nil
	}

	width := b.exp.config.BlankWidth
	if len(b.columns) > width {
		width = len(b.columns)
	}

	blanks := make([]string, width)
	if err := b.exp.sheet.UpdateRange(ctx, sheets.RowRange(b.exp.config.Sheet, target, width), [][]string{blanks}); err != nil {
		return Error.Wrap(err)
	}
	delete(b.ids, id)
	result.Blanked++
	log.Info("deleted row in Google Sheets", zap.Int64("id", rec.RowID), zap.Int("sheet_row", target))
	return nil
}

// values renders the row in sheet header order. Without a header the table
// column order is used.
func (b *batch) values(row schema.Row) []string {
	if len(b.columns) == 0 {
		return append([]string(nil), row.Values...)
	}
	return row.Project(b.columns)
}

// locate returns the 1-based sheet row whose column A holds id, or 0.
// The header row never matches.
func (b *batch) locate(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, nil
	}

	if b.ids == nil {
		cells, err := b.exp.sheet.ReadRange(ctx, sheets.ColumnRange(b.exp.config.Sheet, "A"))
		if err != nil {
			return 0, Error.New("failed to scan sheet ids: %w", err)
		}
		b.ids = make(map[string]int, len(cells))
		for i, row := range cells {
			if i == 0 || len(row) == 0 {
				continue
			}
			key := strings.TrimSpace(row[0])
			if _, dup := b.ids[key]; key != "" && !dup {
				b.ids[key] = i + 1
			}
		}
	}
	return b.ids[id], nil
}
