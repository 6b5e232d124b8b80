package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/sheetsync/sheetsync/internal/capture"
	"github.com/sheetsync/sheetsync/internal/schema"
	"github.com/sheetsync/sheetsync/internal/sheets"
)

// ImportResult summarizes one import pass.
type ImportResult struct {
	// Empty is set when the sheet had no header and nothing was done.
	Empty bool

	Columns   []string
	Reconcile schema.ReconcileResult

	Rows     int
	Inserted int
	Updated  int
	Deleted  int
}

// Importer mirrors the spreadsheet into the data table.
type Importer struct {
	log        *zap.Logger
	sheet      sheets.Client
	store      Store
	capture    capture.Capture
	reconciler *schema.Reconciler
	config     Config

	// now is the reference time of relative timestamps; replaced in tests.
	now func() time.Time
}

// NewImporter creates an importer. The config is expected to be validated.
func NewImporter(log *zap.Logger, sheet sheets.Client, store Store, capt capture.Capture, config Config) *Importer {
	return &Importer{
		log:        log,
		sheet:      sheet,
		store:      store,
		capture:    capt,
		reconciler: schema.NewReconciler(log.Named("schema"), store),
		config:     config,
		now:        time.Now,
	}
}

// Import reads the sheet, reconciles the table columns with its header and
// writes its rows into the table. Capture is suspended while the rows are
// written and resumed on every return, also when the sheet is empty or the
// pass fails, so a suspension left by a failed export ends here too.
func (imp *Importer) Import(ctx context.Context) (result ImportResult, err error) {
	defer mon.Task()(&ctx)(&err)
	defer imp.resume(ctx, &err)

	header, err := imp.sheet.ReadRange(ctx, sheets.HeaderRange(imp.config.Sheet))
	if err != nil {
		return result, Error.New("failed to read header: %w", err)
	}
	if len(header) == 0 || activeColumns(header[0]) == 0 {
		imp.log.Info("No data found in the sheet.")
		result.Empty = true
		return result, nil
	}

	width := activeColumns(header[0])
	dataRows, err := imp.sheet.ReadRange(ctx, sheets.ColumnsRange(imp.config.Sheet, width))
	if err != nil {
		return result, Error.New("failed to read rows: %w", err)
	}
	timestamps, err := imp.sheet.ReadRange(ctx, sheets.ColumnRange(imp.config.Sheet, imp.config.TimestampColumn))
	if err != nil {
		return result, Error.New("failed to read timestamps: %w", err)
	}
	if len(dataRows) == 0 {
		imp.log.Info("No data found in the sheet.")
		result.Empty = true
		return result, nil
	}

	names, positions := headerColumns(dataRows[0], imp.config.timestampIndex())

	tableColumns, err := imp.prepareTable(ctx, names, &result)
	if err != nil {
		return result, err
	}

	rows := buildRows(names, positions, dataRows[1:], timestamps, imp.now())
	result.Columns, rows = keepColumns(rows, tableColumns)
	result.Rows = len(rows)

	if err := imp.capture.Suspend(ctx); err != nil {
		return result, Error.New("failed to suspend capture: %w", err)
	}

	if imp.config.ImportMode == ImportDiff {
		err = imp.applyDiff(ctx, rows, &result)
	} else {
		err = imp.replace(ctx, rows, &result)
	}
	if err != nil {
		imp.log.Error("import aborted", zap.Error(err))
		return result, err
	}

	imp.log.Info("import complete",
		zap.Int("rows", result.Rows),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted))
	return result, nil
}

// resume restores capture once the pass is over. A missing table has nothing
// to capture yet.
func (imp *Importer) resume(ctx context.Context, err *error) {
	ctx = context.WithoutCancel(ctx)

	exists, terr := imp.store.TableExists(ctx)
	if terr == nil && !exists {
		return
	}
	if rerr := imp.capture.Resume(ctx); rerr != nil {
		imp.log.Error("failed to resume capture", zap.Error(rerr))
		*err = errs.Combine(*err, Error.New("failed to resume capture: %w", rerr))
	}
}

// prepareTable creates the table when missing and reconciles its columns
// with the header. Failed DDL is logged and the import goes on with the
// columns the table ended up with, which are returned.
func (imp *Importer) prepareTable(ctx context.Context, names []string, result *ImportResult) ([]string, error) {
	exists, err := imp.store.TableExists(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !exists {
		imp.log.Info("creating table", zap.String("table", schema.DataTable))
		if err := imp.store.InitSchemaContext(ctx); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	existing, err := imp.store.ColumnNames(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	result.Reconcile, err = imp.reconciler.Reconcile(ctx, existing, names)
	if err != nil {
		imp.log.Warn("schema reconciliation incomplete", zap.Error(err))
	}
	if len(result.Reconcile.Added) == 0 && len(result.Reconcile.Dropped) == 0 {
		return existing, nil
	}

	columns, err := imp.store.ColumnNames(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return columns, nil
}

// replace deletes every row and inserts the sheet rows one by one.
func (imp *Importer) replace(ctx context.Context, rows []schema.Row, result *ImportResult) error {
	deleted, err := imp.store.DeleteAllRows(ctx)
	if err != nil {
		return Error.Wrap(err)
	}
	result.Deleted = int(deleted)

	for _, row := range rows {
		id, err := imp.store.InsertRow(ctx, row)
		if err != nil {
			return Error.Wrap(err)
		}
		result.Inserted++
		imp.log.Debug("inserted row", zap.Int64("id", id))
	}
	return nil
}

// applyDiff compares the sheet rows with the table rows by Id and applies
// only the differences.
func (imp *Importer) applyDiff(ctx context.Context, rows []schema.Row, result *ImportResult) error {
	current, err := imp.store.ListRows(ctx)
	if err != nil {
		return Error.Wrap(err)
	}

	byID := make(map[string]schema.Row, len(current))
	for _, row := range current {
		byID[row.ID()] = row
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		id := row.ID()
		if id == "" {
			if _, err := imp.store.InsertRow(ctx, row); err != nil {
				return Error.Wrap(err)
			}
			result.Inserted++
			continue
		}
		seen[id] = true

		old, ok := byID[id]
		if !ok {
			if _, err := imp.store.InsertRow(ctx, row); err != nil {
				return Error.Wrap(err)
			}
			result.Inserted++
			imp.log.Debug("inserted row", zap.String("id", id))
			continue
		}

		if schema.NewRow(row.Columns, old.Project(row.Columns)).Equal(row) {
			continue
		}
		if err := imp.store.UpdateRow(ctx, row); err != nil {
			return Error.Wrap(err)
		}
		result.Updated++
		imp.log.Debug("updated row", zap.String("id", id))
	}

	for _, row := range current {
		id := row.ID()
		if seen[id] {
			continue
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return Error.New("row with non-numeric identity %q", id)
		}
		if err := imp.store.DeleteRow(ctx, n); err != nil {
			return Error.Wrap(err)
		}
		result.Deleted++
		imp.log.Debug("deleted row", zap.String("id", id))
	}
	return nil
}
