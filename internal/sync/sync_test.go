package sync_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sheetsync/sheetsync/internal/capture"
	"github.com/sheetsync/sheetsync/internal/schema"
	"github.com/sheetsync/sheetsync/internal/sheets"
	"github.com/sheetsync/sheetsync/internal/sheets/sheetstest"
	"github.com/sheetsync/sheetsync/internal/store"
	"github.com/sheetsync/sheetsync/internal/sync"
)

type env struct {
	db       *store.DB
	sheet    *sheetstest.Spreadsheet
	capture  capture.Capture
	importer *sync.Importer
	exporter *sync.Exporter
}

func newEnv(t *testing.T, configure ...func(*sync.Config)) *env {
	t.Helper()
	return newEnvWithCapture(t, capture.ModeTriggers, configure...)
}

func newEnvWithCapture(t *testing.T, mode string, configure ...func(*sync.Config)) *env {
	t.Helper()

	db, err := store.Open(store.Config{Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "sync.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := sync.DefaultConfig()
	for _, fn := range configure {
		fn(&cfg)
	}
	require.NoError(t, cfg.Validate())

	log := zaptest.NewLogger(t)
	sheet := sheetstest.New()
	capt, err := capture.New(mode, db)
	require.NoError(t, err)

	return &env{
		db:       db,
		sheet:    sheet,
		capture:  capt,
		importer: sync.NewImporter(log.Named("importer"), sheet, db, capt, cfg),
		exporter: sync.NewExporter(log.Named("exporter"), sheet, db, capt, cfg),
	}
}

func (e *env) rows(t *testing.T) [][]string {
	t.Helper()

	columns, err := e.db.ColumnNames(context.Background())
	require.NoError(t, err)
	rows, err := e.db.ListRows(context.Background())
	require.NoError(t, err)

	out := [][]string{columns}
	for _, row := range rows {
		out = append(out, row.Project(columns))
	}
	return out
}

func (e *env) pending(t *testing.T) int {
	t.Helper()

	n, err := e.db.CountChanges(context.Background())
	require.NoError(t, err)
	return n
}

func (e *env) triggers(t *testing.T) []string {
	t.Helper()

	names, err := e.db.TriggerNames(context.Background())
	require.NoError(t, err)
	return names
}

func (e *env) importSheet(t *testing.T, rows [][]string) sync.ImportResult {
	t.Helper()

	e.sheet.SetRows("Sheet1", rows)
	result, err := e.importer.Import(context.Background())
	require.NoError(t, err)
	return result
}

func TestImport_FullMirror(t *testing.T) {
	e := newEnv(t)

	result := e.importSheet(t, [][]string{
		{"Id", "Name", "Amount"},
		{"1", "Ada", "10"},
		{"2", "Grace", "20"},
	})

	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, [][]string{
		{"Id", "Name", "Amount"},
		{"1", "Ada", "10"},
		{"2", "Grace", "20"},
	}, e.rows(t))

	assert.Equal(t, 0, e.pending(t), "import must not be echoed into the change log")
	assert.Len(t, e.triggers(t), 3)
}

func TestImport_ReplacesRowsAndSkipsBlankRows(t *testing.T) {
	e := newEnv(t)

	e.importSheet(t, [][]string{
		{"Id", "Name"},
		{"1", "Ada"},
		{"2", "Grace"},
	})
	result := e.importSheet(t, [][]string{
		{"Id", "Name"},
		{"", ""},
		{"2", "Hopper"},
		{"3"},
	})

	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, [][]string{
		{"Id", "Name"},
		{"2", "Hopper"},
		{"3", ""},
	}, e.rows(t))
}

func TestImport_EmptySheetIsNoop(t *testing.T) {
	e := newEnv(t)

	e.importSheet(t, [][]string{{"Id", "Name"}, {"1", "Ada"}})

	e.sheet.SetRows("Sheet1", nil)
	result, err := e.importer.Import(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Empty)
	assert.Equal(t, [][]string{{"Id", "Name"}, {"1", "Ada"}}, e.rows(t))
}

func TestImport_ReconcilesColumns(t *testing.T) {
	e := newEnv(t)

	e.importSheet(t, [][]string{{"Id", "Name", "Amount"}, {"1", "Ada", "10"}})
	result := e.importSheet(t, [][]string{{"Id", "Amount", "Email"}, {"1", "10", "ada@example.com"}})

	assert.Equal(t, []string{"Email"}, result.Reconcile.Added)
	assert.Equal(t, []string{"Name"}, result.Reconcile.Dropped)
	assert.Equal(t, [][]string{
		{"Id", "Amount", "Email"},
		{"1", "10", "ada@example.com"},
	}, e.rows(t))

	again := e.importSheet(t, [][]string{{"Id", "Amount", "Email"}, {"1", "10", "ada@example.com"}})
	assert.Empty(t, again.Reconcile.Added)
	assert.Empty(t, again.Reconcile.Dropped)
	assert.Empty(t, again.Reconcile.Failed)
}

func TestImport_IdNeverDropped(t *testing.T) {
	e := newEnv(t)

	result := e.importSheet(t, [][]string{{"Name"}, {"Ada"}, {"Grace"}})

	assert.Empty(t, result.Reconcile.Dropped)
	assert.Equal(t, [][]string{
		{"Id", "Name"},
		{"1", "Ada"},
		{"2", "Grace"},
	}, e.rows(t))
}

func TestImport_HeaderStopsAtFirstBlank(t *testing.T) {
	e := newEnv(t)

	e.importSheet(t, [][]string{
		{"Id", "Name", " ", "Ignored"},
		{"1", "Ada", "x", "y"},
	})

	assert.Equal(t, [][]string{{"Id", "Name"}, {"1", "Ada"}}, e.rows(t))
	assert.Equal(t, "Sheet1!A:B", e.sheet.CallsOf(sheetstest.OpRead)[1].Range)
}

func TestImport_WideSheet(t *testing.T) {
	for _, width := range []int{26, 27, 52, 53} {
		t.Run(fmt.Sprint(width), func(t *testing.T) {
			e := newEnv(t, func(c *sync.Config) { c.TimestampColumn = "ZZZ" })

			header := []string{"Id"}
			values := []string{"1"}
			for i := 2; i <= width; i++ {
				header = append(header, fmt.Sprintf("c%d", i))
				values = append(values, fmt.Sprintf("v%d", i))
			}
			e.importSheet(t, [][]string{header, values})

			rows := e.rows(t)
			require.Len(t, rows, 2)
			assert.Len(t, rows[0], width)
			assert.Equal(t, values, rows[1])
			assert.Equal(t, sheets.ColumnsRange("Sheet1", width), e.sheet.CallsOf(sheetstest.OpRead)[1].Range)
		})
	}
}

func TestImport_TimestampColumnNotStored(t *testing.T) {
	e := newEnv(t, func(c *sync.Config) { c.TimestampColumn = "C" })

	result := e.importSheet(t, [][]string{
		{"Id", "Name", "Updated"},
		{"1", "Ada", "2024-05-01 10:00:00"},
	})

	assert.Equal(t, []string{"Id", "Name"}, result.Columns)
	assert.Equal(t, [][]string{{"Id", "Name"}, {"1", "Ada"}}, e.rows(t))
}

func TestImport_FailureStillResumesCapture(t *testing.T) {
	e := newEnv(t)

	e.sheet.SetRows("Sheet1", [][]string{
		{"Id", "Name"},
		{"1", "Ada"},
		{"1", "Duplicate"},
	})
	_, err := e.importer.Import(context.Background())
	require.Error(t, err)
	assert.True(t, sync.Error.Has(err))

	assert.Len(t, e.triggers(t), 3)
	// No rollback: the row before the failure stays.
	assert.Equal(t, [][]string{{"Id", "Name"}, {"1", "Ada"}}, e.rows(t))
}

func TestImport_ReadFailure(t *testing.T) {
	e := newEnv(t)
	e.sheet.Fail = func(op, a1 string) error { return errors.New("unavailable") }

	_, err := e.importer.Import(context.Background())
	require.Error(t, err)

	exists, err := e.db.TableExists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestImport_DiffMode(t *testing.T) {
	e := newEnv(t, func(c *sync.Config) { c.ImportMode = sync.ImportDiff })

	e.importSheet(t, [][]string{
		{"Id", "Name"},
		{"1", "Ada"},
		{"2", "Grace"},
		{"3", "Edsger"},
	})
	result := e.importSheet(t, [][]string{
		{"Id", "Name"},
		{"1", "Ada"},
		{"3", "Dijkstra"},
		{"4", "Barbara"},
	})

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, [][]string{
		{"Id", "Name"},
		{"1", "Ada"},
		{"3", "Dijkstra"},
		{"4", "Barbara"},
	}, e.rows(t))
	assert.Equal(t, 0, e.pending(t))
}

func TestExport_CaptureRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name", "Amount"}, {"1", "Ada", "10"}})

	_, err := e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name", "Amount"}, []string{"2", "Grace", "20"}))
	require.NoError(t, err)
	require.Equal(t, 1, e.pending(t))

	result, err := e.exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Appended)

	assert.Equal(t, [][]string{
		{"Id", "Name", "Amount"},
		{"1", "Ada", "10"},
		{"2", "Grace", "20"},
	}, e.sheet.Rows("Sheet1"))
	assert.Equal(t, 0, e.pending(t))
	assert.Len(t, e.triggers(t), 3)
}

func TestExport_NothingPending(t *testing.T) {
	e := newEnv(t)
	e.importSheet(t, [][]string{{"Id", "Name"}, {"1", "Ada"}})
	calls := len(e.sheet.Calls())

	result, err := e.exporter.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Drained)
	assert.Len(t, e.sheet.Calls(), calls)
}

func TestExport_FIFO(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{
		{"Id", "Name"},
		{"1", "Ada"},
		{"2", "Grace"},
	})

	require.NoError(t, e.db.UpdateRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"2", "Hopper"})))
	require.NoError(t, e.db.DeleteRow(ctx, 1))

	result, err := e.exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Blanked)

	updates := e.sheet.CallsOf(sheetstest.OpUpdate)
	require.Len(t, updates, 2)
	assert.Equal(t, "Sheet1!A3:B3", updates[0].Range)
	assert.Equal(t, "Sheet1!A2:U2", updates[1].Range)

	assert.Equal(t, [][]string{
		{"Id", "Name"},
		nil,
		{"2", "Hopper"},
	}, e.sheet.Rows("Sheet1"))
	assert.Equal(t, 0, e.pending(t))
}

func TestExport_ScanFindsMovedRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{
		{"Id", "Name"},
		{"5", "Ada"},
		{"2", "Grace"},
	})
	require.NoError(t, e.db.UpdateRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"5", "Lovelace"})))

	_, err := e.exporter.Export(ctx)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Id", "Name"},
		{"5", "Lovelace"},
		{"2", "Grace"},
	}, e.sheet.Rows("Sheet1"))
}

func TestExport_RedeliveredInsertIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name"}, {"1", "Ada"}})
	_, err := e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"2", "Grace"}))
	require.NoError(t, err)

	// The sheet already carries the row, as after a crash between the
	// write and the acknowledgement.
	e.sheet.SetRows("Sheet1", [][]string{{"Id", "Name"}, {"1", "Ada"}, {"2", "Grace"}})

	result, err := e.exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Appended)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, [][]string{{"Id", "Name"}, {"1", "Ada"}, {"2", "Grace"}}, e.sheet.Rows("Sheet1"))
}

func TestExport_PositionalLookup(t *testing.T) {
	e := newEnv(t, func(c *sync.Config) { c.RowLookup = sync.LookupPositional })
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name"}, {"1", "Ada"}, {"2", "Grace"}})
	require.NoError(t, e.db.UpdateRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"2", "Hopper"})))

	_, err := e.exporter.Export(ctx)
	require.NoError(t, err)

	updates := e.sheet.CallsOf(sheetstest.OpUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "Sheet1!A3:B3", updates[0].Range)
}

func TestExport_HeaderOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Name", "Id"}, {"Ada", "1"}})
	_, err := e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"2", "Grace"}))
	require.NoError(t, err)

	_, err = e.exporter.Export(ctx)
	require.NoError(t, err)

	appends := e.sheet.CallsOf(sheetstest.OpAppend)
	require.Len(t, appends, 1)
	assert.Equal(t, [][]string{{"Grace", "2"}}, appends[0].Rows)
}

func TestExport_DeletedRowIsSkipped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name"}})
	_, err := e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"7", "Ada"}))
	require.NoError(t, err)

	// Remove the row behind the hooks' back.
	require.NoError(t, e.capture.Suspend(ctx))
	require.NoError(t, e.db.DeleteRow(ctx, 7))
	require.NoError(t, e.capture.Resume(ctx))

	result, err := e.exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, e.sheet.CallsOf(sheetstest.OpAppend))
	assert.Equal(t, 0, e.pending(t))
}

func TestExport_FailureKeepsRemainingRecords(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name"}})
	for i := 1; i <= 3; i++ {
		_, err := e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{fmt.Sprint(i), "x"}))
		require.NoError(t, err)
	}

	appends := 0
	e.sheet.Fail = func(op, a1 string) error {
		if op != sheetstest.OpAppend {
			return nil
		}
		appends++
		if appends == 2 {
			return errors.New("quota")
		}
		return nil
	}

	result, err := e.exporter.Export(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, result.Appended)
	assert.Equal(t, 2, e.pending(t))

	// Capture is left suspended until the next pass.
	assert.Empty(t, e.triggers(t))

	e.sheet.Fail = nil
	result, err = e.exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Appended)
	assert.Equal(t, 0, e.pending(t))
	assert.Len(t, e.triggers(t), 3)
}

func TestExport_PollingFailureKeepsRemainingRecords(t *testing.T) {
	e := newEnvWithCapture(t, capture.ModePolling)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name"}})
	for i := 1; i <= 3; i++ {
		_, err := e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{fmt.Sprint(i), "x"}))
		require.NoError(t, err)
	}

	appends := 0
	e.sheet.Fail = func(op, a1 string) error {
		if op != sheetstest.OpAppend {
			return nil
		}
		appends++
		if appends == 2 {
			return errors.New("quota")
		}
		return nil
	}

	result, err := e.exporter.Export(ctx)
	require.Error(t, err)
	assert.Equal(t, 3, result.Drained)
	assert.Equal(t, 1, result.Appended)

	e.sheet.Fail = nil
	result, err = e.exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Drained)
	assert.Equal(t, 2, result.Appended)

	assert.Equal(t, [][]string{
		{"Id", "Name"},
		{"1", "x"},
		{"2", "x"},
		{"3", "x"},
	}, e.sheet.Rows("Sheet1"))

	// Capture runs again: a later insert is exported.
	_, err = e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"4", "y"}))
	require.NoError(t, err)
	result, err = e.exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Appended)
}

func TestImport_EmptySheetResumesCapture(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name"}})
	_, err := e.db.InsertRow(ctx, schema.NewRow([]string{"Id", "Name"}, []string{"1", "Ada"}))
	require.NoError(t, err)

	e.sheet.Fail = func(op, a1 string) error {
		if op == sheetstest.OpAppend {
			return errors.New("quota")
		}
		return nil
	}
	_, err = e.exporter.Export(ctx)
	require.Error(t, err)
	require.Empty(t, e.triggers(t))

	e.sheet.Fail = nil
	e.sheet.SetRows("Sheet1", nil)
	result, err := e.importer.Import(ctx)
	require.NoError(t, err)
	assert.True(t, result.Empty)
	assert.Len(t, e.triggers(t), 3)
}

func TestImport_HeaderReadFailureResumesCapture(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.importSheet(t, [][]string{{"Id", "Name"}})
	require.NoError(t, e.capture.Suspend(ctx))

	e.sheet.Fail = func(op, a1 string) error { return errors.New("unavailable") }
	_, err := e.importer.Import(ctx)
	require.Error(t, err)
	assert.Len(t, e.triggers(t), 3)
}

func TestParseTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want *time.Time
	}{
		{"", nil},
		{"   ", nil},
		{"n/a", nil},
		{"2024-05-01T10:00:00Z", ptr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))},
		{"2024-05-01 10:00:00", ptr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))},
		{"5/1/2024", ptr(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))},
		{"5/1/2024 10:30:00", ptr(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := sync.ParseTimestamp(tt.in, now)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v, want %v", *got, *tt.want)
		})
	}

	relative := sync.ParseTimestamp("tomorrow", now)
	require.NotNil(t, relative)
	assert.Equal(t, 16, relative.Day())
}

func TestConfigValidate(t *testing.T) {
	cfg := sync.Config{TimestampColumn: "aa", RowLookup: "SCAN"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Sheet1", cfg.Sheet)
	assert.Equal(t, "AA", cfg.TimestampColumn)
	assert.Equal(t, sync.LookupScan, cfg.RowLookup)
	assert.Equal(t, sync.ImportReplace, cfg.ImportMode)
	assert.Equal(t, 21, cfg.BlankWidth)

	bad := sync.Config{RowLookup: "guess"}
	assert.Error(t, bad.Validate())

	bad = sync.Config{TimestampColumn: "Z1"}
	assert.Error(t, bad.Validate())
}

func ptr(t time.Time) *time.Time { return &t }
