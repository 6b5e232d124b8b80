package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetsync/sheetsync/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import",
	GroupID: "sync",
	Short:   "Run one sheet to table cycle",
	Long: `Read the sheet and rewrite the table from it.

This performs a single import:
  1. Reads the header row and every data row
  2. Adds and drops table columns to match the header
  3. Replaces (or diffs, with sync.import_mode = "diff") the table rows
  4. Leaves change capture enabled`,
	Run: func(cmd *cobra.Command, args []string) {
		requireConfig()
		log := newLogger()
		defer func() { _ = log.Sync() }()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db := openStore(ctx)
		defer func() { _ = db.Close() }()

		eng := newEngines(log, db, newSheetClient(ctx, log), newCapture(db))

		fmt.Printf("%s Importing %s!%s...\n", ui.RenderAccent("🔄"), cfg.Spreadsheet.ID, cfg.Spreadsheet.Sheet)
		start := time.Now()

		result, err := eng.importer.Import(ctx)
		if err != nil {
			fatalf("Error during import: %v", err)
		}
		if result.Empty {
			fmt.Printf("%s Sheet is empty, nothing imported\n", ui.RenderWarn("⚠"))
			return
		}

		fmt.Printf("%s Import complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Print(ui.KeyValues([]ui.Field{
			{Key: "Columns", Value: strings.Join(result.Columns, ", ")},
			{Key: "Added", Value: joinOrNone(result.Reconcile.Added)},
			{Key: "Dropped", Value: joinOrNone(result.Reconcile.Dropped)},
			{Key: "Rows", Value: fmt.Sprint(result.Rows)},
			{Key: "Inserted", Value: fmt.Sprint(result.Inserted)},
			{Key: "Updated", Value: fmt.Sprint(result.Updated)},
			{Key: "Deleted", Value: fmt.Sprint(result.Deleted)},
		}))
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "sync",
	Short:   "Run one table to sheet cycle",
	Long: `Replay the pending change records onto the sheet.

Inserts and updates write the current row, deletes blank the sheet row.
Each record is removed once the sheet reflects it. A failure stops the cycle
with the remaining records kept for the next run.`,
	Run: func(cmd *cobra.Command, args []string) {
		requireConfig()
		log := newLogger()
		defer func() { _ = log.Sync() }()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db := openStore(ctx)
		defer func() { _ = db.Close() }()

		eng := newEngines(log, db, newSheetClient(ctx, log), newCapture(db))

		start := time.Now()
		result, err := eng.exporter.Export(ctx)
		if err != nil {
			fatalf("Error during export: %v", err)
		}
		if result.Drained == 0 {
			fmt.Printf("%s No new changes to sync\n", ui.RenderPass("✓"))
			return
		}

		fmt.Printf("%s Export complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Print(ui.KeyValues([]ui.Field{
			{Key: "Changes", Value: fmt.Sprint(result.Drained)},
			{Key: "Appended", Value: fmt.Sprint(result.Appended)},
			{Key: "Updated", Value: fmt.Sprint(result.Updated)},
			{Key: "Blanked", Value: fmt.Sprint(result.Blanked)},
			{Key: "Skipped", Value: fmt.Sprint(result.Skipped)},
		}))
	},
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return ui.RenderMuted("none")
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
