package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sheetsync/sheetsync/internal/capture"
	"github.com/sheetsync/sheetsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show table, change log and hook status",
	Long: `Display the current state of the table side of the sync.

Shows:
  - Database target and table columns
  - Number of rows in the table
  - Number of change records waiting for export
  - Installed row-level hooks`,
	Run: func(cmd *cobra.Command, args []string) {
		requireConfig()
		ctx := context.Background()

		db := openStore(ctx)
		defer func() { _ = db.Close() }()

		columns, err := db.ColumnNames(ctx)
		if err != nil {
			fatalf("Error reading columns: %v", err)
		}
		rows, err := db.CountRows(ctx)
		if err != nil {
			fatalf("Error counting rows: %v", err)
		}
		pending, err := db.CountChanges(ctx)
		if err != nil {
			fatalf("Error counting changes: %v", err)
		}
		triggers, err := db.TriggerNames(ctx)
		if err != nil {
			fatalf("Error listing triggers: %v", err)
		}

		hooks := ui.RenderWarn("none (capture suspended)")
		if len(triggers) == len(capture.TriggerNames()) {
			hooks = ui.RenderPass(strings.Join(triggers, ", "))
		} else if len(triggers) > 0 {
			hooks = ui.RenderWarn(strings.Join(triggers, ", ") + " (incomplete)")
		}

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("📊"))
		fmt.Print(ui.KeyValues([]ui.Field{
			{Key: "Database", Value: db.Target()},
			{Key: "Columns", Value: strings.Join(columns, ", ")},
			{Key: "Rows", Value: fmt.Sprint(rows)},
			{Key: "Pending changes", Value: ui.Count(pending)},
			{Key: "Capture mode", Value: cfg.Sync.Capture},
			{Key: "Hooks", Value: hooks},
		}))
		fmt.Println()
	},
}

var captureCmd = &cobra.Command{
	Use:     "capture",
	GroupID: "setup",
	Short:   "Enable or disable the row-level change hooks",
}

var captureEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Install the insert, update and delete hooks",
	Run: func(cmd *cobra.Command, args []string) {
		requireConfig()
		ctx := context.Background()

		db := openStore(ctx)
		defer func() { _ = db.Close() }()

		if err := capture.NewTriggerCapture(db).Resume(ctx); err != nil {
			fatalf("Error enabling capture: %v", err)
		}
		fmt.Printf("%s Change capture enabled\n", ui.RenderPass("✓"))
	},
}

var captureDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Drop the change hooks; table edits stop reaching the sheet",
	Run: func(cmd *cobra.Command, args []string) {
		requireConfig()
		ctx := context.Background()

		db := openStore(ctx)
		defer func() { _ = db.Close() }()

		if err := capture.NewTriggerCapture(db).Suspend(ctx); err != nil {
			fatalf("Error disabling capture: %v", err)
		}
		fmt.Printf("%s Change capture disabled\n", ui.RenderWarn("⚠"))
	},
}

func init() {
	captureCmd.AddCommand(captureEnableCmd)
	captureCmd.AddCommand(captureDisableCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(captureCmd)
}
