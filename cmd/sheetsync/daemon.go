package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheetsync/sheetsync/internal/capture"
	"github.com/sheetsync/sheetsync/internal/config"
	"github.com/sheetsync/sheetsync/internal/daemon"
	"github.com/sheetsync/sheetsync/internal/dashboard"
	"github.com/sheetsync/sheetsync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run both sync directions on a schedule and serve /health",
	Long: `Run the sync service in the foreground.

The daemon:
  1. Imports the sheet into the table every sync.import_interval
  2. Exports captured table changes to the sheet every sync.export_interval
  3. Serves GET / (liveness), GET /health and the /ws event stream on http.addr
  4. Applies interval changes from the config file without a restart

Example usage:
  sheetsync daemon
  sheetsync daemon --addr :8080 --import-interval 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		requireConfig()
		log := newLogger()
		defer func() { _ = log.Sync() }()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db := openStore(ctx)
		defer func() { _ = db.Close() }()

		sheet := newSheetClient(ctx, log)
		capt := newCapture(db)
		eng := newEngines(log, db, sheet, capt)

		// Edits made before the first cycle are captured too.
		if err := capt.Resume(ctx); err != nil {
			fatalf("Error enabling change capture: %v", err)
		}

		scheduler := daemon.New(log.Named("daemon"), eng.importer, eng.exporter, cfg.DaemonConfig())

		// The change log only counts pending work when hooks feed it.
		var pending dashboard.PendingCounter
		if !strings.EqualFold(cfg.Sync.Capture, capture.ModePolling) {
			pending = db
		}
		server := dashboard.NewServer(log.Named("dashboard"), cfg.DashboardConfig(), scheduler, pending)
		scheduler.SetNotifier(dashboard.NewHandler(log.Named("dashboard"), server))

		if file := loader.File(); file != "" {
			loader.Watch(func(c config.Config) {
				log.Info("configuration reloaded",
					zap.Duration("import_interval", c.Sync.ImportInterval),
					zap.Duration("export_interval", c.Sync.ExportInterval))
				scheduler.SetIntervals(c.Sync.ImportInterval, c.Sync.ExportInterval)
			}, func(err error) {
				log.Warn("ignoring invalid configuration change", zap.Error(err))
			})
		}

		if err := server.Start(); err != nil {
			fatalf("Error starting server: %v", err)
		}

		fmt.Printf("%s Starting sync daemon...\n", ui.RenderAccent("🚀"))
		fmt.Print(ui.KeyValues([]ui.Field{
			{Key: "Spreadsheet", Value: cfg.Spreadsheet.ID},
			{Key: "Sheet", Value: cfg.Spreadsheet.Sheet},
			{Key: "Database", Value: db.Target()},
			{Key: "Capture", Value: cfg.Sync.Capture},
			{Key: "Import every", Value: cfg.Sync.ImportInterval.String()},
			{Key: "Export every", Value: cfg.Sync.ExportInterval.String()},
			{Key: "Health", Value: "http://" + server.GetAddr() + "/health"},
		}))
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return scheduler.Start(gctx)
		})
		group.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})

		if err := group.Wait(); err != nil && ctx.Err() == nil {
			fatalf("Daemon stopped with error: %v", err)
		}
		fmt.Printf("%s Daemon stopped\n", ui.RenderPass("✓"))
	},
}

func init() {
	defaults := config.Default()
	daemonCmd.Flags().String("addr", defaults.HTTP.Addr, "status server listen address")
	daemonCmd.Flags().Duration("import-interval", defaults.Sync.ImportInterval, "sheet to table period")
	daemonCmd.Flags().Duration("export-interval", defaults.Sync.ExportInterval, "table to sheet period")
	daemonCmd.Flags().String("capture", defaults.Sync.Capture, "change capture mode (triggers|polling)")

	rootCmd.AddCommand(daemonCmd)
}
