// Command sheetsync keeps a Google Sheets worksheet and a SQL table in sync.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sheetsync/sheetsync/internal/config"
	"github.com/sheetsync/sheetsync/internal/logging"
	"github.com/sheetsync/sheetsync/internal/ui"
)

var (
	configFile string
	logLevel   string

	loader  *config.Loader
	cfg     config.Config
	loadErr error
)

var rootCmd = &cobra.Command{
	Use:   "sheetsync",
	Short: "Bidirectional sync between a Google Sheet and a SQL table",
	Long: `sheetsync mirrors a Google Sheets worksheet into a SQL table and pushes
table edits back to the sheet.

Sheet -> table runs as a full refresh of the table (import). Table -> sheet
replays the change log written by row-level hooks (export). The daemon runs
both on independent schedules and serves a health endpoint.

Configuration is read from sheetsync.toml (or --config), SHEETSYNC_* env vars
and the deployment variables SHEET_ID, GOOGLE_APPLICATION_CREDENTIALS and DB_*.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
	)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./sheetsync.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	cobra.OnInitialize(initConfig)
}

// initConfig loads the configuration before any command runs. Commands that
// need a valid configuration call requireConfig.
func initConfig() {
	loader = config.NewLoader(configFile)
	bindFlags(loader)

	if logLevel != "" {
		loader.Viper().Set("log.level", logLevel)
	}
	cfg, loadErr = loader.Load()
}

// requireConfig exits when the configuration did not load.
func requireConfig() {
	if loadErr != nil {
		fatalf("Error loading configuration: %v", loadErr)
	}
}

// newLogger builds the process logger from the loaded configuration.
func newLogger() *zap.Logger {
	log, err := logging.New(cfg.LogConfig())
	if err != nil {
		fatalf("Error creating logger: %v", err)
	}
	return log
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("✗"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

func main() {
	ui.Configure(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
