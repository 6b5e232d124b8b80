package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sheetsync/sheetsync/internal/capture"
	"github.com/sheetsync/sheetsync/internal/config"
	"github.com/sheetsync/sheetsync/internal/sheets"
	"github.com/sheetsync/sheetsync/internal/store"
	syncpkg "github.com/sheetsync/sheetsync/internal/sync"
)

// flagKeys binds command flags to configuration keys.
var flagKeys = map[string]string{
	"addr":            "http.addr",
	"import-interval": "sync.import_interval",
	"export-interval": "sync.export_interval",
	"capture":         "sync.capture",
}

func bindFlags(l *config.Loader) {
	for flag, key := range flagKeys {
		if f := daemonCmd.Flags().Lookup(flag); f != nil {
			_ = l.Viper().BindPFlag(key, f)
		}
	}
}

// openStore opens the configured database and ensures the data table and
// change log exist.
func openStore(ctx context.Context) *store.DB {
	db, err := store.Open(cfg.StoreConfig())
	if err != nil {
		fatalf("Error opening database: %v", err)
	}
	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		fatalf("Error initializing schema: %v", err)
	}
	return db
}

func newSheetClient(ctx context.Context, log *zap.Logger) sheets.Client {
	client, err := sheets.NewGoogleClient(ctx, log.Named("sheets"), cfg.SheetsConfig())
	if err != nil {
		fatalf("Error creating Sheets client: %v", err)
	}
	return client
}

func newCapture(db *store.DB) capture.Capture {
	capt, err := capture.New(cfg.Sync.Capture, db)
	if err != nil {
		fatalf("Error creating change capture: %v", err)
	}
	return capt
}

// engines holds the two sync directions sharing one store, sheet and
// capture.
type engines struct {
	importer *syncpkg.Importer
	exporter *syncpkg.Exporter
}

func newEngines(log *zap.Logger, db *store.DB, sheet sheets.Client, capt capture.Capture) engines {
	sc := cfg.SyncConfig()
	if err := sc.Validate(); err != nil {
		fatalf("Error in sync configuration: %v", err)
	}
	return engines{
		importer: syncpkg.NewImporter(log.Named("importer"), sheet, db, capt, sc),
		exporter: syncpkg.NewExporter(log.Named("exporter"), sheet, db, capt, sc),
	}
}
