// Package config loads the sheetsync configuration from an optional file
// and the environment. SHEETSYNC_* variables override the file, and the
// deployment names SHEET_ID, GOOGLE_APPLICATION_CREDENTIALS and DB_* are
// honored when the SHEETSYNC_* form is unset.
package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"

	"github.com/sheetsync/sheetsync/internal/capture"
	"github.com/sheetsync/sheetsync/internal/daemon"
	"github.com/sheetsync/sheetsync/internal/dashboard"
	"github.com/sheetsync/sheetsync/internal/logging"
	"github.com/sheetsync/sheetsync/internal/sheets"
	"github.com/sheetsync/sheetsync/internal/store"
	syncpkg "github.com/sheetsync/sheetsync/internal/sync"
)

// Error is the error class for configuration failures.
var Error = errs.Class("config")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHEETSYNC"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "sheetsync.toml"

// legacyEnv maps keys to the unprefixed environment names of earlier deployments.
var legacyEnv = map[string]string{
	"spreadsheet.id":               "SHEET_ID",
	"spreadsheet.credentials_file": "GOOGLE_APPLICATION_CREDENTIALS",
	"database.host":                "DB_HOST",
	"database.port":                "DB_PORT",
	"database.user":                "DB_USER",
	"database.password":            "DB_PASSWORD",
	"database.name":                "DB_NAME",
}

// Config is the full process configuration.
type Config struct {
	Spreadsheet Spreadsheet `mapstructure:"spreadsheet"`
	Database    Database    `mapstructure:"database"`
	Sync        Sync        `mapstructure:"sync"`
	HTTP        HTTP        `mapstructure:"http"`
	Log         Log         `mapstructure:"log"`
}

// Spreadsheet locates the sheet and shapes its ranges.
type Spreadsheet struct {
	ID              string        `mapstructure:"id"`
	Sheet           string        `mapstructure:"sheet"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	TimestampColumn string        `mapstructure:"timestamp_column"`
	BlankWidth      int           `mapstructure:"blank_width"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
}

// Database selects the SQL backend.
type Database struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	// DSN overrides the discrete MySQL parameters when set.
	DSN string `mapstructure:"dsn"`
}

// Sync configures both directions and their schedule.
type Sync struct {
	ImportInterval time.Duration `mapstructure:"import_interval"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	Exclusive      bool          `mapstructure:"exclusive"`
	RowLookup      string        `mapstructure:"row_lookup"`
	ImportMode     string        `mapstructure:"import_mode"`
	Capture        string        `mapstructure:"capture"`
}

// HTTP configures the status server.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Log configures the process logger.
type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	sheet := sheets.DefaultConfig()
	sc := syncpkg.DefaultConfig()
	dc := daemon.DefaultConfig()
	lc := logging.DefaultConfig()

	return Config{
		Spreadsheet: Spreadsheet{
			Sheet:           sc.Sheet,
			TimestampColumn: sc.TimestampColumn,
			BlankWidth:      sc.BlankWidth,
			MaxRetries:      sheet.MaxRetries,
			MaxBackoff:      sheet.MaxBackoff,
		},
		Database: Database{
			Driver: store.DriverSQLite,
			Path:   "sheetsync.db",
			Host:   "localhost",
			Port:   3306,
			Name:   "sheetsync",
		},
		Sync: Sync{
			ImportInterval: dc.ImportInterval,
			ExportInterval: dc.ExportInterval,
			Exclusive:      dc.Exclusive,
			RowLookup:      sc.RowLookup,
			ImportMode:     sc.ImportMode,
			Capture:        capture.ModeTriggers,
		},
		HTTP: HTTP{Addr: dashboard.DefaultConfig().Addr},
		Log: Log{
			Level:      lc.Level,
			Format:     lc.Format,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
		},
	}
}

// Loader reads and watches the configuration.
type Loader struct {
	v *viper.Viper

	mu      sync.Mutex
	current Config
}

// NewLoader creates a loader for path. An empty path looks for DefaultFile
// in the working directory and tolerates its absence.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		// Errors only on an empty key.
		_ = v.BindEnv(key, envName(key), legacy)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".toml"))
		v.AddConfigPath(".")
	}

	return &Loader{v: v}
}

// Viper exposes the underlying viper instance, e.g. to bind command flags.
func (l *Loader) Viper() *viper.Viper { return l.v }

// File returns the config file in use, or "" when none was found.
func (l *Loader) File() string { return l.v.ConfigFileUsed() }

// Load reads the file and environment and returns the validated result.
func (l *Loader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, Error.New("failed to read config: %w", err)
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return Config{}, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Watch calls fn with the new configuration every time the file changes and
// still decodes and validates. Invalid edits are passed to onError and the
// previous configuration stays current.
func (l *Loader) Watch(fn func(Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}

		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()
		fn(cfg)
	})
	l.v.WatchConfig()
}

// Current returns the configuration of the last successful load.
func (l *Loader) Current() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, Error.New("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations no component can run with.
func (c *Config) Validate() error {
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		return Error.Wrap(err)
	}
	if c.Database.Driver == store.DriverSQLite && c.Database.Path == "" {
		return Error.New("database.path is required for sqlite")
	}
	if c.Sync.ImportInterval <= 0 || c.Sync.ExportInterval <= 0 {
		return Error.New("sync intervals must be positive")
	}
	if _, err := capture.New(c.Sync.Capture, nil); err != nil {
		return Error.Wrap(err)
	}

	sc := c.SyncConfig()
	if err := sc.Validate(); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// StoreConfig returns the store settings.
func (c *Config) StoreConfig() store.Config {
	cfg := store.Config{Driver: c.Database.Driver, Path: c.Database.Path, DSN: c.Database.DSN}
	if strings.EqualFold(c.Database.Driver, store.DriverMySQL) && cfg.DSN == "" {
		cfg.DSN = store.MySQLDSN(c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.Name)
	}
	return cfg
}

// SheetsConfig returns the spreadsheet client settings.
func (c *Config) SheetsConfig() sheets.Config {
	return sheets.Config{
		SpreadsheetID:   c.Spreadsheet.ID,
		CredentialsFile: c.Spreadsheet.CredentialsFile,
		MaxRetries:      c.Spreadsheet.MaxRetries,
		MaxBackoff:      c.Spreadsheet.MaxBackoff,
	}
}

// SyncConfig returns the import and export settings.
func (c *Config) SyncConfig() syncpkg.Config {
	return syncpkg.Config{
		Sheet:           c.Spreadsheet.Sheet,
		TimestampColumn: c.Spreadsheet.TimestampColumn,
		BlankWidth:      c.Spreadsheet.BlankWidth,
		RowLookup:       c.Sync.RowLookup,
		ImportMode:      c.Sync.ImportMode,
	}
}

// DaemonConfig returns the scheduler settings.
func (c *Config) DaemonConfig() *daemon.Config {
	return &daemon.Config{
		ImportInterval: c.Sync.ImportInterval,
		ExportInterval: c.Sync.ExportInterval,
		Exclusive:      c.Sync.Exclusive,
	}
}

// DashboardConfig returns the status server settings.
func (c *Config) DashboardConfig() *dashboard.Config {
	return &dashboard.Config{Addr: c.HTTP.Addr}
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper, cfg Config) {
	for key, value := range Settings(cfg) {
		v.SetDefault(key, value)
	}
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
