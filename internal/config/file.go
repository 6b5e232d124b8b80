package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Redacted replaces secrets in printed configurations.
const Redacted = "********"

// Settings flattens cfg into dotted keys. Durations are rendered as strings
// ("8s") so every encoder writes them the same way.
func Settings(cfg Config) map[string]interface{} {
	return map[string]interface{}{
		"spreadsheet.id":               cfg.Spreadsheet.ID,
		"spreadsheet.sheet":            cfg.Spreadsheet.Sheet,
		"spreadsheet.credentials_file": cfg.Spreadsheet.CredentialsFile,
		"spreadsheet.timestamp_column": cfg.Spreadsheet.TimestampColumn,
		"spreadsheet.blank_width":      cfg.Spreadsheet.BlankWidth,
		"spreadsheet.max_retries":      cfg.Spreadsheet.MaxRetries,
		"spreadsheet.max_backoff":      cfg.Spreadsheet.MaxBackoff.String(),

		"database.driver":   cfg.Database.Driver,
		"database.path":     cfg.Database.Path,
		"database.host":     cfg.Database.Host,
		"database.port":     cfg.Database.Port,
		"database.user":     cfg.Database.User,
		"database.password": cfg.Database.Password,
		"database.name":     cfg.Database.Name,
		"database.dsn":      cfg.Database.DSN,

		"sync.import_interval": cfg.Sync.ImportInterval.String(),
		"sync.export_interval": cfg.Sync.ExportInterval.String(),
		"sync.exclusive":       cfg.Sync.Exclusive,
		"sync.row_lookup":      cfg.Sync.RowLookup,
		"sync.import_mode":     cfg.Sync.ImportMode,
		"sync.capture":         cfg.Sync.Capture,

		"http.addr": cfg.HTTP.Addr,

		"log.level":        cfg.Log.Level,
		"log.format":       cfg.Log.Format,
		"log.file":         cfg.Log.File,
		"log.max_size_mb":  cfg.Log.MaxSizeMB,
		"log.max_backups":  cfg.Log.MaxBackups,
		"log.max_age_days": cfg.Log.MaxAgeDays,
	}
}

// tree nests dotted settings one level deep: section -> key -> value.
func tree(settings map[string]interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	for key, value := range settings {
		section, name := splitKey(key)
		if out[section] == nil {
			out[section] = make(map[string]interface{})
		}
		out[section][name] = value
	}
	return out
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}

// WriteDefault writes the default configuration as TOML to path. It refuses
// to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	return Write(path, Default(), force)
}

// Write validates cfg and writes it as TOML to path.
func Write(path string, cfg Config, force bool) error {
	if !force && fileExists(path) {
		return Error.New("%s already exists", path)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := EncodeTOML(cfg)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Error.New("failed to create config directory: %w", err)
		}
	}
	// The file may later hold database credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return Error.New("failed to write config: %w", err)
	}
	return nil
}

// EncodeTOML renders cfg as a TOML document.
func EncodeTOML(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tree(Settings(cfg))); err != nil {
		return nil, Error.New("failed to encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeYAML renders cfg as YAML with the database password redacted.
func EncodeYAML(cfg Config) ([]byte, error) {
	if cfg.Database.Password != "" {
		cfg.Database.Password = Redacted
	}

	data, err := yaml.Marshal(tree(Settings(cfg)))
	if err != nil {
		return nil, Error.New("failed to encode yaml: %w", err)
	}
	return data, nil
}
