// Package store provides the relational side of the sync: the data table,
// the change log and the row-level hooks, on SQLite or MySQL.
//
// Architecture:
//   - dynamic_table: synchronized rows, identity column Id, every other
//     column text
//   - sync_changes: change log written by the capture triggers
//   - SQLite runs embedded (ncruces/go-sqlite3) with WAL for concurrent reads
//   - MySQL is reached through go-sql-driver/mysql
//
// Every statement is issued on its own; nothing here opens a transaction, so
// a failure in the middle of a bulk write leaves the earlier rows in place.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/zeebo/errs"

	"github.com/sheetsync/sheetsync/internal/schema"
)

// Error is the error class for store failures.
var Error = errs.Class("store")

// ErrRowNotFound is returned when no row has the requested identity.
var ErrRowNotFound = errors.New("row not found")

// Config selects and locates the database.
type Config struct {
	// Driver is "sqlite" or "mysql".
	Driver string

	// Path is the SQLite database file.
	Path string

	// DSN is the MySQL data source name. See MySQLDSN.
	DSN string
}

// DB wraps the database connection with the sync-specific queries.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	target  string
}

// MySQLDSN builds a data source name from discrete connection parameters.
func MySQLDSN(host string, port int, user, password, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Open connects to the configured database. The caller MUST call Close.
//
// Example:
//
//	db, err := store.Open(store.Config{Driver: store.DriverSQLite, Path: "sync.db"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(cfg Config) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	switch dialect.Name() {
	case DriverMySQL:
		return openMySQL(dialect, cfg.DSN)
	default:
		return openSQLite(dialect, cfg.Path)
	}
}

func openSQLite(dialect Dialect, path string) (*DB, error) {
	if path == "" {
		return nil, Error.New("sqlite path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, Error.New("failed to create database directory: %w", err)
	}

	conn, err := sql.Open(dialect.DriverName(), fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, Error.New("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, Error.New("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, dialect: dialect, target: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, Error.New("failed to run %s: %w", pragma, err)
		}
	}

	return db, nil
}

func openMySQL(dialect Dialect, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, Error.New("mysql dsn is required")
	}

	conn, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, Error.New("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, Error.New("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetConnMaxLifetime(5 * time.Minute)

	addr := dsn
	if cfg, err := mysql.ParseDSN(dsn); err == nil {
		addr = cfg.Addr + "/" + cfg.DBName
	}

	return &DB{conn: conn, dialect: dialect, target: addr}, nil
}

// RawDB returns the underlying connection pool.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Dialect returns the SQL dialect of the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Target describes the database location for log lines; it never contains
// credentials.
func (db *DB) Target() string {
	return db.target
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if db.dialect.Name() == DriverSQLite {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return Error.New("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the data table and the change log if they don't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, db.dialect.CreateChangeTable()); err != nil {
		return Error.New("failed to create %s: %w", schema.ChangeTable, err)
	}
	if _, err := db.conn.ExecContext(ctx, db.dialect.CreateDataTable()); err != nil {
		return Error.New("failed to create %s: %w", schema.DataTable, err)
	}
	return nil
}

// TableExists reports whether the data table exists.
func (db *DB) TableExists(ctx context.Context) (bool, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, db.dialect.TableExistsQuery(), schema.DataTable).Scan(&count); err != nil {
		return false, Error.New("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// ColumnNames returns the columns of the data table in ordinal order.
func (db *DB) ColumnNames(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, db.dialect.ColumnsQuery(), schema.DataTable)
	if err != nil {
		return nil, Error.New("failed to fetch column names: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, Error.New("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.New("failed to iterate column names: %w", err)
	}
	return columns, nil
}

// AddColumn adds a text column to the data table.
func (db *DB) AddColumn(ctx context.Context, name string) error {
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		schema.DataTable, db.dialect.Quote(name), db.dialect.TextType())
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return Error.New("failed to add column %s: %w", name, err)
	}
	return nil
}

// DropColumn removes a column from the data table.
func (db *DB) DropColumn(ctx context.Context, name string) error {
	query := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", schema.DataTable, db.dialect.Quote(name))
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return Error.New("failed to drop column %s: %w", name, err)
	}
	return nil
}

// identityArg converts an identity cell into a query argument. An empty cell
// becomes NULL so the database assigns the next identity.
func identityArg(value string) interface{} {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}
