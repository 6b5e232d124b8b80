package store

import (
	"fmt"
	"strings"

	"github.com/sheetsync/sheetsync/internal/schema"
)

const (
	// DriverSQLite selects the embedded SQLite store (ncruces/go-sqlite3).
	DriverSQLite = "sqlite"

	// DriverMySQL selects a MySQL server (go-sql-driver/mysql).
	DriverMySQL = "mysql"
)

// Dialect renders the SQL that differs between the supported databases.
type Dialect interface {
	// Name returns the configuration name of the dialect.
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// Quote quotes an identifier.
	Quote(ident string) string

	// TextType is the column type for synchronized columns.
	TextType() string

	// CreateDataTable creates the data table holding only the identity column.
	CreateDataTable() string

	// CreateChangeTable creates the change log.
	CreateChangeTable() string

	// TableExistsQuery counts tables named by its single parameter.
	TableExistsQuery() string

	// ColumnsQuery lists the columns of the table named by its single
	// parameter in ordinal order.
	ColumnsQuery() string

	// TriggersQuery lists the triggers defined on the table named by its
	// single parameter.
	TriggersQuery() string

	// CreateTrigger returns the DDL of a row-level hook that logs op into the
	// change table.
	CreateTrigger(name string, op schema.Operation) string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3", "":
		return sqliteDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	}
	return nil, Error.New("unsupported driver %q", driver)
}

// rowRef returns the NEW/OLD reference a hook logs for op.
func rowRef(op schema.Operation) string {
	if op == schema.OpDelete {
		return "OLD"
	}
	return "NEW"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return DriverSQLite }
func (sqliteDialect) DriverName() string { return "sqlite3" }
func (sqliteDialect) TextType() string   { return "TEXT" }

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d sqliteDialect) CreateDataTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s INTEGER PRIMARY KEY
)`, schema.DataTable, d.Quote(schema.IdentityColumn))
}

func (sqliteDialect) CreateChangeTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	row_id INTEGER NOT NULL,
	operation TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
)`, schema.ChangeTable)
}

func (sqliteDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
}

func (sqliteDialect) ColumnsQuery() string {
	return `SELECT name FROM pragma_table_info(?) ORDER BY cid`
}

func (sqliteDialect) TriggersQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'trigger' AND tbl_name = ? ORDER BY name`
}

func (d sqliteDialect) CreateTrigger(name string, op schema.Operation) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s
AFTER %s ON %s
FOR EACH ROW
BEGIN
	INSERT INTO %s (row_id, operation) VALUES (%s.%s, '%s');
END`, name, op, schema.DataTable, schema.ChangeTable, rowRef(op), d.Quote(schema.IdentityColumn), op)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return DriverMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }
func (mysqlDialect) TextType() string   { return "VARCHAR(255)" }

func (mysqlDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (d mysqlDialect) CreateDataTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s INT AUTO_INCREMENT PRIMARY KEY
)`, schema.DataTable, d.Quote(schema.IdentityColumn))
}

func (mysqlDialect) CreateChangeTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INT AUTO_INCREMENT PRIMARY KEY,
	row_id INT NOT NULL,
	operation VARCHAR(10) NOT NULL,
	created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
)`, schema.ChangeTable)
}

func (mysqlDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`
}

func (mysqlDialect) ColumnsQuery() string {
	return `SELECT COLUMN_NAME FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`
}

func (mysqlDialect) TriggersQuery() string {
	return `SELECT TRIGGER_NAME FROM information_schema.TRIGGERS
WHERE TRIGGER_SCHEMA = DATABASE() AND EVENT_OBJECT_TABLE = ?
ORDER BY TRIGGER_NAME`
}

// CreateTrigger has no IF NOT EXISTS; callers check TriggersQuery first.
// The driver sends the statement as a whole, so no DELIMITER is needed.
func (d mysqlDialect) CreateTrigger(name string, op schema.Operation) string {
	return fmt.Sprintf(`CREATE TRIGGER %s
AFTER %s ON %s
FOR EACH ROW
BEGIN
	INSERT INTO %s (row_id, operation) VALUES (%s.%s, '%s');
END`, name, op, schema.DataTable, schema.ChangeTable, rowRef(op), d.Quote(schema.IdentityColumn), op)
}
