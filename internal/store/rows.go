package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeebo/errs"

	"github.com/sheetsync/sheetsync/internal/schema"
)

// DeleteAllRows removes every row of the data table and returns the count.
func (db *DB) DeleteAllRows(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM "+schema.DataTable)
	if err != nil {
		return 0, Error.New("failed to delete existing data: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertRow inserts one row and returns its identity. An empty Id cell lets
// the database assign the identity.
func (db *DB) InsertRow(ctx context.Context, row schema.Row) (int64, error) {
	if len(row.Columns) == 0 {
		return 0, Error.New("cannot insert a row without columns")
	}

	cols := make([]string, len(row.Columns))
	marks := make([]string, len(row.Columns))
	args := make([]interface{}, len(row.Columns))
	for i, c := range row.Columns {
		cols[i] = db.dialect.Quote(c)
		marks[i] = "?"
		if strings.EqualFold(c, schema.IdentityColumn) {
			args[i] = identityArg(row.Values[i])
		} else {
			args[i] = row.Values[i]
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.DataTable, strings.Join(cols, ", "), strings.Join(marks, ", "))

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, Error.New("failed to insert row %q: %w", row.ID(), err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, Error.New("failed to read inserted identity: %w", err)
	}
	return id, nil
}

// UpdateRow overwrites the non-identity columns of the row with the same Id.
// Returns ErrRowNotFound if no row matched.
func (db *DB) UpdateRow(ctx context.Context, row schema.Row) error {
	id := row.ID()
	if id == "" {
		return Error.New("cannot update a row without identity")
	}

	var sets []string
	var args []interface{}
	for i, c := range row.Columns {
		if strings.EqualFold(c, schema.IdentityColumn) {
			continue
		}
		sets = append(sets, db.dialect.Quote(c)+" = ?")
		args = append(args, row.Values[i])
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		schema.DataTable, strings.Join(sets, ", "), db.dialect.Quote(schema.IdentityColumn))

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return Error.New("failed to update row %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Error.Wrap(fmt.Errorf("row %s: %w", id, ErrRowNotFound))
	}
	return nil
}

// DeleteRow removes the row with the given identity.
// Returns nil if the row doesn't exist (idempotent).
func (db *DB) DeleteRow(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", schema.DataTable, db.dialect.Quote(schema.IdentityColumn))
	if _, err := db.conn.ExecContext(ctx, query, id); err != nil {
		return Error.New("failed to delete row %d: %w", id, err)
	}
	return nil
}

// GetRow fetches the full current row by identity.
// Returns ErrRowNotFound if the row doesn't exist.
func (db *DB) GetRow(ctx context.Context, id int64) (schema.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", schema.DataTable, db.dialect.Quote(schema.IdentityColumn))

	rows, err := db.conn.QueryContext(ctx, query, id)
	if err != nil {
		return schema.Row{}, Error.New("failed to fetch row data: %w", err)
	}

	result, err := scanRows(rows)
	if err != nil {
		return schema.Row{}, err
	}
	if len(result) == 0 {
		return schema.Row{}, Error.Wrap(fmt.Errorf("row %d: %w", id, ErrRowNotFound))
	}
	return result[0], nil
}

// ListRows returns every row of the data table ordered by identity.
func (db *DB) ListRows(ctx context.Context) ([]schema.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", schema.DataTable, db.dialect.Quote(schema.IdentityColumn))

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, Error.New("failed to list rows: %w", err)
	}
	return scanRows(rows)
}

// CountRows returns the number of rows in the data table.
func (db *DB) CountRows(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+schema.DataTable).Scan(&count); err != nil {
		return 0, Error.New("failed to count rows: %w", err)
	}
	return count, nil
}

// scanRows reads every column of every row as text and closes rows.
func scanRows(rows *sql.Rows) (result []schema.Row, err error) {
	defer func() { err = errs.Combine(err, rows.Close()) }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, Error.New("failed to read columns: %w", err)
	}

	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, Error.New("failed to scan row: %w", err)
		}

		cells := make([]string, len(columns))
		for i, v := range values {
			cells[i] = v.String
		}
		result = append(result, schema.NewRow(columns, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, Error.New("failed to iterate rows: %w", err)
	}
	return result, nil
}
