package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zeebo/errs"

	"github.com/sheetsync/sheetsync/internal/schema"
)

// changeTimeLayouts are the created_at renderings of the supported dialects.
var changeTimeLayouts = []string{
	"2006-01-02T15:04:05.999Z",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ListChanges returns every pending change record, oldest first.
func (db *DB) ListChanges(ctx context.Context) (changes []schema.ChangeRecord, err error) {
	query := fmt.Sprintf("SELECT id, row_id, operation, created_at FROM %s ORDER BY id", schema.ChangeTable)

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, Error.New("failed to fetch sync changes: %w", err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	for rows.Next() {
		var (
			change    schema.ChangeRecord
			operation string
			createdAt sql.NullString
		)
		if err := rows.Scan(&change.ID, &change.RowID, &operation, &createdAt); err != nil {
			return nil, Error.New("failed to scan sync change: %w", err)
		}

		change.Operation, err = schema.ParseOperation(operation)
		if err != nil {
			return nil, Error.New("sync change %d: %w", change.ID, err)
		}
		change.CreatedAt = parseChangeTime(createdAt.String)

		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.New("failed to iterate sync changes: %w", err)
	}

	return changes, nil
}

// DeleteChange removes a processed change record.
// Returns nil if the record doesn't exist (idempotent).
func (db *DB) DeleteChange(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", schema.ChangeTable)
	if _, err := db.conn.ExecContext(ctx, query, id); err != nil {
		return Error.New("failed to delete sync change %d: %w", id, err)
	}
	return nil
}

// CountChanges returns the number of pending change records.
func (db *DB) CountChanges(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+schema.ChangeTable).Scan(&count); err != nil {
		return 0, Error.New("failed to count sync changes: %w", err)
	}
	return count, nil
}

// TriggerNames lists the triggers installed on the data table.
func (db *DB) TriggerNames(ctx context.Context) (names []string, err error) {
	rows, err := db.conn.QueryContext(ctx, db.dialect.TriggersQuery(), schema.DataTable)
	if err != nil {
		return nil, Error.New("failed to list triggers: %w", err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, Error.New("failed to scan trigger name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.New("failed to iterate triggers: %w", err)
	}
	return names, nil
}

// CreateTrigger installs a hook that logs op into the change table.
func (db *DB) CreateTrigger(ctx context.Context, name string, op schema.Operation) error {
	if _, err := db.conn.ExecContext(ctx, db.dialect.CreateTrigger(name, op)); err != nil {
		return Error.New("failed to create trigger %s: %w", name, err)
	}
	return nil
}

// DropTrigger removes a hook, tolerating its absence.
func (db *DB) DropTrigger(ctx context.Context, name string) error {
	if _, err := db.conn.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+name); err != nil {
		return Error.New("failed to drop trigger %s: %w", name, err)
	}
	return nil
}

func parseChangeTime(s string) time.Time {
	for _, layout := range changeTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
