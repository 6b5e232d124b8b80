package sync

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/sheetsync/sheetsync/internal/schema"
)

var (
	// Error is the error class for sync passes.
	Error = errs.Class("sync")
	mon   = monkit.Package()
)

// Store is the data table access both passes need. *store.DB implements it.
type Store interface {
	schema.DDL

	InitSchemaContext(ctx context.Context) error
	TableExists(ctx context.Context) (bool, error)
	ColumnNames(ctx context.Context) ([]string, error)

	DeleteAllRows(ctx context.Context) (int64, error)
	InsertRow(ctx context.Context, row schema.Row) (int64, error)
	UpdateRow(ctx context.Context, row schema.Row) error
	DeleteRow(ctx context.Context, id int64) error
	GetRow(ctx context.Context, id int64) (schema.Row, error)
	ListRows(ctx context.Context) ([]schema.Row, error)
}
