// Package capture records direct mutations of the data table so the exporter
// can replay them onto the spreadsheet.
//
// Two implementations share the Capture interface:
//   - TriggerCapture installs row-level hooks that append to sync_changes
//   - PollingCapture diffs the table against a snapshot, for stores that
//     cannot run hooks
//
// Every bulk write path brackets itself with Suspend and Resume so its own
// writes are not echoed back.
package capture

import (
	"context"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/sheetsync/sheetsync/internal/schema"
)

var (
	// Error is the error class for change capture.
	Error = errs.Class("capture")
	mon   = monkit.Package()
)

const (
	// ModeTriggers selects hook based capture.
	ModeTriggers = "triggers"

	// ModePolling selects snapshot based capture.
	ModePolling = "polling"
)

// Capture is the change capture mechanism of the data table.
//
// Suspend and Resume are idempotent in either state.
type Capture interface {
	// Suspend stops recording mutations.
	Suspend(ctx context.Context) error

	// Resume starts recording mutations again.
	Resume(ctx context.Context) error

	// Drain returns the pending change records, oldest first.
	Drain(ctx context.Context) ([]schema.ChangeRecord, error)

	// Ack marks a record as applied to the spreadsheet.
	Ack(ctx context.Context, rec schema.ChangeRecord) error
}

// TriggerStore is the part of the store the hook based capture needs.
type TriggerStore interface {
	TriggerNames(ctx context.Context) ([]string, error)
	CreateTrigger(ctx context.Context, name string, op schema.Operation) error
	DropTrigger(ctx context.Context, name string) error
	ListChanges(ctx context.Context) ([]schema.ChangeRecord, error)
	DeleteChange(ctx context.Context, id int64) error
}

// RowStore is the part of the store the snapshot based capture needs.
type RowStore interface {
	ListRows(ctx context.Context) ([]schema.Row, error)
}

// Store satisfies both capture implementations.
type Store interface {
	TriggerStore
	RowStore
}

// New returns the capture implementation named by mode.
func New(mode string, store Store) (Capture, error) {
	switch strings.ToLower(mode) {
	case ModeTriggers, "":
		return NewTriggerCapture(store), nil
	case ModePolling:
		return NewPollingCapture(store), nil
	}
	return nil, Error.New("unknown capture mode %q", mode)
}
