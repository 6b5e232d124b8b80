package schema

import (
	"fmt"
	"strings"
	"time"
)

// Operation is the kind of row mutation a change record describes.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Operations lists every operation in hook installation order.
var Operations = []Operation{OpInsert, OpUpdate, OpDelete}

// ParseOperation converts a stored operation name into an Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// ChangeRecord is one captured mutation of the data table awaiting export.
type ChangeRecord struct {
	// ID is the change-log identity; it increases with creation order.
	ID int64

	Operation Operation

	// RowID is the identity of the affected row: the new row for inserts and
	// updates, the old row for deletes.
	RowID int64

	CreatedAt time.Time
}

// String renders the record for log lines.
func (c ChangeRecord) String() string {
	return fmt.Sprintf("#%d %s row=%d", c.ID, c.Operation, c.RowID)
}
