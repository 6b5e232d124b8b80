package capture

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sheetsync/sheetsync/internal/schema"
)

// PollingCapture detects mutations by comparing the table against the last
// acknowledged snapshot.
//
// The first Drain after construction records a baseline and reports nothing.
// Resume after Suspend re-baselines, so writes made while suspended are never
// reported, the same as with dropped hooks. Records drained before Suspend
// and not yet acknowledged are still returned by Drain while suspended.
type PollingCapture struct {
	store RowStore

	mu        sync.Mutex
	snapshot  map[int64]schema.Row
	pending   map[int64]pendingChange
	suspended bool
	nextID    int64
}

type pendingChange struct {
	rec schema.ChangeRecord
	row schema.Row
}

// NewPollingCapture creates a snapshot based capture over store.
func NewPollingCapture(store RowStore) *PollingCapture {
	return &PollingCapture{
		store:   store,
		pending: make(map[int64]pendingChange),
	}
}

// Suspend stops reporting mutations until Resume.
func (c *PollingCapture) Suspend(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.suspended = true
	return nil
}

// Resume re-baselines the snapshot if capture was suspended or never started.
func (c *PollingCapture) Resume(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.suspended && c.snapshot != nil {
		return nil
	}
	if err := c.baseline(ctx); err != nil {
		return err
	}
	c.suspended = false
	return nil
}

// Drain diffs the table against the snapshot. The snapshot only moves on Ack,
// so unacknowledged changes are reported again on the next Drain.
//
// Records are ordered by row identity with deletions last; their IDs are
// assigned per drain and only valid until the next Drain. While suspended
// the table is not diffed and the unacknowledged records of the last drain
// are returned instead.
func (c *PollingCapture) Drain(ctx context.Context) (_ []schema.ChangeRecord, err error) {
	defer mon.Task()(&ctx)(&err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suspended {
		return c.unacked(), nil
	}
	if c.snapshot == nil {
		return nil, c.baseline(ctx)
	}

	current, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c.pending = make(map[int64]pendingChange)

	var changes []schema.ChangeRecord
	add := func(op schema.Operation, id int64, row schema.Row) {
		c.nextID++
		rec := schema.ChangeRecord{ID: c.nextID, Operation: op, RowID: id, CreatedAt: now}
		c.pending[rec.ID] = pendingChange{rec: rec, row: row}
		changes = append(changes, rec)
	}

	for _, id := range sortedIDs(current) {
		row := current[id]
		old, ok := c.snapshot[id]
		switch {
		case !ok:
			add(schema.OpInsert, id, row)
		case !old.Equal(row):
			add(schema.OpUpdate, id, row)
		}
	}
	for _, id := range sortedIDs(c.snapshot) {
		if _, ok := current[id]; !ok {
			add(schema.OpDelete, id, schema.Row{})
		}
	}

	return changes, nil
}

// Ack folds the record into the snapshot.
func (c *PollingCapture) Ack(ctx context.Context, rec schema.ChangeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	change, ok := c.pending[rec.ID]
	if !ok {
		return Error.New("change %s was not drained", rec)
	}
	delete(c.pending, rec.ID)

	if c.snapshot == nil {
		return nil
	}
	if change.rec.Operation == schema.OpDelete {
		delete(c.snapshot, change.rec.RowID)
	} else {
		c.snapshot[change.rec.RowID] = change.row
	}
	return nil
}

func (c *PollingCapture) unacked() []schema.ChangeRecord {
	if len(c.pending) == 0 {
		return nil
	}
	changes := make([]schema.ChangeRecord, 0, len(c.pending))
	for _, change := range c.pending {
		changes = append(changes, change.rec)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	return changes
}

func (c *PollingCapture) baseline(ctx context.Context) error {
	snapshot, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.snapshot = snapshot
	c.pending = make(map[int64]pendingChange)
	return nil
}

func (c *PollingCapture) load(ctx context.Context) (map[int64]schema.Row, error) {
	rows, err := c.store.ListRows(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	snapshot := make(map[int64]schema.Row, len(rows))
	for _, row := range rows {
		id, err := strconv.ParseInt(row.ID(), 10, 64)
		if err != nil {
			return nil, Error.New("row with non-numeric identity %q", row.ID())
		}
		snapshot[id] = row
	}
	return snapshot, nil
}

func sortedIDs(rows map[int64]schema.Row) []int64 {
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
