package capture

import (
	"context"

	"github.com/sheetsync/sheetsync/internal/schema"
)

// Hook names installed on the data table, one per operation.
const (
	InsertTrigger = "sync_insert"
	UpdateTrigger = "sync_update"
	DeleteTrigger = "sync_delete"
)

// hooks pairs each trigger with the operation it logs, in install order.
var hooks = []struct {
	name string
	op   schema.Operation
}{
	{InsertTrigger, schema.OpInsert},
	{UpdateTrigger, schema.OpUpdate},
	{DeleteTrigger, schema.OpDelete},
}

// TriggerNames lists the hooks TriggerCapture manages.
func TriggerNames() []string {
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.name
	}
	return names
}

// TriggerCapture captures mutations with row-level hooks writing to the
// change log.
type TriggerCapture struct {
	store TriggerStore
}

// NewTriggerCapture creates a hook based capture over store.
func NewTriggerCapture(store TriggerStore) *TriggerCapture {
	return &TriggerCapture{store: store}
}

// Suspend drops every hook. Missing hooks are ignored.
func (c *TriggerCapture) Suspend(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, h := range hooks {
		if err := c.store.DropTrigger(ctx, h.name); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// Resume installs the hooks that are not present. Existing hooks are kept,
// so repeated calls never create duplicates.
func (c *TriggerCapture) Resume(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	installed, err := c.installed(ctx)
	if err != nil {
		return err
	}

	for _, h := range hooks {
		if installed[h.name] {
			continue
		}
		if err := c.store.CreateTrigger(ctx, h.name, h.op); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// Active reports whether every hook is installed.
func (c *TriggerCapture) Active(ctx context.Context) (bool, error) {
	installed, err := c.installed(ctx)
	if err != nil {
		return false, err
	}
	for _, h := range hooks {
		if !installed[h.name] {
			return false, nil
		}
	}
	return true, nil
}

// Drain returns the change log ordered by creation.
func (c *TriggerCapture) Drain(ctx context.Context) (_ []schema.ChangeRecord, err error) {
	defer mon.Task()(&ctx)(&err)

	changes, err := c.store.ListChanges(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return changes, nil
}

// Ack deletes the record from the change log.
func (c *TriggerCapture) Ack(ctx context.Context, rec schema.ChangeRecord) error {
	if err := c.store.DeleteChange(ctx, rec.ID); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

func (c *TriggerCapture) installed(ctx context.Context) (map[string]bool, error) {
	names, err := c.store.TriggerNames(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	installed := make(map[string]bool, len(names))
	for _, name := range names {
		installed[name] = true
	}
	return installed, nil
}
