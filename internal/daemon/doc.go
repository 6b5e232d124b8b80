// Package daemon runs the two sync directions on independent timers.
//
// # Architecture
//
// The Scheduler owns one loop per direction:
//
//   - import loop: every ImportInterval, sheet → table (sync.Importer)
//   - export loop: every ExportInterval, change log → sheet (sync.Exporter)
//
// Each loop runs its cycles sequentially, so a cycle never overlaps itself.
// A tick that fires while a cycle is still running is coalesced into at most
// one follow-up cycle.
//
// # Mutual Exclusion
//
// With Config.Exclusive set (the default) both loops share one lock and at
// most one direction runs at a time. Without it the import can drop the
// capture hooks while an export is between Drain and Resume; that mode is
// kept for deployments that relied on it.
//
// # Events
//
// Every finished cycle is reported to the Notifier as an Event:
//
//	scheduler := daemon.New(log, importer, exporter, daemon.DefaultConfig())
//	scheduler.SetNotifier(handler)
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Cycle errors are logged and reported; they never stop the loops. The next
// tick retries.
//
// # Reconfiguration
//
// SetIntervals changes the cycle periods of running loops; the new period
// applies from the next tick.
package daemon
