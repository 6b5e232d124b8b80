// Package sync moves rows between the spreadsheet and the data table.
//
// Overview
//
// Two one-way passes keep both sides consistent:
//
//	Spreadsheet ── Importer ──→ dynamic_table     (header reconciled first)
//	dynamic_table ── capture ──→ sync_changes ── Exporter ──→ Spreadsheet
//
// The Importer treats the spreadsheet as the source of truth for the row
// set: it reconciles the table columns with the header row and then
// replaces (or, in diff mode, patches) the table rows. The Exporter replays
// the change log oldest first onto the spreadsheet. Both passes suspend
// change capture around their own writes so they are not echoed back.
//
// Usage
//
//	importer := sync.NewImporter(log, sheet, database, capture, sync.DefaultConfig())
//	if _, err := importer.Import(ctx); err != nil {
//	    return err
//	}
//
//	exporter := sync.NewExporter(log, sheet, database, capture, sync.DefaultConfig())
//	if _, err := exporter.Export(ctx); err != nil {
//	    return err
//	}
//
// Error Handling
//
// Nothing here is transactional:
//
//   - An import that fails part way keeps the rows written so far; capture
//     is always resumed
//   - An export that fails part way keeps the records not yet applied for
//     the next pass; capture stays suspended until the next pass resumes it
//   - Schema reconciliation is best-effort, failed DDL is logged
//
// Row Lookup
//
// Sheet rows are matched to table rows by the Id cell in column A (scan
// mode). Positional mode instead assumes table row Id n lives on sheet row
// n+1, which only holds while the sheet is never re-ordered.
package sync
