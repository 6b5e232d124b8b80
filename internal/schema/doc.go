// Package schema defines the data model shared by both sync directions.
//
// # Rows
//
// A Row is an ordered mapping from column name to string value. Rows are built
// from the spreadsheet by zipping the header row with each data row, and from
// the database by scanning every column of dynamic_table as text.
//
//	row := schema.NewRow([]string{"Id", "Name"}, []string{"7", "Ada"})
//	row.Get("Name") // "Ada"
//	row.ID()        // "7"
//
// # Change records
//
// A ChangeRecord is one captured mutation of dynamic_table, appended to
// sync_changes by a row-level hook and consumed by the exporter in creation
// order (oldest first).
//
// # Reconciliation
//
// The Reconciler aligns the column set of dynamic_table with the header row of
// the spreadsheet. Additions run before deletions and a failed statement does
// not stop the remaining ones.
//
//	plan := schema.Plan(existingColumns, header)
//	result, err := reconciler.Apply(ctx, plan)
//
// # Reserved objects
//
//   - dynamic_table - synchronized data, identity column Id
//   - sync_changes - change log (id, row_id, operation, created_at)
package schema
