package schema

import (
	"context"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error is the error class for schema reconciliation.
var Error = errs.Class("schema")

// DDL alters the column set of the data table.
type DDL interface {
	AddColumn(ctx context.Context, name string) error
	DropColumn(ctx context.Context, name string) error
}

// ReconcilePlan is the column diff between the table and the header row.
type ReconcilePlan struct {
	Add  []string
	Drop []string
}

// Empty reports whether the plan has no DDL to run.
func (p ReconcilePlan) Empty() bool {
	return len(p.Add) == 0 && len(p.Drop) == 0
}

// ReconcileResult reports which statements succeeded.
type ReconcileResult struct {
	Added   []string
	Dropped []string
	Failed  []string
}

// Plan computes additions (header - existing, in header order) and deletions
// (existing - header, in table order). Names compare case-insensitively, blank
// and duplicate header names are ignored, and the identity column is never
// dropped.
func Plan(existing, header []string) ReconcilePlan {
	var plan ReconcilePlan

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c)] = true
	}

	want := make(map[string]bool, len(header))
	for _, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if want[key] {
			continue
		}
		want[key] = true
		if !have[key] {
			plan.Add = append(plan.Add, name)
		}
	}

	for _, c := range existing {
		if strings.EqualFold(c, IdentityColumn) {
			continue
		}
		if !want[strings.ToLower(c)] {
			plan.Drop = append(plan.Drop, c)
		}
	}

	return plan
}

// Reconciler applies column diffs to the data table.
type Reconciler struct {
	log *zap.Logger
	ddl DDL
}

// NewReconciler creates a reconciler executing DDL through ddl.
func NewReconciler(log *zap.Logger, ddl DDL) *Reconciler {
	return &Reconciler{log: log, ddl: ddl}
}

// Reconcile plans and applies the diff between existing and header.
func (r *Reconciler) Reconcile(ctx context.Context, existing, header []string) (ReconcileResult, error) {
	return r.Apply(ctx, Plan(existing, header))
}

// Apply runs every addition, then every deletion. A failed statement is logged
// and the remaining statements still run; the failures are returned combined.
// Nothing is rolled back.
func (r *Reconciler) Apply(ctx context.Context, plan ReconcilePlan) (result ReconcileResult, err error) {
	var group errs.Group

	for _, col := range plan.Add {
		if err := r.ddl.AddColumn(ctx, col); err != nil {
			r.log.Error("failed to add column", zap.String("column", col), zap.Error(err))
			result.Failed = append(result.Failed, col)
			group.Add(Error.New("add column %q: %v", col, err))
			continue
		}
		r.log.Info("added column", zap.String("column", col))
		result.Added = append(result.Added, col)
	}

	for _, col := range plan.Drop {
		if err := r.ddl.DropColumn(ctx, col); err != nil {
			r.log.Error("failed to drop column", zap.String("column", col), zap.Error(err))
			result.Failed = append(result.Failed, col)
			group.Add(Error.New("drop column %q: %v", col, err))
			continue
		}
		r.log.Info("removed column", zap.String("column", col))
		result.Dropped = append(result.Dropped, col)
	}

	return result, group.Err()
}
