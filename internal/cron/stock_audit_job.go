package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

type flavorLister interface {
	List(ctx context.Context, activeOnly bool) ([]models.Flavor, error)
}

type stockReconciler interface {
	Reconcile(ctx context.Context, flavorID uuid.UUID) ([]stock.Mismatch, error)
}

// StockAuditJobParams configure the ledger audit.
type StockAuditJobParams struct {
	Logger  *logger.Logger
	Flavors flavorLister
	Stock   stockReconciler
}

// NewStockAuditJob builds the job that checks every flavor's counters
// against the ledger sums. Drift is logged, never auto-corrected.
func NewStockAuditJob(params StockAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Flavors == nil {
		return nil, fmt.Errorf("flavor lister required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	return &stockAuditJob{
		logg:    params.Logger,
		flavors: params.Flavors,
		stock:   params.Stock,
	}, nil
}

type stockAuditJob struct {
	logg    *logger.Logger
	flavors flavorLister
	stock   stockReconciler
}

func (j *stockAuditJob) Name() string { return "stock-audit" }

func (j *stockAuditJob) Run(ctx context.Context) error {
	rows, err := j.flavors.List(ctx, false)
	if err != nil {
		return fmt.Errorf("list flavors: %w", err)
	}

	var errs []error
	drifted := 0
	for _, flavor := range rows {
		mismatches, recErr := j.stock.Reconcile(ctx, flavor.ID)
		if recErr != nil {
			errs = append(errs, fmt.Errorf("reconcile flavor %s: %w", flavor.ID, recErr))
			continue
		}
		for _, m := range mismatches {
			drifted++
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"flavor_id":  m.FlavorID.String(),
				"size":       string(m.Size),
				"counter":    m.Counter,
				"ledger_sum": m.LedgerSum,
			})
			j.logg.Warn(logCtx, "stock counter drifted from ledger")
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"flavors_checked": len(rows),
		"mismatches":      drifted,
	})
	j.logg.Info(logCtx, "stock audit complete")
	return multierr.Combine(errs...)
}
