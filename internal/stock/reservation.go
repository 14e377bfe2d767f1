package stock

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
)

// ReservationResult reports the outcome of one demand's reservation.
type ReservationResult struct {
	Demand   Demand
	Reserved bool
	Reason   string
}

// ReserveStock decrements the flavor counters for every demand using
// conditional updates, so two concurrent checkouts can never take the same
// cookie. It must run inside a transaction; when any demand fails the
// caller rolls the whole transaction back, which undoes the partial
// decrements recorded in earlier results.
func ReserveStock(ctx context.Context, tx *gorm.DB, demands []Demand) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}

	merged := AggregateDemands(demands)
	results := make([]ReservationResult, 0, len(merged))

	for _, d := range merged {
		if d.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
		column := models.StockColumn(d.Size)
		if column == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown size %q", d.Size))
		}

		res := tx.WithContext(ctx).
			Model(&models.Flavor{}).
			Where("id = ? AND "+column+" >= ?", d.FlavorID, d.Quantity).
			Update(column, gorm.Expr(column+" - ?", d.Quantity))
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserving stock")
		}

		result := ReservationResult{Demand: d, Reserved: res.RowsAffected == 1}
		if !result.Reserved {
			result.Reason = fmt.Sprintf("insufficient stock for flavor %s (%s)", d.FlavorID, d.Size)
		}
		results = append(results, result)
	}
	return results, nil
}

// ReleaseStock returns previously reserved quantities to the counters, used
// when an order is canceled inside its cancellation window.
func ReleaseStock(ctx context.Context, tx *gorm.DB, demands []Demand) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}

	for _, d := range AggregateDemands(demands) {
		if d.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
		}
		column := models.StockColumn(d.Size)
		if column == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown size %q", d.Size))
		}

		res := tx.WithContext(ctx).
			Model(&models.Flavor{}).
			Where("id = ?", d.FlavorID).
			Update(column, gorm.Expr(column+" + ?", d.Quantity))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "releasing stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("flavor %s not found", d.FlavorID))
		}
	}
	return nil
}
