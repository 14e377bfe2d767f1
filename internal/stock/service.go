package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type flavorFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Flavor, error)
}

// Mismatch is one flavor/size pair whose ledger sum disagrees with the
// live counter.
type Mismatch struct {
	FlavorID  uuid.UUID        `json:"flavor_id"`
	Size      enums.CookieSize `json:"size"`
	Counter   int              `json:"counter"`
	LedgerSum int              `json:"ledger_sum"`
}

// Service owns every stock counter mutation. Catalog code never writes the
// counters directly; that keeps the ledger complete.
type Service interface {
	ReserveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []Demand) error
	ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []Demand) error
	Adjust(ctx context.Context, flavorID uuid.UUID, size enums.CookieSize, delta int, reason enums.StockChangeReason) error
	History(ctx context.Context, flavorID uuid.UUID, limit int) ([]models.StockHistory, error)
	Reconcile(ctx context.Context, flavorID uuid.UUID) ([]Mismatch, error)
}

type service struct {
	history HistoryRepository
	flavors flavorFinder
	tx      txRunner
	metrics *metrics.StockMetrics
}

// NewService builds the stock service.
func NewService(history HistoryRepository, flavors flavorFinder, tx txRunner, m *metrics.StockMetrics) (Service, error) {
	if history == nil {
		return nil, fmt.Errorf("stock history repository required")
	}
	if flavors == nil {
		return nil, fmt.Errorf("flavor finder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		history: history,
		flavors: flavors,
		tx:      tx,
		metrics: m,
	}, nil
}

// ReserveForOrder decrements counters for every demand and appends the
// matching ledger entries. It must run inside the caller's transaction;
// on insufficient stock the returned error carries the failed pairs and
// the caller's rollback undoes everything.
func (s *service) ReserveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []Demand) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order id is required")
	}

	results, err := ReserveStock(ctx, tx, demands)
	if err != nil {
		return err
	}

	var failures []string
	entries := make([]models.StockHistory, 0, len(results))
	for _, result := range results {
		if !result.Reserved {
			failures = append(failures, result.Reason)
			continue
		}
		id := orderID
		entries = append(entries, models.StockHistory{
			ID:           uuid.New(),
			FlavorID:     result.Demand.FlavorID,
			Size:         result.Demand.Size,
			ChangeAmount: -result.Demand.Quantity,
			Reason:       enums.StockReasonOrderPlaced,
			OrderID:      &id,
			ChangedAt:    time.Now().UTC(),
		})
	}

	if len(failures) > 0 {
		s.metrics.IncReservation("insufficient")
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock to fulfill the order").
			WithDetails(failures)
	}

	if err := s.history.WithTx(tx).Append(ctx, entries); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording stock reservation")
	}
	s.metrics.IncReservation("reserved")
	return nil
}

// ReleaseForOrder restores counters for a canceled order and appends the
// compensating ledger entries.
func (s *service) ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []Demand) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order id is required")
	}

	merged := AggregateDemands(demands)
	if err := ReleaseStock(ctx, tx, merged); err != nil {
		return err
	}

	entries := make([]models.StockHistory, 0, len(merged))
	for _, d := range merged {
		id := orderID
		entries = append(entries, models.StockHistory{
			ID:           uuid.New(),
			FlavorID:     d.FlavorID,
			Size:         d.Size,
			ChangeAmount: d.Quantity,
			Reason:       enums.StockReasonOrderCanceled,
			OrderID:      &id,
			ChangedAt:    time.Now().UTC(),
		})
	}
	if err := s.history.WithTx(tx).Append(ctx, entries); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording stock release")
	}
	return nil
}

// Adjust applies a manual counter change in its own transaction. Negative
// deltas use the same conditional update as reservations, so an adjustment
// can never push a counter below zero.
func (s *service) Adjust(ctx context.Context, flavorID uuid.UUID, size enums.CookieSize, delta int, reason enums.StockChangeReason) error {
	if delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta cannot be zero")
	}
	if !size.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown size %q", size))
	}
	if !reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown stock change reason %q", reason))
	}

	if _, err := s.flavors.FindByID(ctx, flavorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "flavor not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading flavor")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if delta > 0 {
			if err := ReleaseStock(ctx, tx, []Demand{{FlavorID: flavorID, Size: size, Quantity: delta}}); err != nil {
				return err
			}
		} else {
			results, err := ReserveStock(ctx, tx, []Demand{{FlavorID: flavorID, Size: size, Quantity: -delta}})
			if err != nil {
				return err
			}
			if !results[0].Reserved {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would drive stock negative")
			}
		}

		entry := models.StockHistory{
			ID:           uuid.New(),
			FlavorID:     flavorID,
			Size:         size,
			ChangeAmount: delta,
			Reason:       reason,
			ChangedAt:    time.Now().UTC(),
		}
		return s.history.WithTx(tx).Append(ctx, []models.StockHistory{entry})
	})
	if err != nil {
		return err
	}

	s.metrics.IncAdjustment(reason.String())
	return nil
}

func (s *service) History(ctx context.Context, flavorID uuid.UUID, limit int) ([]models.StockHistory, error) {
	rows, err := s.history.ListByFlavor(ctx, flavorID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stock history")
	}
	return rows, nil
}

// Reconcile checks that the ledger sum matches the live counter for every
// size tier of a flavor. A non-empty result means a write bypassed the
// stock service.
func (s *service) Reconcile(ctx context.Context, flavorID uuid.UUID) ([]Mismatch, error) {
	flavor, err := s.flavors.FindByID(ctx, flavorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "flavor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading flavor")
	}

	var mismatches []Mismatch
	for _, size := range enums.CookieSizes() {
		sum, err := s.history.SumFor(ctx, flavorID, size)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing stock ledger")
		}
		counter := flavor.StockFor(size)
		if counter != sum {
			mismatches = append(mismatches, Mismatch{
				FlavorID:  flavorID,
				Size:      size,
				Counter:   counter,
				LedgerSum: sum,
			})
		}
	}
	return mismatches, nil
}
