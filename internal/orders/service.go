package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReleaser interface {
	ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []stock.Demand) error
}

type statusNotifier interface {
	OrderStatusChanged(ctx context.Context, order *models.Order)
}

type cancellationPolicy interface {
	CancellationWindow(ctx context.Context) (time.Duration, error)
}

// Service exposes order reads, customer tracking and back-office updates.
type Service interface {
	Track(ctx context.Context, trackingCode, email string) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	AdminList(ctx context.Context, params pagination.Params, filters Filters) (*List, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Assign(ctx context.Context, id uuid.UUID, input AssignmentInput) (*models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) error
}

type service struct {
	repo     Repository
	tx       txRunner
	stock    stockReleaser
	notifier statusNotifier
	policy   cancellationPolicy
	now      func() time.Time
}

// NewService builds the orders service. policy supplies the live
// cancellation window on every cancel; notifier may be nil.
func NewService(repo Repository, tx txRunner, releaser stockReleaser, notifier statusNotifier, policy cancellationPolicy) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if releaser == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	if policy == nil {
		return nil, fmt.Errorf("cancellation policy required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		stock:    releaser,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}, nil
}

// Track returns the order only when both the tracking code and the email it
// was placed under match, so a leaked code alone reveals nothing.
func (s *service) Track(ctx context.Context, trackingCode, email string) (*models.Order, error) {
	code := strings.ToUpper(strings.TrimSpace(trackingCode))
	email = strings.ToLower(strings.TrimSpace(email))
	if code == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking code and email are required")
	}

	order, err := s.repo.FindByTrackingCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if !strings.EqualFold(order.CustomerEmail, email) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *service) AdminList(ctx context.Context, params pagination.Params, filters Filters) (*List, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return list, nil
}

// UpdateStatus moves an order along the fulfillment pipeline. Cancellation
// goes through Cancel, which also handles restocking.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown status %q", next))
	}
	if next == enums.OrderStatusCanceled {
		return s.Cancel(ctx, id)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, next))
	}

	updates := map[string]any{"status": next}
	if next == enums.OrderStatusDelivered {
		updates["delivered_at"] = s.now().UTC()
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, updated)
	}
	return updated, nil
}

// Cancel stops the order and, for stock-based orders, returns the reserved
// cookies inside the same transaction. Orders past the cancellation window
// or already moving through the kitchen cannot be canceled.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusCanceled) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("cannot cancel an order that is %s", order.Status))
	}

	window, err := s.policy.CancellationWindow(ctx)
	if err != nil {
		return nil, err
	}
	if window > 0 && s.now().UTC().After(order.CreatedAt.Add(window)) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "the cancellation window has passed")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// The status flip is guarded by the previous status so two racing
		// cancels cannot both release stock.
		affected, err := s.repo.WithTx(tx).UpdateWhereStatus(ctx, order.ID, order.Status, map[string]any{
			"status":      enums.OrderStatusCanceled,
			"canceled_at": s.now().UTC(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "canceling order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeTransactionConflict, "order changed while canceling")
		}

		if order.OrderMode == enums.OrderModeStockBased {
			demands := demandsFromOrder(order)
			if len(demands) > 0 {
				if err := s.stock.ReleaseForOrder(ctx, tx, order.ID, demands); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, updated)
	}
	return updated, nil
}

func (s *service) Assign(ctx context.Context, id uuid.UUID, input AssignmentInput) (*models.Order, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.DeliveryAgent != nil {
		updates["delivery_agent"] = *input.DeliveryAgent
	}
	if input.Kitchen != nil {
		updates["kitchen"] = *input.Kitchen
	}
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown priority %q", *input.Priority))
		}
		updates["priority"] = *input.Priority
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order assignment")
		}
	}
	return s.Get(ctx, id)
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	updates := map[string]any{"payment_status": enums.PaymentStatusPaid}
	if paymentRef != "" {
		updates["payment_ref"] = paymentRef
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking order paid")
	}
	return nil
}

// demandsFromOrder rebuilds the flavor demands an order reserved, using the
// snapshot rows. Flavors deleted from the catalog since then carry a nil id
// and cannot be restocked.
func demandsFromOrder(order *models.Order) []stock.Demand {
	var demands []stock.Demand
	for _, item := range order.Items {
		for _, sel := range item.Flavors {
			if sel.FlavorID == nil {
				continue
			}
			demands = append(demands, stock.Demand{
				FlavorID: *sel.FlavorID,
				Size:     sel.Size,
				Quantity: sel.Quantity * item.Quantity,
			})
		}
	}
	return demands
}
