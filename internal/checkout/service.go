package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/internal/orders"
	"github.com/crumbsandco/crumbs-backend/internal/promos"
	"github.com/crumbsandco/crumbs-backend/internal/settings"
	"github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	"github.com/crumbsandco/crumbs-backend/pkg/metrics"
	"github.com/crumbsandco/crumbs-backend/pkg/paymob"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartLoader interface {
	FindBySessionToken(ctx context.Context, token uuid.UUID) (*models.Cart, error)
}

type cartConverter interface {
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type productFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type flavorFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Flavor, error)
}

type stockReserver interface {
	ReserveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []stock.Demand) error
}

type promoRedeemer interface {
	Quote(ctx context.Context, code string, subtotalCents int) (*promos.Quote, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string) (*models.PromoCode, error)
}

type settingsReader interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
}

type paymentGateway interface {
	Authenticate(ctx context.Context) (string, error)
	CreatePaymentOrder(ctx context.Context, authToken string, amountCents int, merchantOrderID string) (*paymob.PaymentOrder, error)
	GeneratePaymentKey(ctx context.Context, authToken string, order *paymob.PaymentOrder, billing paymob.BillingDetails) (string, error)
}

type placementNotifier interface {
	OrderPlaced(ctx context.Context, order *models.Order)
}

// Service turns an active cart into a committed order.
type Service interface {
	Finalize(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	tx       txRunner
	carts    cartLoader
	cartSvc  cartConverter
	products productFinder
	flavors  flavorFinder
	stock    stockReserver
	promos   promoRedeemer
	settings settingsReader
	orders   orders.Repository
	gateway  paymentGateway
	notifier placementNotifier
	logger   *logger.Logger
	metrics  *metrics.CheckoutMetrics
	now      func() time.Time
}

// Deps bundles the collaborators Finalize needs. Gateway, Notifier and
// Metrics are optional; a nil Gateway rejects card checkouts.
type Deps struct {
	Tx       txRunner
	Carts    cartLoader
	CartSvc  cartConverter
	Products productFinder
	Flavors  flavorFinder
	Stock    stockReserver
	Promos   promoRedeemer
	Settings settingsReader
	Orders   orders.Repository
	Gateway  paymentGateway
	Notifier placementNotifier
	Logger   *logger.Logger
	Metrics  *metrics.CheckoutMetrics
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.CartSvc == nil:
		return nil, fmt.Errorf("cart service required")
	case deps.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case deps.Flavors == nil:
		return nil, fmt.Errorf("flavor repository required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("stock service required")
	case deps.Promos == nil:
		return nil, fmt.Errorf("promo service required")
	case deps.Settings == nil:
		return nil, fmt.Errorf("settings service required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       deps.Tx,
		carts:    deps.Carts,
		cartSvc:  deps.CartSvc,
		products: deps.Products,
		flavors:  deps.Flavors,
		stock:    deps.Stock,
		promos:   deps.Promos,
		settings: deps.Settings,
		orders:   deps.Orders,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		now:      time.Now,
	}, nil
}

// Finalize is the only place prices are frozen and, in stock_based mode,
// the only place stock is checked. Order creation, item snapshots, stock
// decrements, promo redemption and cart conversion commit in a single
// transaction; any failure leaves all of them untouched. Card payment
// initialization happens after commit, so a gateway outage cannot lose a
// placed order.
func (s *service) Finalize(ctx context.Context, input Input) (*Result, error) {
	started := s.now()

	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	mode := snap.OrderMode.String()

	order, err := s.buildAndCommit(ctx, input, snap)
	if err != nil {
		s.metrics.IncRejected(rejectReason(err))
		return nil, err
	}

	result := &Result{Order: order}
	if order.PaymentMethod == enums.PaymentMethodCard {
		result.Payment = s.initCardPayment(ctx, order)
	}

	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, order)
	}

	s.metrics.IncCommitted(mode)
	s.metrics.ObserveDuration(mode, s.now().Sub(started))
	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id":      order.ID.String(),
		"tracking_code": order.TrackingCode,
		"order_mode":    mode,
		"total_cents":   order.TotalCents,
	}), "order placed")
	return result, nil
}

func (s *service) buildAndCommit(ctx context.Context, input Input, snap *settings.Snapshot) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !snap.StoreOpen {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "store is currently closed")
	}
	if input.PaymentMethod == enums.PaymentMethodCard && s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card payments are not available")
	}

	cartRecord, err := s.loadActiveCart(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	lines, demands, subtotal, err := s.freezeLines(ctx, cartRecord)
	if err != nil {
		return nil, err
	}

	// Cheap validating pass before opening the transaction. The conditional
	// reserve inside the transaction stays authoritative; this one exists to
	// reject hopeless orders with a full shortfall report instead of failing
	// on the first short line.
	if snap.OrderMode == enums.OrderModeStockBased && len(demands) > 0 {
		ids := make([]uuid.UUID, 0, len(demands))
		for _, d := range demands {
			ids = append(ids, d.FlavorID)
		}
		flavorRows, err := s.flavors.FindByIDs(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading flavors")
		}
		if shortfalls := stock.CheckAvailability(flavorRows, demands); len(shortfalls) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for one or more flavors").
				WithDetails(map[string]any{"shortfalls": shortfalls})
		}
	}

	discount := 0
	var promoCode *string
	if input.PromoCode != nil && strings.TrimSpace(*input.PromoCode) != "" {
		quote, err := s.promos.Quote(ctx, *input.PromoCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = quote.DiscountCents
		code := quote.Promo.Code
		promoCode = &code
	}

	trackingCode, err := NewTrackingCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating tracking code")
	}

	order := &models.Order{
		ID:               uuid.New(),
		TrackingCode:     trackingCode,
		CartID:           &cartRecord.ID,
		CustomerName:     strings.TrimSpace(input.Customer.Name),
		CustomerEmail:    strings.ToLower(strings.TrimSpace(input.Customer.Email)),
		CustomerPhone:    strings.TrimSpace(input.Customer.Phone),
		Address:          strings.TrimSpace(input.Customer.Address),
		Notes:            input.Customer.Notes,
		OrderMode:        snap.OrderMode,
		Status:           enums.OrderStatusPending,
		Priority:         enums.OrderPriorityNormal,
		PaymentMethod:    input.PaymentMethod,
		PaymentStatus:    enums.PaymentStatusUnpaid,
		SubtotalCents:    subtotal,
		DeliveryFeeCents: snap.DeliveryFeeCents,
		DiscountCents:    discount,
		TotalCents:       subtotal - discount + snap.DeliveryFeeCents,
		PromoCode:        promoCode,
		Items:            lines,
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		for j := range order.Items[i].Flavors {
			order.Items[i].Flavors[j].OrderItemID = order.Items[i].ID
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if promoCode != nil {
			if _, err := s.promos.Redeem(ctx, tx, *promoCode); err != nil {
				return err
			}
		}
		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if snap.OrderMode == enums.OrderModeStockBased {
			if err := s.stock.ReserveForOrder(ctx, tx, order.ID, demands); err != nil {
				return err
			}
		}
		return s.cartSvc.MarkConverted(ctx, tx, cartRecord.ID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) loadActiveCart(ctx context.Context, sessionToken uuid.UUID) (*models.Cart, error) {
	cartRecord, err := s.carts.FindBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cartRecord.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart has already been checked out")
	}
	if len(cartRecord.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return cartRecord, nil
}

// freezeLines re-validates every cart line against the live catalog and
// produces the frozen order item snapshots, the aggregated stock demands
// and the subtotal. Carts tolerate stale references; checkout does not.
func (s *service) freezeLines(ctx context.Context, cartRecord *models.Cart) ([]models.OrderItem, []stock.Demand, int, error) {
	productIDs := make([]uuid.UUID, 0, len(cartRecord.Items))
	flavorIDs := make([]uuid.UUID, 0, len(cartRecord.Items))
	for _, item := range cartRecord.Items {
		productIDs = append(productIDs, item.ProductID)
		for _, sel := range item.Flavors {
			flavorIDs = append(flavorIDs, sel.FlavorID)
		}
	}

	productRows, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	productsByID := make(map[uuid.UUID]models.Product, len(productRows))
	for _, p := range productRows {
		productsByID[p.ID] = p
	}

	flavorRows, err := s.flavors.FindByIDs(ctx, flavorIDs)
	if err != nil {
		return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading flavors")
	}
	flavorsByID := make(map[uuid.UUID]models.Flavor, len(flavorRows))
	for _, f := range flavorRows {
		flavorsByID[f.ID] = f
	}

	lines := make([]models.OrderItem, 0, len(cartRecord.Items))
	var demands []stock.Demand
	subtotal := 0

	for _, item := range cartRecord.Items {
		product, ok := productsByID[item.ProductID]
		if !ok || !product.IsActive {
			return nil, nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "a cart item references a product that is no longer available").
				WithDetails(map[string]any{"cart_item_id": item.ID})
		}

		units := 0
		productID := product.ID
		line := models.OrderItem{
			ID:             uuid.New(),
			ProductID:      &productID,
			Name:           product.Name,
			Type:           product.Type,
			Size:           product.Size,
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: product.PriceCents * item.Quantity,
		}

		for _, sel := range item.Flavors {
			flavor, ok := flavorsByID[sel.FlavorID]
			if !ok || !flavor.IsActive {
				return nil, nil, 0, pkgerrors.New(pkgerrors.CodeInvalidComposition, "a cart item references a flavor that is no longer available").
					WithDetails(map[string]any{"cart_item_id": item.ID, "flavor_id": sel.FlavorID})
			}
			units += sel.Quantity
			flavorID := flavor.ID
			line.Flavors = append(line.Flavors, models.OrderItemFlavor{
				ID:          uuid.New(),
				OrderItemID: line.ID,
				FlavorID:    &flavorID,
				FlavorName:  flavor.Name,
				Size:        product.Size,
				Quantity:    sel.Quantity,
			})
			demands = append(demands, stock.Demand{
				FlavorID: flavor.ID,
				Size:     product.Size,
				Quantity: sel.Quantity * item.Quantity,
			})
		}

		if units != product.RequiredUnitCount {
			return nil, nil, 0, pkgerrors.New(pkgerrors.CodeInvalidComposition,
				fmt.Sprintf("item composition must total %d units, got %d", product.RequiredUnitCount, units)).
				WithDetails(map[string]any{"cart_item_id": item.ID})
		}

		subtotal += line.LineTotalCents
		lines = append(lines, line)
	}

	return lines, stock.AggregateDemands(demands), subtotal, nil
}

// initCardPayment runs after the order transaction has committed. A gateway
// failure marks the order's payment as failed and surfaces the reason, but
// never undoes the order itself.
func (s *service) initCardPayment(ctx context.Context, order *models.Order) *CardPayment {
	payment := &CardPayment{AmountCents: order.TotalCents}

	logCtx := s.logger.WithOrderID(ctx, order.ID.String())

	fail := func(err error) *CardPayment {
		s.logger.Error(logCtx, "card payment initialization failed", err)
		payment.FailureReason = err.Error()
		updates := map[string]any{"payment_status": enums.PaymentStatusFailed}
		if uerr := s.orders.Update(ctx, order.ID, updates); uerr != nil {
			s.logger.Error(logCtx, "marking payment failed", uerr)
		} else {
			order.PaymentStatus = enums.PaymentStatusFailed
		}
		return payment
	}

	token, err := s.gateway.Authenticate(ctx)
	if err != nil {
		return fail(err)
	}
	gatewayOrder, err := s.gateway.CreatePaymentOrder(ctx, token, order.TotalCents, order.TrackingCode)
	if err != nil {
		return fail(err)
	}
	key, err := s.gateway.GeneratePaymentKey(ctx, token, gatewayOrder, billingFor(order))
	if err != nil {
		return fail(err)
	}

	payment.PaymentKey = key
	payment.GatewayOrder = gatewayOrder.ID
	payment.Currency = gatewayOrder.Currency

	ref := strconv.FormatInt(gatewayOrder.ID, 10)
	if err := s.orders.Update(ctx, order.ID, map[string]any{"payment_ref": ref}); err != nil {
		s.logger.Error(logCtx, "saving payment reference", err)
	} else {
		order.PaymentRef = &ref
	}
	return payment
}

func billingFor(order *models.Order) paymob.BillingDetails {
	first := order.CustomerName
	last := "NA"
	if idx := strings.LastIndex(order.CustomerName, " "); idx > 0 {
		first = order.CustomerName[:idx]
		last = order.CustomerName[idx+1:]
	}
	return paymob.BillingDetails{
		FirstName:   first,
		LastName:    last,
		Email:       order.CustomerEmail,
		PhoneNumber: order.CustomerPhone,
		Street:      order.Address,
		City:        "NA",
		Country:     "EG",
	}
}

func validateInput(input Input) error {
	missing := []string{}
	if strings.TrimSpace(input.Customer.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(input.Customer.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(input.Customer.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required customer fields").
			WithDetails(map[string]any{"fields": missing})
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	return nil
}

func rejectReason(err error) string {
	appErr := pkgerrors.As(err)
	if appErr == nil {
		return "internal"
	}
	switch appErr.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeInvalidComposition:
		return "invalid_composition"
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeConflict:
		return "conflict"
	case pkgerrors.CodeNotFound:
		return "not_found"
	default:
		return "internal"
	}
}
