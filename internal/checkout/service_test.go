package checkout

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/internal/cart"
	"github.com/crumbsandco/crumbs-backend/internal/flavors"
	"github.com/crumbsandco/crumbs-backend/internal/orders"
	"github.com/crumbsandco/crumbs-backend/internal/products"
	"github.com/crumbsandco/crumbs-backend/internal/promos"
	"github.com/crumbsandco/crumbs-backend/internal/settings"
	"github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	"github.com/crumbsandco/crumbs-backend/pkg/paymob"
	"github.com/crumbsandco/crumbs-backend/pkg/types"
)

func newCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS flavors (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  images TEXT,
  stock_mini INTEGER NOT NULL DEFAULT 0,
  stock_medium INTEGER NOT NULL DEFAULT 0,
  stock_large INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT 'single',
  size TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  required_unit_count INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  session_token TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'active',
  converted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS cart_item_flavors (
  id TEXT PRIMARY KEY,
  cart_item_id TEXT NOT NULL,
  flavor_id TEXT NOT NULL,
  size TEXT NOT NULL,
  quantity INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  tracking_code TEXT NOT NULL UNIQUE,
  cart_id TEXT,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  address TEXT NOT NULL,
  notes TEXT,
  order_mode TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  priority TEXT NOT NULL DEFAULT 'normal',
  payment_method TEXT NOT NULL DEFAULT 'cash',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  payment_ref TEXT,
  subtotal_cents INTEGER NOT NULL,
  delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  promo_code TEXT,
  delivery_agent TEXT,
  kitchen TEXT,
  delivered_at DATETIME,
  canceled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  size TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_item_flavors (
  id TEXT PRIMARY KEY,
  order_item_id TEXT NOT NULL,
  flavor_id TEXT,
  flavor_name TEXT NOT NULL,
  size TEXT NOT NULL,
  quantity INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS stock_history (
  id TEXT PRIMARY KEY,
  flavor_id TEXT NOT NULL,
  size TEXT NOT NULL,
  change_amount INTEGER NOT NULL,
  reason TEXT NOT NULL,
  order_id TEXT,
  changed_at DATETIME
);
CREATE TABLE IF NOT EXISTS promo_codes (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  value INTEGER NOT NULL,
  max_uses INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  starts_at DATETIME,
  expires_at DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS site_settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx.WithContext(ctx))
	})
}

type stubGateway struct {
	failAt string
	calls  []string
}

func (g *stubGateway) Authenticate(ctx context.Context) (string, error) {
	g.calls = append(g.calls, "auth")
	if g.failAt == "auth" {
		return "", fmt.Errorf("gateway unavailable")
	}
	return "auth-token", nil
}

func (g *stubGateway) CreatePaymentOrder(ctx context.Context, authToken string, amountCents int, merchantOrderID string) (*paymob.PaymentOrder, error) {
	g.calls = append(g.calls, "order")
	if g.failAt == "order" {
		return nil, fmt.Errorf("gateway rejected order")
	}
	return &paymob.PaymentOrder{ID: 4242, AmountCents: amountCents, Currency: "EGP"}, nil
}

func (g *stubGateway) GeneratePaymentKey(ctx context.Context, authToken string, order *paymob.PaymentOrder, billing paymob.BillingDetails) (string, error) {
	g.calls = append(g.calls, "key")
	if g.failAt == "key" {
		return "", fmt.Errorf("gateway rejected key")
	}
	return "pay-key-123", nil
}

type recordingNotifier struct {
	placed []string
}

func (n *recordingNotifier) OrderPlaced(ctx context.Context, order *models.Order) {
	n.placed = append(n.placed, order.TrackingCode)
}

type checkoutFixture struct {
	svc      Service
	db       *gorm.DB
	gateway  *stubGateway
	notifier *recordingNotifier
	settings settings.Service
	token    uuid.UUID
	cartID   uuid.UUID
	single   models.Product
	box      models.Product
	choc     models.Flavor
	lotus    models.Flavor
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := newCheckoutTestDB(t)

	f := &checkoutFixture{db: db, token: uuid.New()}
	f.choc = models.Flavor{ID: uuid.New(), Name: "Choc Chip", StockMini: 20, StockMedium: 10, IsActive: true}
	f.lotus = models.Flavor{ID: uuid.New(), Name: "Lotus", StockMini: 20, StockMedium: 10, IsActive: true}
	for _, flavor := range []models.Flavor{f.choc, f.lotus} {
		require.NoError(t, db.Create(&flavor).Error)
	}

	f.single = models.Product{
		ID: uuid.New(), Name: "Single Medium", Type: enums.ProductTypeSingle,
		Size: enums.CookieSizeMedium, PriceCents: 2500, RequiredUnitCount: 1, IsActive: true,
	}
	f.box = models.Product{
		ID: uuid.New(), Name: "Box of 4 Mini", Type: enums.ProductTypeBox,
		Size: enums.CookieSizeMini, PriceCents: 6000, RequiredUnitCount: 4, IsActive: true,
	}
	for _, product := range []models.Product{f.single, f.box} {
		require.NoError(t, db.Create(&product).Error)
	}

	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})

	cartRepo := cart.NewRepository(db)
	productRepo := products.NewRepository(db)
	flavorRepo := flavors.NewRepository(db)
	cartSvc, err := cart.NewService(cartRepo, productRepo, flavorRepo)
	require.NoError(t, err)

	stockSvc, err := stock.NewService(stock.NewHistoryRepository(db), flavorRepo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	promoSvc, err := promos.NewService(promos.NewRepository(db))
	require.NoError(t, err)

	settingsSvc, err := settings.NewService(settings.NewRepository(db))
	require.NoError(t, err)
	f.settings = settingsSvc

	f.gateway = &stubGateway{}
	f.notifier = &recordingNotifier{}

	svc, err := NewService(Deps{
		Tx:       gormTxRunner{db: db},
		Carts:    cartRepo,
		CartSvc:  cartSvc,
		Products: productRepo,
		Flavors:  flavorRepo,
		Stock:    stockSvc,
		Promos:   promoSvc,
		Settings: settingsSvc,
		Orders:   orders.NewRepository(db),
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Logger:   logg,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// seedCart writes cart rows directly so tests control exact compositions.
func (f *checkoutFixture) seedCart(t *testing.T, items ...models.CartItem) {
	t.Helper()
	f.cartID = uuid.New()
	require.NoError(t, f.db.Create(&models.Cart{
		ID:           f.cartID,
		SessionToken: f.token,
		Status:       enums.CartStatusActive,
	}).Error)
	for i := range items {
		items[i].ID = uuid.New()
		items[i].CartID = f.cartID
		for j := range items[i].Flavors {
			items[i].Flavors[j].ID = uuid.New()
			items[i].Flavors[j].CartItemID = items[i].ID
		}
		require.NoError(t, f.db.Create(&items[i]).Error)
	}
}

func (f *checkoutFixture) boxItem(quantity, chocUnits, lotusUnits int) models.CartItem {
	item := models.CartItem{ProductID: f.box.ID, Quantity: quantity}
	if chocUnits > 0 {
		item.Flavors = append(item.Flavors, models.CartItemFlavor{
			FlavorID: f.choc.ID, Size: enums.CookieSizeMini, Quantity: chocUnits,
		})
	}
	if lotusUnits > 0 {
		item.Flavors = append(item.Flavors, models.CartItemFlavor{
			FlavorID: f.lotus.ID, Size: enums.CookieSizeMini, Quantity: lotusUnits,
		})
	}
	return item
}

func validInput(token uuid.UUID) Input {
	return Input{
		SessionToken: token,
		Customer: types.DeliveryInfo{
			Name:    "Sara Adel",
			Email:   "Sara@Example.com",
			Phone:   "+201001234567",
			Address: "12 Road 9, Maadi",
		},
		PaymentMethod: enums.PaymentMethodCash,
	}
}

func (f *checkoutFixture) flavorStock(t *testing.T, id uuid.UUID) models.Flavor {
	t.Helper()
	var flavor models.Flavor
	require.NoError(t, f.db.First(&flavor, "id = ?", id).Error)
	return flavor
}

func TestFinalizeStockBasedHappyPath(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.seedCart(t,
		f.boxItem(2, 3, 1),
		models.CartItem{ProductID: f.single.ID, Quantity: 1, Flavors: []models.CartItemFlavor{
			{FlavorID: f.choc.ID, Size: enums.CookieSizeMedium, Quantity: 1},
		}},
	)

	result, err := f.svc.Finalize(ctx, validInput(f.token))
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Nil(t, result.Payment)

	order := result.Order
	assert.True(t, strings.HasPrefix(order.TrackingCode, "CRM-"))
	assert.Equal(t, "sara@example.com", order.CustomerEmail)
	assert.Equal(t, enums.OrderModeStockBased, order.OrderMode)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, 2*6000+2500, order.SubtotalCents)
	assert.Equal(t, 5000, order.DeliveryFeeCents)
	assert.Equal(t, 2*6000+2500+5000, order.TotalCents)

	choc := f.flavorStock(t, f.choc.ID)
	assert.Equal(t, 20-6, choc.StockMini)
	assert.Equal(t, 10-1, choc.StockMedium)
	lotus := f.flavorStock(t, f.lotus.ID)
	assert.Equal(t, 20-2, lotus.StockMini)

	var ledger []models.StockHistory
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&ledger).Error)
	assert.Len(t, ledger, 3)
	for _, entry := range ledger {
		assert.Negative(t, entry.ChangeAmount)
		assert.Equal(t, enums.StockReasonOrderPlaced, entry.Reason)
	}

	var cartRow models.Cart
	require.NoError(t, f.db.First(&cartRow, "id = ?", f.cartID).Error)
	assert.Equal(t, enums.CartStatusConverted, cartRow.Status)
	assert.NotNil(t, cartRow.ConvertedAt)

	var persisted models.Order
	require.NoError(t, f.db.Preload("Items.Flavors").First(&persisted, "id = ?", order.ID).Error)
	assert.Len(t, persisted.Items, 2)

	assert.Equal(t, []string{order.TrackingCode}, f.notifier.placed)

	_, err = f.svc.Finalize(ctx, validInput(f.token))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
}

func TestFinalizeInsufficientStockRollsBack(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.seedCart(t, f.boxItem(6, 4, 0))

	_, err := f.svc.Finalize(ctx, validInput(f.token))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	choc := f.flavorStock(t, f.choc.ID)
	assert.Equal(t, 20, choc.StockMini)

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)

	var ledgerCount int64
	require.NoError(t, f.db.Model(&models.StockHistory{}).Count(&ledgerCount).Error)
	assert.Zero(t, ledgerCount)

	var cartRow models.Cart
	require.NoError(t, f.db.First(&cartRow, "id = ?", f.cartID).Error)
	assert.Equal(t, enums.CartStatusActive, cartRow.Status)
	assert.Empty(t, f.notifier.placed)
}

func TestFinalizePreorderSkipsStock(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	require.NoError(t, f.settings.Update(ctx, "order_mode", "preorder"))
	f.seedCart(t, f.boxItem(100, 400, 0))

	result, err := f.svc.Finalize(ctx, validInput(f.token))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderModePreorder, result.Order.OrderMode)

	choc := f.flavorStock(t, f.choc.ID)
	assert.Equal(t, 20, choc.StockMini)

	var ledgerCount int64
	require.NoError(t, f.db.Model(&models.StockHistory{}).Count(&ledgerCount).Error)
	assert.Zero(t, ledgerCount)
}

func TestFinalizeAppliesPromo(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	maxUses := 5
	promo := models.PromoCode{
		ID:       uuid.New(),
		Code:     "SWEET10",
		Type:     enums.PromoTypePercentage,
		Value:    10,
		MaxUses:  &maxUses,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&promo).Error)
	f.seedCart(t, f.boxItem(1, 4, 0))

	input := validInput(f.token)
	code := "sweet10"
	input.PromoCode = &code

	result, err := f.svc.Finalize(ctx, input)
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, 6000, order.SubtotalCents)
	assert.Equal(t, 600, order.DiscountCents)
	assert.Equal(t, 6000-600+5000, order.TotalCents)
	require.NotNil(t, order.PromoCode)
	assert.Equal(t, "SWEET10", *order.PromoCode)

	var stored models.PromoCode
	require.NoError(t, f.db.First(&stored, "id = ?", promo.ID).Error)
	assert.Equal(t, 1, stored.UsedCount)
}

func TestFinalizeCardPaymentSuccess(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.seedCart(t, f.boxItem(1, 4, 0))

	input := validInput(f.token)
	input.PaymentMethod = enums.PaymentMethodCard

	result, err := f.svc.Finalize(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Equal(t, "pay-key-123", result.Payment.PaymentKey)
	assert.Equal(t, int64(4242), result.Payment.GatewayOrder)
	assert.Equal(t, "EGP", result.Payment.Currency)
	assert.Empty(t, result.Payment.FailureReason)
	assert.Equal(t, []string{"auth", "order", "key"}, f.gateway.calls)

	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", result.Order.ID).Error)
	require.NotNil(t, stored.PaymentRef)
	assert.Equal(t, "4242", *stored.PaymentRef)
}

func TestFinalizeCardGatewayFailureKeepsOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.seedCart(t, f.boxItem(1, 4, 0))
	f.gateway.failAt = "order"

	input := validInput(f.token)
	input.PaymentMethod = enums.PaymentMethodCard

	result, err := f.svc.Finalize(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Empty(t, result.Payment.PaymentKey)
	assert.Contains(t, result.Payment.FailureReason, "gateway rejected order")

	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", result.Order.ID).Error)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)

	choc := f.flavorStock(t, f.choc.ID)
	assert.Equal(t, 20-4, choc.StockMini)
}

func TestFinalizeStoreClosed(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	require.NoError(t, f.settings.Update(ctx, "store_open", "false"))
	f.seedCart(t, f.boxItem(1, 4, 0))

	_, err := f.svc.Finalize(ctx, validInput(f.token))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
}

func TestFinalizeEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t)

	_, err := f.svc.Finalize(context.Background(), validInput(f.token))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestFinalizeMissingCustomerFields(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t, f.boxItem(1, 4, 0))

	input := validInput(f.token)
	input.Customer.Email = "  "

	_, err := f.svc.Finalize(context.Background(), input)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestFinalizeUnknownCart(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Finalize(context.Background(), validInput(uuid.New()))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestFinalizeDeactivatedFlavorRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.seedCart(t, f.boxItem(1, 4, 0))
	require.NoError(t, f.db.Model(&models.Flavor{}).
		Where("id = ?", f.choc.ID).
		Update("is_active", false).Error)

	_, err := f.svc.Finalize(ctx, validInput(f.token))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInvalidComposition, appErr.Code())
}

func TestFinalizeReportsEveryShortLine(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	// Both flavors are short at once; the report must name each of them,
	// not just the first line the reservation loop happened to hit.
	f.seedCart(t, f.boxItem(11, 2, 2))

	_, err := f.svc.Finalize(ctx, validInput(f.token))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	shortfalls, ok := details["shortfalls"].([]stock.Shortfall)
	require.True(t, ok)
	require.Len(t, shortfalls, 2)

	byFlavor := map[uuid.UUID]stock.Shortfall{}
	for _, sf := range shortfalls {
		byFlavor[sf.FlavorID] = sf
	}
	assert.Equal(t, 22, byFlavor[f.choc.ID].Requested)
	assert.Equal(t, 20, byFlavor[f.choc.ID].Available)
	assert.Equal(t, 22, byFlavor[f.lotus.ID].Requested)
	assert.Equal(t, 20, byFlavor[f.lotus.ID].Available)

	// Rejected before the transaction opened, so nothing moved.
	choc := f.flavorStock(t, f.choc.ID)
	assert.Equal(t, 20, choc.StockMini)
	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
	var ledgerCount int64
	require.NoError(t, f.db.Model(&models.StockHistory{}).Count(&ledgerCount).Error)
	assert.Zero(t, ledgerCount)
}

// staleFlavorFinder replays the counters a shopper saw before a competing
// checkout committed. Whatever it reports, the conditional reserve inside
// the transaction has the final word.
type staleFlavorFinder struct {
	repo    flavorFinder
	surplus int
}

func (s staleFlavorFinder) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Flavor, error) {
	rows, err := s.repo.FindByIDs(ctx, ids)
	for i := range rows {
		rows[i].StockMini += s.surplus
	}
	return rows, err
}

func TestFinalizeLastUnitsHaveOneWinner(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(&models.Flavor{}).
		Where("id = ?", f.choc.ID).
		Update("stock_mini", 4).Error)

	f.seedCart(t, f.boxItem(1, 4, 0))
	first, err := f.svc.Finalize(ctx, validInput(f.token))
	require.NoError(t, err)

	// The second shopper starts from counters read before the winner
	// committed, so the cheap availability pass waves them through.
	cartRepo := cart.NewRepository(f.db)
	productRepo := products.NewRepository(f.db)
	flavorRepo := flavors.NewRepository(f.db)
	cartSvc, err := cart.NewService(cartRepo, productRepo, flavorRepo)
	require.NoError(t, err)
	stockSvc, err := stock.NewService(stock.NewHistoryRepository(f.db), flavorRepo, gormTxRunner{db: f.db}, nil)
	require.NoError(t, err)
	promoSvc, err := promos.NewService(promos.NewRepository(f.db))
	require.NoError(t, err)
	staleSvc, err := NewService(Deps{
		Tx:       gormTxRunner{db: f.db},
		Carts:    cartRepo,
		CartSvc:  cartSvc,
		Products: productRepo,
		Flavors:  staleFlavorFinder{repo: flavorRepo, surplus: 4},
		Stock:    stockSvc,
		Promos:   promoSvc,
		Settings: f.settings,
		Orders:   orders.NewRepository(f.db),
		Notifier: f.notifier,
		Logger:   logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard}),
	})
	require.NoError(t, err)

	secondToken := uuid.New()
	secondCartID := uuid.New()
	require.NoError(t, f.db.Create(&models.Cart{
		ID:           secondCartID,
		SessionToken: secondToken,
		Status:       enums.CartStatusActive,
	}).Error)
	item := f.boxItem(1, 4, 0)
	item.ID = uuid.New()
	item.CartID = secondCartID
	for j := range item.Flavors {
		item.Flavors[j].ID = uuid.New()
		item.Flavors[j].CartItemID = item.ID
	}
	require.NoError(t, f.db.Create(&item).Error)

	_, err = staleSvc.Finalize(ctx, validInput(secondToken))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	// Exactly one order holds the units and the counter never went negative.
	choc := f.flavorStock(t, f.choc.ID)
	assert.Equal(t, 0, choc.StockMini)
	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, orderCount)

	var ledger []models.StockHistory
	require.NoError(t, f.db.Where("reason = ?", enums.StockReasonOrderPlaced).Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, -4, ledger[0].ChangeAmount)
	require.NotNil(t, ledger[0].OrderID)
	assert.Equal(t, first.Order.ID, *ledger[0].OrderID)

	var loserCart models.Cart
	require.NoError(t, f.db.First(&loserCart, "id = ?", secondCartID).Error)
	assert.Equal(t, enums.CartStatusActive, loserCart.Status)
}

func TestNewTrackingCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := NewTrackingCode()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "CRM-"))
		assert.Len(t, code, len("CRM-")+8)
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "0")
		assert.False(t, seen[code])
		seen[code] = true
	}
}
