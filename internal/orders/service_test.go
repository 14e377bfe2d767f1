package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/internal/flavors"
	"github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/pagination"
)

func newOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
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
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type ordersTxRunner struct {
	db *gorm.DB
}

func (r ordersTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx.WithContext(ctx))
	})
}

type fixedWindowPolicy struct {
	window time.Duration
}

func (p *fixedWindowPolicy) CancellationWindow(ctx context.Context) (time.Duration, error) {
	return p.window, nil
}

type recordingStatusNotifier struct {
	statuses []enums.OrderStatus
}

func (n *recordingStatusNotifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	n.statuses = append(n.statuses, order.Status)
}

type ordersFixture struct {
	svc      Service
	db       *gorm.DB
	notifier *recordingStatusNotifier
	policy   *fixedWindowPolicy
	choc     models.Flavor
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	db := newOrdersTestDB(t)

	f := &ordersFixture{
		db:       db,
		notifier: &recordingStatusNotifier{},
		policy:   &fixedWindowPolicy{window: 30 * time.Minute},
	}
	f.choc = models.Flavor{ID: uuid.New(), Name: "Choc Chip", StockMini: 10, IsActive: true}
	require.NoError(t, db.Create(&f.choc).Error)

	stockSvc, err := stock.NewService(
		stock.NewHistoryRepository(db), flavors.NewRepository(db), ordersTxRunner{db: db}, nil)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(db), ordersTxRunner{db: db}, stockSvc, f.notifier, f.policy)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *ordersFixture) seedOrder(t *testing.T, mode enums.OrderMode, createdAt time.Time) models.Order {
	t.Helper()
	flavorID := f.choc.ID
	order := models.Order{
		ID:            uuid.New(),
		TrackingCode:  "CRM-" + uuid.NewString()[:8],
		CustomerName:  "Sara Adel",
		CustomerEmail: "sara@example.com",
		CustomerPhone: "+201001234567",
		Address:       "12 Road 9, Maadi",
		OrderMode:     mode,
		Status:        enums.OrderStatusPending,
		Priority:      enums.OrderPriorityNormal,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusUnpaid,
		SubtotalCents: 6000,
		TotalCents:    11000,
		CreatedAt:     createdAt,
		Items: []models.OrderItem{{
			ID:             uuid.New(),
			Name:           "Box of 4 Mini",
			Type:           enums.ProductTypeBox,
			Size:           enums.CookieSizeMini,
			UnitPriceCents: 6000,
			Quantity:       1,
			LineTotalCents: 6000,
			Flavors: []models.OrderItemFlavor{{
				ID:         uuid.New(),
				FlavorID:   &flavorID,
				FlavorName: "Choc Chip",
				Size:       enums.CookieSizeMini,
				Quantity:   4,
			}},
		}},
	}
	order.Items[0].OrderID = order.ID
	order.Items[0].Flavors[0].OrderItemID = order.Items[0].ID
	require.NoError(t, f.db.Create(&order).Error)
	return order
}

func TestTrackRequiresMatchingEmail(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())

	found, err := f.svc.Track(ctx, order.TrackingCode, "SARA@example.com")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Len(t, found.Items, 1)

	_, err = f.svc.Track(ctx, order.TrackingCode, "wrong@example.com")
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	_, err = f.svc.Track(ctx, "CRM-UNKNOWN1", "sara@example.com")
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	_, err = f.svc.Track(ctx, "", "sara@example.com")
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestUpdateStatusFollowsPipeline(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())

	updated, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPreparing, updated.Status)

	updated, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusOutForDelivery)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOutForDelivery, updated.Status)

	updated, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.NotNil(t, updated.DeliveredAt)

	_, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusPending)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	assert.Equal(t, []enums.OrderStatus{
		enums.OrderStatusPreparing,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	}, f.notifier.statuses)
}

func TestUpdateStatusRejectsSkippingStates(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusDelivered)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
}

func TestCancelWithinWindowRestocks(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())

	canceled, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, canceled.Status)
	assert.NotNil(t, canceled.CanceledAt)

	var flavor models.Flavor
	require.NoError(t, f.db.First(&flavor, "id = ?", f.choc.ID).Error)
	assert.Equal(t, 10+4, flavor.StockMini)

	var ledger []models.StockHistory
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, 4, ledger[0].ChangeAmount)
	assert.Equal(t, enums.StockReasonOrderCanceled, ledger[0].Reason)
}

func TestCancelPreorderSkipsRestock(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(t, enums.OrderModePreorder, time.Now().UTC())

	_, err := f.svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)

	var flavor models.Flavor
	require.NoError(t, f.db.First(&flavor, "id = ?", f.choc.ID).Error)
	assert.Equal(t, 10, flavor.StockMini)
}

func TestCancelAfterWindowRejected(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC().Add(-2*time.Hour))

	_, err := f.svc.Cancel(context.Background(), order.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	var flavor models.Flavor
	require.NoError(t, f.db.First(&flavor, "id = ?", f.choc.ID).Error)
	assert.Equal(t, 10, flavor.StockMini)
}

func TestCancelUsesLiveWindowSetting(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC().Add(-2*time.Hour))

	_, err := f.svc.Cancel(ctx, order.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	// Widening the window takes effect without rebuilding the service.
	f.policy.window = 4 * time.Hour
	canceled, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, canceled.Status)
}

func TestCancelTwiceReleasesStockOnce(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())

	_, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	var flavor models.Flavor
	require.NoError(t, f.db.First(&flavor, "id = ?", f.choc.ID).Error)
	assert.Equal(t, 10+4, flavor.StockMini)

	var ledger []models.StockHistory
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&ledger).Error)
	assert.Len(t, ledger, 1)
}

func TestUpdateWhereStatusGuardsStaleReads(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())
	repo := NewRepository(f.db)

	// A cancel racing on a stale status must touch zero rows.
	affected, err := repo.UpdateWhereStatus(ctx, order.ID, enums.OrderStatusPreparing, map[string]any{
		"status": enums.OrderStatusCanceled,
	})
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = repo.UpdateWhereStatus(ctx, order.ID, enums.OrderStatusPending, map[string]any{
		"status": enums.OrderStatusCanceled,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
}

// staleReadRepository hands Cancel an outdated view of the order while the
// database already moved on, the way two near-simultaneous cancels see it.
type staleReadRepository struct {
	Repository
	stale *models.Order
}

func (r staleReadRepository) WithTx(tx *gorm.DB) Repository {
	return staleReadRepository{Repository: r.Repository.WithTx(tx), stale: r.stale}
}

func (r staleReadRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	snapshot := *r.stale
	return &snapshot, nil
}

func TestCancelLosesRaceToConcurrentUpdate(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())

	stale, err := NewRepository(f.db).FindByID(ctx, order.ID)
	require.NoError(t, err)

	// Another cancel lands first.
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusCanceled).Error)

	stockSvc, err := stock.NewService(
		stock.NewHistoryRepository(f.db), flavors.NewRepository(f.db), ordersTxRunner{db: f.db}, nil)
	require.NoError(t, err)
	svc, err := NewService(
		staleReadRepository{Repository: NewRepository(f.db), stale: stale},
		ordersTxRunner{db: f.db}, stockSvc, f.notifier, f.policy)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, order.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeTransactionConflict, appErr.Code())

	// The loser must not have released anything.
	var flavor models.Flavor
	require.NoError(t, f.db.First(&flavor, "id = ?", f.choc.ID).Error)
	assert.Equal(t, 10, flavor.StockMini)
	var ledgerCount int64
	require.NoError(t, f.db.Model(&models.StockHistory{}).Count(&ledgerCount).Error)
	assert.Zero(t, ledgerCount)
}

func TestCancelDeliveredOrderRejected(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusDelivered).Error)

	_, err := f.svc.Cancel(ctx, order.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
}

func TestAssignAndMarkPaid(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderModeStockBased, time.Now().UTC())

	agent := "Moustafa"
	priority := enums.OrderPriorityHigh
	updated, err := f.svc.Assign(ctx, order.ID, AssignmentInput{
		DeliveryAgent: &agent,
		Priority:      &priority,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveryAgent)
	assert.Equal(t, "Moustafa", *updated.DeliveryAgent)
	assert.Equal(t, enums.OrderPriorityHigh, updated.Priority)

	require.NoError(t, f.svc.MarkPaid(ctx, order.ID, "pay-ref-1"))
	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, reloaded.PaymentStatus)
	require.NotNil(t, reloaded.PaymentRef)
	assert.Equal(t, "pay-ref-1", *reloaded.PaymentRef)
}

func TestAdminListFiltersAndPaginates(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		f.seedOrder(t, enums.OrderModeStockBased, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := f.svc.AdminList(ctx, pagination.Params{Limit: 3}, Filters{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 3)
	require.NotEmpty(t, page.NextCursor)

	next, err := f.svc.AdminList(ctx, pagination.Params{Limit: 3, Cursor: page.NextCursor}, Filters{})
	require.NoError(t, err)
	assert.Len(t, next.Orders, 2)
	assert.Empty(t, next.NextCursor)

	status := enums.OrderStatusPending
	filtered, err := f.svc.AdminList(ctx, pagination.Params{Limit: 10}, Filters{Status: &status})
	require.NoError(t, err)
	assert.Len(t, filtered.Orders, 5)

	delivered := enums.OrderStatusDelivered
	empty, err := f.svc.AdminList(ctx, pagination.Params{Limit: 10}, Filters{Status: &delivered})
	require.NoError(t, err)
	assert.Empty(t, empty.Orders)
}
