package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Repository defines persistence operations for carts and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindBySessionToken(ctx context.Context, token uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	AddItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error
	DeleteAbandonedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *repository) FindBySessionToken(ctx context.Context, token uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items.Flavors").
		Where("session_token = ?", token).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Flavors").
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) AddItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

func (r *repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	if err := r.db.WithContext(ctx).
		Where("cart_item_id = ?", itemID).
		Delete(&models.CartItemFlavor{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("cart_item_id IN (?)", r.db.Model(&models.CartItem{}).Select("id").Where("cart_id = ?", cartID)).
		Delete(&models.CartItemFlavor{}).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates).Error
}

// DeleteAbandonedBefore purges active and abandoned carts whose last update
// predates the cutoff, including their items and flavor selections.
// Converted carts are never touched.
func (r *repository) DeleteAbandonedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}

	purgeable := []enums.CartStatus{enums.CartStatusActive, enums.CartStatusAbandoned}
	staleCarts := db.Model(&models.Cart{}).
		Select("id").
		Where("status IN (?) AND updated_at < ?", purgeable, cutoff)
	staleItems := db.Model(&models.CartItem{}).
		Select("id").
		Where("cart_id IN (?)", staleCarts)

	if err := db.WithContext(ctx).
		Where("cart_item_id IN (?)", staleItems).
		Delete(&models.CartItemFlavor{}).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).
		Where("cart_id IN (?)", staleCarts).
		Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).
		Where("status IN (?) AND updated_at < ?", purgeable, cutoff).
		Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
