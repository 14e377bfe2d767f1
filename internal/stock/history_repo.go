package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// HistoryRepository appends and reads the stock ledger. There is no update
// or delete; the ledger only grows.
type HistoryRepository interface {
	WithTx(tx *gorm.DB) HistoryRepository
	Append(ctx context.Context, entries []models.StockHistory) error
	SumFor(ctx context.Context, flavorID uuid.UUID, size enums.CookieSize) (int, error)
	ListByFlavor(ctx context.Context, flavorID uuid.UUID, limit int) ([]models.StockHistory, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository builds a ledger repository bound to the provided DB.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) WithTx(tx *gorm.DB) HistoryRepository {
	if tx == nil {
		return r
	}
	return &historyRepository{db: tx}
}

func (r *historyRepository) Append(ctx context.Context, entries []models.StockHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *historyRepository) SumFor(ctx context.Context, flavorID uuid.UUID, size enums.CookieSize) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.StockHistory{}).
		Select("SUM(change_amount)").
		Where("flavor_id = ? AND size = ?", flavorID, size).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *historyRepository) ListByFlavor(ctx context.Context, flavorID uuid.UUID, limit int) ([]models.StockHistory, error) {
	query := r.db.WithContext(ctx).
		Where("flavor_id = ?", flavorID).
		Order("changed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.StockHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *historyRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockHistory, error) {
	var rows []models.StockHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("changed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
