package flavors

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
)

// Repository defines persistence operations for the flavor catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, flavor *models.Flavor) (*models.Flavor, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Flavor, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Flavor, error)
	List(ctx context.Context, activeOnly bool) ([]models.Flavor, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a flavor repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, flavor *models.Flavor) (*models.Flavor, error) {
	if err := r.db.WithContext(ctx).Create(flavor).Error; err != nil {
		return nil, err
	}
	return flavor, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Flavor, error) {
	var flavor models.Flavor
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&flavor).Error
	if err != nil {
		return nil, err
	}
	return &flavor, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Flavor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Flavor
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.Flavor, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.Flavor
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Flavor{}).
		Where("id = ?", id).
		Updates(updates).Error
}
