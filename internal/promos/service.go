package promos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
)

// CreateInput carries the fields an admin sets when minting a promo code.
type CreateInput struct {
	Code      string
	Type      enums.PromoType
	Value     int
	MaxUses   *int
	StartsAt  *time.Time
	ExpiresAt *time.Time
}

// Quote is the discount a promo code yields against a given subtotal.
type Quote struct {
	Promo         *models.PromoCode `json:"promo"`
	DiscountCents int               `json:"discount_cents"`
}

// Service validates, quotes and redeems promo codes.
type Service interface {
	Quote(ctx context.Context, code string, subtotalCents int) (*Quote, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string) (*models.PromoCode, error)
	Create(ctx context.Context, input CreateInput) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the promo service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promos repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Quote checks a code's validity against the current time and usage cap,
// then computes the discount. Percentage math runs in decimal and rounds
// half up to whole cents. The discount never exceeds the subtotal.
func (s *service) Quote(ctx context.Context, code string, subtotalCents int) (*Quote, error) {
	if subtotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}

	promo, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	discount := discountFor(promo, subtotalCents)
	return &Quote{Promo: promo, DiscountCents: discount}, nil
}

// Redeem burns one use of the code inside the caller's transaction. The
// conditional increment fails cleanly when a concurrent checkout takes
// the last use.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string) (*models.PromoCode, error) {
	promo, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.WithTx(tx).IncrementUsage(ctx, promo.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeeming promo code")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promo code has no uses left")
	}
	return promo, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo type must be percentage or fixed")
	}
	if input.Type == enums.PromoTypePercentage && (input.Value < 1 || input.Value > 100) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage value must be between 1 and 100")
	}
	if input.Type == enums.PromoTypeFixed && input.Value < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixed discount must be positive")
	}
	if input.MaxUses != nil && *input.MaxUses < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max uses must be positive")
	}
	if input.StartsAt != nil && input.ExpiresAt != nil && input.ExpiresAt.Before(*input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry cannot precede the start time")
	}

	promo := &models.PromoCode{
		ID:        uuid.New(),
		Code:      code,
		Type:      input.Type,
		Value:     input.Value,
		MaxUses:   input.MaxUses,
		StartsAt:  input.StartsAt,
		ExpiresAt: input.ExpiresAt,
		IsActive:  true,
	}
	created, err := s.repo.Create(ctx, promo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating promo code")
	}
	return created, nil
}

func (s *service) List(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing promo codes")
	}
	return rows, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.Update(ctx, id, map[string]any{"is_active": active}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating promo code")
	}
	return nil
}

func (s *service) lookup(ctx context.Context, code string) (*models.PromoCode, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is required")
	}

	promo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading promo code")
	}

	now := s.now().UTC()
	switch {
	case !promo.IsActive:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is inactive")
	case promo.StartsAt != nil && now.Before(*promo.StartsAt):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not active yet")
	case promo.ExpiresAt != nil && now.After(*promo.ExpiresAt):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code has expired")
	case promo.MaxUses != nil && promo.UsedCount >= *promo.MaxUses:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code has no uses left")
	}
	return promo, nil
}

func discountFor(promo *models.PromoCode, subtotalCents int) int {
	var discount int
	switch promo.Type {
	case enums.PromoTypePercentage:
		pct := decimal.NewFromInt(int64(promo.Value)).Div(decimal.NewFromInt(100))
		discount = int(decimal.NewFromInt(int64(subtotalCents)).Mul(pct).Round(0).IntPart())
	case enums.PromoTypeFixed:
		discount = promo.Value
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
