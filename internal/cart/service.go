package cart

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
)

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type flavorFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Flavor, error)
}

// Service exposes session-scoped cart operations. Stock is never checked
// here; availability is enforced once, at order finalization.
type Service interface {
	GetOrCreate(ctx context.Context, sessionToken uuid.UUID) (*models.Cart, error)
	View(ctx context.Context, sessionToken uuid.UUID) (*View, error)
	AddItem(ctx context.Context, sessionToken uuid.UUID, input AddItemInput) (*View, error)
	UpdateItemQuantity(ctx context.Context, sessionToken, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, sessionToken, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, sessionToken uuid.UUID) error
	Reset(ctx context.Context, sessionToken uuid.UUID) (*View, error)
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type service struct {
	repo     Repository
	products productFinder
	flavors  flavorFinder
}

// NewService builds the cart service.
func NewService(repo Repository, products productFinder, flavors flavorFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if flavors == nil {
		return nil, fmt.Errorf("flavor finder required")
	}
	return &service{repo: repo, products: products, flavors: flavors}, nil
}

// GetOrCreate returns the active cart for the session token, creating an
// empty one on first touch.
func (s *service) GetOrCreate(ctx context.Context, sessionToken uuid.UUID) (*models.Cart, error) {
	if sessionToken == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session token is required")
	}

	cart, err := s.repo.FindBySessionToken(ctx, sessionToken)
	if err == nil {
		if cart.Status != enums.CartStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is no longer active")
		}
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{
		ID:           uuid.New(),
		SessionToken: sessionToken,
		Status:       enums.CartStatusActive,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating cart")
	}
	return created, nil
}

func (s *service) View(ctx context.Context, sessionToken uuid.UUID) (*View, error) {
	cart, err := s.GetOrCreate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart)
}

// AddItem validates the product and its flavor composition, then appends
// the line. A box's flavor quantities must sum exactly to the product's
// required unit count; a single takes exactly one cookie of one flavor.
func (s *service) AddItem(ctx context.Context, sessionToken uuid.UUID, input AddItemInput) (*View, error) {
	cart, err := s.GetOrCreate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	if err := s.validateComposition(ctx, product, input.Flavors); err != nil {
		return nil, err
	}

	item := &models.CartItem{
		ID:        uuid.New(),
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  input.Quantity,
	}
	for _, sel := range input.Flavors {
		item.Flavors = append(item.Flavors, models.CartItemFlavor{
			ID:         uuid.New(),
			CartItemID: item.ID,
			FlavorID:   sel.FlavorID,
			Size:       product.Size,
			Quantity:   sel.Quantity,
		})
	}

	if err := s.repo.AddItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adding cart item")
	}

	return s.reload(ctx, sessionToken)
}

func (s *service) UpdateItemQuantity(ctx context.Context, sessionToken, itemID uuid.UUID, quantity int) (*View, error) {
	cart, err := s.GetOrCreate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	if _, err := s.repo.FindItem(ctx, cart.ID, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}

	if err := s.repo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart item")
	}
	return s.reload(ctx, sessionToken)
}

// RemoveItem deletes the line if present. Removing an item that is already
// gone is a success, so retried deletes stay safe.
func (s *service) RemoveItem(ctx context.Context, sessionToken, itemID uuid.UUID) (*View, error) {
	cart, err := s.GetOrCreate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart item")
	}
	return s.reload(ctx, sessionToken)
}

func (s *service) Clear(ctx context.Context, sessionToken uuid.UUID) error {
	cart, err := s.GetOrCreate(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart")
	}
	return nil
}

// Reset abandons the caller's cart and starts over under a fresh session
// token. The old cart keeps its rows for the cleanup job; only its status
// changes.
func (s *service) Reset(ctx context.Context, sessionToken uuid.UUID) (*View, error) {
	if sessionToken == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session token is required")
	}

	old, err := s.repo.FindBySessionToken(ctx, sessionToken)
	if err == nil && old.Status == enums.CartStatusActive {
		if err := s.repo.UpdateCart(ctx, old.ID, map[string]any{
			"status": enums.CartStatusAbandoned,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "abandoning cart")
		}
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}

	fresh, err := s.repo.Create(ctx, &models.Cart{
		ID:           uuid.New(),
		SessionToken: uuid.New(),
		Status:       enums.CartStatusActive,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating cart")
	}
	return s.buildView(ctx, fresh)
}

// MarkConverted flips the cart out of circulation once an order commits.
// Runs inside the checkout transaction.
func (s *service) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	now := time.Now().UTC()
	err := s.repo.WithTx(tx).UpdateCart(ctx, cartID, map[string]any{
		"status":       enums.CartStatusConverted,
		"converted_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "converting cart")
	}
	return nil
}

func (s *service) validateComposition(ctx context.Context, product *models.Product, selections []FlavorSelectionInput) error {
	if len(selections) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidComposition, "at least one flavor selection is required")
	}

	seen := map[uuid.UUID]bool{}
	total := 0
	ids := make([]uuid.UUID, 0, len(selections))
	for _, sel := range selections {
		if sel.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeInvalidComposition, "flavor quantity must be at least 1")
		}
		if seen[sel.FlavorID] {
			return pkgerrors.New(pkgerrors.CodeInvalidComposition, "duplicate flavor selection")
		}
		seen[sel.FlavorID] = true
		total += sel.Quantity
		ids = append(ids, sel.FlavorID)
	}

	if total != product.RequiredUnitCount {
		return pkgerrors.New(pkgerrors.CodeInvalidComposition,
			fmt.Sprintf("flavor quantities must sum to %d, got %d", product.RequiredUnitCount, total)).
			WithDetails(map[string]int{"required": product.RequiredUnitCount, "got": total})
	}

	flavors, err := s.flavors.FindByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading flavors")
	}
	byID := map[uuid.UUID]models.Flavor{}
	for _, f := range flavors {
		byID[f.ID] = f
	}
	for _, id := range ids {
		flavor, ok := byID[id]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidComposition, "unknown flavor in selection")
		}
		if !flavor.IsActive {
			return pkgerrors.New(pkgerrors.CodeInvalidComposition, fmt.Sprintf("flavor %s is not available", flavor.Name))
		}
	}
	return nil
}

func (s *service) reload(ctx context.Context, sessionToken uuid.UUID) (*View, error) {
	cart, err := s.repo.FindBySessionToken(ctx, sessionToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading cart")
	}
	return s.buildView(ctx, cart)
}

// buildView prices every line against the live catalog. Inactive products
// still price normally here; finalization is where they get rejected.
func (s *service) buildView(ctx context.Context, cart *models.Cart) (*View, error) {
	view := &View{SessionToken: cart.SessionToken, Items: []ItemView{}}
	if len(cart.Items) == 0 {
		return view, nil
	}

	productIDs := make([]uuid.UUID, 0, len(cart.Items))
	flavorIDs := make([]uuid.UUID, 0)
	for _, item := range cart.Items {
		productIDs = append(productIDs, item.ProductID)
		for _, f := range item.Flavors {
			flavorIDs = append(flavorIDs, f.FlavorID)
		}
	}

	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	productsByID := map[uuid.UUID]models.Product{}
	for _, p := range products {
		productsByID[p.ID] = p
	}

	flavors, err := s.flavors.FindByIDs(ctx, flavorIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading flavors")
	}
	flavorsByID := map[uuid.UUID]models.Flavor{}
	for _, f := range flavors {
		flavorsByID[f.ID] = f
	}

	for _, item := range cart.Items {
		product, ok := productsByID[item.ProductID]
		if !ok {
			// Product removed from the catalog after it landed in the cart.
			continue
		}

		line := ItemView{
			ID:             item.ID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			ProductType:    product.Type,
			Size:           product.Size,
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: product.PriceCents * item.Quantity,
		}
		for _, sel := range item.Flavors {
			flavorName := ""
			if flavor, ok := flavorsByID[sel.FlavorID]; ok {
				flavorName = flavor.Name
			}
			line.Flavors = append(line.Flavors, FlavorLine{
				FlavorID:   sel.FlavorID,
				FlavorName: flavorName,
				Size:       sel.Size,
				Quantity:   sel.Quantity,
			})
		}
		view.Items = append(view.Items, line)
		view.SubtotalCents += line.LineTotalCents
	}
	return view, nil
}
