package flavors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
)

// CreateInput carries the fields an admin can set when adding a flavor.
type CreateInput struct {
	Name        string
	Description *string
	Images      []string
}

// UpdateInput carries the mutable catalog fields. Stock counters are not
// here; the stock package is the only writer for those.
type UpdateInput struct {
	Name        *string
	Description *string
	Images      []string
	IsActive    *bool
}

// Service exposes flavor catalog operations.
type Service interface {
	List(ctx context.Context, activeOnly bool) ([]models.Flavor, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Flavor, error)
	Create(ctx context.Context, input CreateInput) (*models.Flavor, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Flavor, error)
}

type service struct {
	repo Repository
}

// NewService builds the flavor catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("flavors repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]models.Flavor, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing flavors")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Flavor, error) {
	flavor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "flavor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading flavor")
	}
	return flavor, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Flavor, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flavor name is required")
	}

	flavor := &models.Flavor{
		ID:          uuid.New(),
		Name:        name,
		Description: input.Description,
		Images:      pq.StringArray(input.Images),
		IsActive:    true,
	}
	created, err := s.repo.Create(ctx, flavor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating flavor")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Flavor, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "flavor name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Images != nil {
		updates["images"] = pq.StringArray(input.Images)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating flavor")
		}
	}
	return s.Get(ctx, id)
}
