package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/api/responses"
	"github.com/crumbsandco/crumbs-backend/internal/flavors"
	"github.com/crumbsandco/crumbs-backend/internal/products"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

type flavorResponse struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Images      []string       `json:"images"`
	Stock       map[string]int `json:"stock"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func newFlavorResponse(flavor models.Flavor) flavorResponse {
	images := []string(flavor.Images)
	if images == nil {
		images = []string{}
	}
	return flavorResponse{
		ID:          flavor.ID,
		Name:        flavor.Name,
		Description: flavor.Description,
		Images:      images,
		Stock: map[string]int{
			string(enums.CookieSizeMini):   flavor.StockMini,
			string(enums.CookieSizeMedium): flavor.StockMedium,
			string(enums.CookieSizeLarge):  flavor.StockLarge,
		},
		IsActive:  flavor.IsActive,
		CreatedAt: flavor.CreatedAt,
		UpdatedAt: flavor.UpdatedAt,
	}
}

type productResponse struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Type              enums.ProductType `json:"type"`
	Size              enums.CookieSize  `json:"size"`
	PriceCents        int               `json:"price_cents"`
	RequiredUnitCount int               `json:"required_unit_count"`
	IsActive          bool              `json:"is_active"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func newProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:                product.ID,
		Name:              product.Name,
		Type:              product.Type,
		Size:              product.Size,
		PriceCents:        product.PriceCents,
		RequiredUnitCount: product.RequiredUnitCount,
		IsActive:          product.IsActive,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         product.UpdatedAt,
	}
}

// FlavorsList returns the active flavor catalog for the storefront.
func FlavorsList(svc flavors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context(), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]flavorResponse, len(rows))
		for i, row := range rows {
			out[i] = newFlavorResponse(row)
		}
		responses.WriteSuccess(w, out)
	}
}

// ProductsList returns the active product catalog for the storefront.
func ProductsList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context(), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]productResponse, len(rows))
		for i, row := range rows {
			out[i] = newProductResponse(row)
		}
		responses.WriteSuccess(w, out)
	}
}
