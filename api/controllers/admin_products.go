package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/api/responses"
	"github.com/crumbsandco/crumbs-backend/api/validators"
	productsvc "github.com/crumbsandco/crumbs-backend/internal/products"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

// AdminProductsList returns all products including inactive ones.
func AdminProductsList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context(), false)
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

type createProductRequest struct {
	Name              string `json:"name" validate:"required"`
	Type              string `json:"type" validate:"required"`
	Size              string `json:"size" validate:"required"`
	PriceCents        int    `json:"price_cents" validate:"required,min=1"`
	RequiredUnitCount int    `json:"required_unit_count" validate:"omitempty,min=1"`
}

// AdminProductCreate adds a sellable product. Boxes declare how many
// cookies a buyer must pick via required_unit_count.
func AdminProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productType, err := enums.ParseProductType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product type"))
			return
		}
		size, err := enums.ParseCookieSize(payload.Size)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid size"))
			return
		}

		product, err := svc.Create(r.Context(), productsvc.CreateInput{
			Name:              payload.Name,
			Type:              productType,
			Size:              size,
			PriceCents:        payload.PriceCents,
			RequiredUnitCount: payload.RequiredUnitCount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(*product))
	}
}

type updateProductRequest struct {
	Name       *string `json:"name,omitempty"`
	PriceCents *int    `json:"price_cents,omitempty" validate:"omitempty,min=1"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

// AdminProductUpdate edits the mutable product fields. Changing a
// product's type or size means creating a new product.
func AdminProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, productsvc.UpdateInput{
			Name:       payload.Name,
			PriceCents: payload.PriceCents,
			IsActive:   payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(*product))
	}
}
