package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/api/responses"
	"github.com/crumbsandco/crumbs-backend/api/validators"
	promosvc "github.com/crumbsandco/crumbs-backend/internal/promos"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

type promoResponse struct {
	ID        uuid.UUID       `json:"id"`
	Code      string          `json:"code"`
	Type      enums.PromoType `json:"type"`
	Value     int             `json:"value"`
	MaxUses   *int            `json:"max_uses,omitempty"`
	UsedCount int             `json:"used_count"`
	StartsAt  *time.Time      `json:"starts_at,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

func newPromoResponse(promo models.PromoCode) promoResponse {
	return promoResponse{
		ID:        promo.ID,
		Code:      promo.Code,
		Type:      promo.Type,
		Value:     promo.Value,
		MaxUses:   promo.MaxUses,
		UsedCount: promo.UsedCount,
		StartsAt:  promo.StartsAt,
		ExpiresAt: promo.ExpiresAt,
		IsActive:  promo.IsActive,
		CreatedAt: promo.CreatedAt,
	}
}

// AdminPromosList returns every promo code with its usage counts.
func AdminPromosList(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]promoResponse, len(rows))
		for i, row := range rows {
			out[i] = newPromoResponse(row)
		}
		responses.WriteSuccess(w, out)
	}
}

type createPromoRequest struct {
	Code      string     `json:"code" validate:"required"`
	Type      string     `json:"type" validate:"required"`
	Value     int        `json:"value" validate:"required,min=1"`
	MaxUses   *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AdminPromoCreate registers a discount code.
func AdminPromoCreate(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPromoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promoType, err := enums.ParsePromoType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promo type"))
			return
		}

		promo, err := svc.Create(r.Context(), promosvc.CreateInput{
			Code:      payload.Code,
			Type:      promoType,
			Value:     payload.Value,
			MaxUses:   payload.MaxUses,
			StartsAt:  payload.StartsAt,
			ExpiresAt: payload.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPromoResponse(*promo))
	}
}

type setPromoActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// AdminPromoSetActive toggles a promo code on or off.
func AdminPromoSetActive(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "promoID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promo id"))
			return
		}

		var payload setPromoActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetActive(r.Context(), id, *payload.IsActive); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}
