package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/api/responses"
	"github.com/crumbsandco/crumbs-backend/api/validators"
	flavorsvc "github.com/crumbsandco/crumbs-backend/internal/flavors"
	stocksvc "github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

func flavorIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "flavorID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid flavor id")
	}
	return id, nil
}

// AdminFlavorsList returns all flavors including inactive ones.
func AdminFlavorsList(svc flavorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context(), false)
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

type createFlavorRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// AdminFlavorCreate adds a flavor to the catalog. New flavors start with
// zero stock in every size; counters move through the stock endpoints.
func AdminFlavorCreate(svc flavorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createFlavorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flavor, err := svc.Create(r.Context(), flavorsvc.CreateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Images:      payload.Images,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newFlavorResponse(*flavor))
	}
}

type updateFlavorRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// AdminFlavorUpdate edits catalog fields. Stock counters are not
// reachable from here.
func AdminFlavorUpdate(svc flavorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := flavorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateFlavorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flavor, err := svc.Update(r.Context(), id, flavorsvc.UpdateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Images:      payload.Images,
			IsActive:    payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newFlavorResponse(*flavor))
	}
}

type adjustStockRequest struct {
	Size  string `json:"size" validate:"required"`
	Delta int    `json:"delta" validate:"required"`
}

// AdminStockAdjust applies a manual counter change and records it in the
// ledger as an admin adjustment.
func AdminStockAdjust(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := flavorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		size, err := enums.ParseCookieSize(payload.Size)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid size"))
			return
		}

		if err := svc.Adjust(r.Context(), id, size, payload.Delta, enums.StockReasonAdminAdjustment); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "adjusted"})
	}
}

type stockHistoryResponse struct {
	ID           uuid.UUID               `json:"id"`
	FlavorID     uuid.UUID               `json:"flavor_id"`
	Size         enums.CookieSize        `json:"size"`
	ChangeAmount int                     `json:"change_amount"`
	Reason       enums.StockChangeReason `json:"reason"`
	OrderID      *uuid.UUID              `json:"order_id,omitempty"`
	ChangedAt    time.Time               `json:"changed_at"`
}

// AdminStockHistory returns the most recent ledger entries for a flavor.
func AdminStockHistory(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := flavorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]stockHistoryResponse, len(entries))
		for i, entry := range entries {
			out[i] = stockHistoryResponse{
				ID:           entry.ID,
				FlavorID:     entry.FlavorID,
				Size:         entry.Size,
				ChangeAmount: entry.ChangeAmount,
				Reason:       entry.Reason,
				OrderID:      entry.OrderID,
				ChangedAt:    entry.ChangedAt,
			}
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminStockReconcile compares live counters against the ledger sums and
// reports any drift.
func AdminStockReconcile(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := flavorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mismatches, err := svc.Reconcile(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"consistent": len(mismatches) == 0,
			"mismatches": mismatches,
		})
	}
}
