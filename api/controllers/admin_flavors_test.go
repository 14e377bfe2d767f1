package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	stocksvc "github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	"gorm.io/gorm"
)

func withFlavorID(r *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("flavorID", id)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx)
	return r.WithContext(ctx)
}

func TestAdminStockAdjust(t *testing.T) {
	logg := testLogger()
	flavorID := uuid.New()

	t.Run("invalid flavor id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/flavors/nope/stock/adjust", strings.NewReader(`{"size":"mini","delta":10}`))
		req = withFlavorID(req, "nope")
		rec := httptest.NewRecorder()
		AdminStockAdjust(&stubStockService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for bad flavor id, got %d", rec.Code)
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/flavors/"+flavorID.String()+"/stock/adjust", strings.NewReader(`{"size":"jumbo","delta":10}`))
		req = withFlavorID(req, flavorID.String())
		rec := httptest.NewRecorder()
		AdminStockAdjust(&stubStockService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown size, got %d", rec.Code)
		}
	})

	t.Run("zero delta rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/flavors/"+flavorID.String()+"/stock/adjust", strings.NewReader(`{"size":"mini","delta":0}`))
		req = withFlavorID(req, flavorID.String())
		rec := httptest.NewRecorder()
		AdminStockAdjust(&stubStockService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for zero delta, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubStockService{}
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/flavors/"+flavorID.String()+"/stock/adjust", strings.NewReader(`{"size":"large","delta":-3}`))
		req = withFlavorID(req, flavorID.String())
		rec := httptest.NewRecorder()
		AdminStockAdjust(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.adjustFlavorID != flavorID || stub.adjustSize != enums.CookieSizeLarge || stub.adjustDelta != -3 {
			t.Fatalf("unexpected adjust call: flavor=%s size=%s delta=%d", stub.adjustFlavorID, stub.adjustSize, stub.adjustDelta)
		}
		if stub.adjustReason != enums.StockReasonAdminAdjustment {
			t.Fatalf("expected admin adjustment reason, got %q", stub.adjustReason)
		}
	})
}

func TestAdminStockReconcile(t *testing.T) {
	logg := testLogger()
	flavorID := uuid.New()

	t.Run("consistent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/flavors/"+flavorID.String()+"/stock/reconcile", nil)
		req = withFlavorID(req, flavorID.String())
		rec := httptest.NewRecorder()
		AdminStockReconcile(&stubStockService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var envelope struct {
			Data struct {
				Consistent bool                `json:"consistent"`
				Mismatches []stocksvc.Mismatch `json:"mismatches"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !envelope.Data.Consistent {
			t.Fatal("expected consistent=true with no mismatches")
		}
	})

	t.Run("drift reported", func(t *testing.T) {
		stub := &stubStockService{mismatches: []stocksvc.Mismatch{{
			FlavorID:  flavorID,
			Size:      enums.CookieSizeMedium,
			Counter:   10,
			LedgerSum: 12,
		}}}
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/flavors/"+flavorID.String()+"/stock/reconcile", nil)
		req = withFlavorID(req, flavorID.String())
		rec := httptest.NewRecorder()
		AdminStockReconcile(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var envelope struct {
			Data struct {
				Consistent bool                `json:"consistent"`
				Mismatches []stocksvc.Mismatch `json:"mismatches"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if envelope.Data.Consistent {
			t.Fatal("expected consistent=false when counters drift")
		}
		if len(envelope.Data.Mismatches) != 1 || envelope.Data.Mismatches[0].LedgerSum != 12 {
			t.Fatalf("unexpected mismatches: %+v", envelope.Data.Mismatches)
		}
	})
}

type stubStockService struct {
	mismatches []stocksvc.Mismatch

	adjustFlavorID uuid.UUID
	adjustSize     enums.CookieSize
	adjustDelta    int
	adjustReason   enums.StockChangeReason
}

func (s *stubStockService) ReserveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []stocksvc.Demand) error {
	panic("unimplemented")
}

func (s *stubStockService) ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []stocksvc.Demand) error {
	panic("unimplemented")
}

func (s *stubStockService) Adjust(ctx context.Context, flavorID uuid.UUID, size enums.CookieSize, delta int, reason enums.StockChangeReason) error {
	s.adjustFlavorID = flavorID
	s.adjustSize = size
	s.adjustDelta = delta
	s.adjustReason = reason
	return nil
}

func (s *stubStockService) History(ctx context.Context, flavorID uuid.UUID, limit int) ([]models.StockHistory, error) {
	panic("unimplemented")
}

func (s *stubStockService) Reconcile(ctx context.Context, flavorID uuid.UUID) ([]stocksvc.Mismatch, error) {
	return s.mismatches, nil
}
