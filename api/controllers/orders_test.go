package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	ordersvc "github.com/crumbsandco/crumbs-backend/internal/orders"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/pagination"
)

func TestOrderTrack(t *testing.T) {
	logg := testLogger()

	t.Run("missing code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track?email=nadia@example.com", nil)
		rec := httptest.NewRecorder()
		OrderTrack(&stubOrderService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 without code, got %d", rec.Code)
		}
	})

	t.Run("missing email", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track?code=CRM-7H2K9QXD", nil)
		rec := httptest.NewRecorder()
		OrderTrack(&stubOrderService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 without email, got %d", rec.Code)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		stub := &stubOrderService{trackErr: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track?code=CRM-XXXXXXXX&email=nadia@example.com", nil)
		rec := httptest.NewRecorder()
		OrderTrack(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		order := &models.Order{
			ID:            uuid.New(),
			TrackingCode:  "CRM-7H2K9QXD",
			CustomerName:  "Nadia",
			CustomerEmail: "nadia@example.com",
			Status:        enums.OrderStatusOutForDelivery,
			PaymentMethod: enums.PaymentMethodCash,
			PaymentStatus: enums.PaymentStatusUnpaid,
			TotalCents:    3500,
		}
		stub := &stubOrderService{order: order}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track?code=CRM-7H2K9QXD&email=nadia@example.com", nil)
		rec := httptest.NewRecorder()
		OrderTrack(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.trackCode != "CRM-7H2K9QXD" || stub.trackEmail != "nadia@example.com" {
			t.Fatalf("unexpected lookup: code=%q email=%q", stub.trackCode, stub.trackEmail)
		}

		var envelope struct {
			Data orderResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if envelope.Data.TrackingCode != order.TrackingCode {
			t.Fatalf("expected tracking code %q, got %q", order.TrackingCode, envelope.Data.TrackingCode)
		}
		if envelope.Data.Status != enums.OrderStatusOutForDelivery {
			t.Fatalf("expected status %q, got %q", enums.OrderStatusOutForDelivery, envelope.Data.Status)
		}
	})
}

type stubOrderService struct {
	order      *models.Order
	trackErr   error
	trackCode  string
	trackEmail string
}

func (s *stubOrderService) Track(ctx context.Context, trackingCode, email string) (*models.Order, error) {
	s.trackCode = trackingCode
	s.trackEmail = email
	if s.trackErr != nil {
		return nil, s.trackErr
	}
	return s.order, nil
}

func (s *stubOrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	panic("unimplemented")
}

func (s *stubOrderService) AdminList(ctx context.Context, params pagination.Params, filters ordersvc.Filters) (*ordersvc.List, error) {
	panic("unimplemented")
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	panic("unimplemented")
}

func (s *stubOrderService) Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	panic("unimplemented")
}

func (s *stubOrderService) Assign(ctx context.Context, id uuid.UUID, input ordersvc.AssignmentInput) (*models.Order, error) {
	panic("unimplemented")
}

func (s *stubOrderService) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) error {
	panic("unimplemented")
}
