package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	cartsvc "github.com/crumbsandco/crumbs-backend/internal/cart"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	"gorm.io/gorm"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestCartAddItem(t *testing.T) {
	logg := testLogger()
	token := uuid.New()
	productID := uuid.New()
	flavorID := uuid.New()

	body := `{"product_id":"` + productID.String() + `","quantity":2,"flavors":[{"flavor_id":"` + flavorID.String() + `","quantity":4}]}`

	t.Run("missing session token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		rec := httptest.NewRecorder()
		CartAddItem(&stubCartService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 without session token, got %d", rec.Code)
		}
	})

	t.Run("invalid session token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		req.Header.Set(SessionTokenHeader, "not-a-uuid")
		rec := httptest.NewRecorder()
		CartAddItem(&stubCartService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed token, got %d", rec.Code)
		}
	})

	t.Run("rejects empty flavor list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+productID.String()+`","quantity":1,"flavors":[]}`))
		req.Header.Set(SessionTokenHeader, token.String())
		rec := httptest.NewRecorder()
		CartAddItem(&stubCartService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty flavors, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubCartService{view: &cartsvc.View{SessionToken: token, SubtotalCents: 1200}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		req.Header.Set(SessionTokenHeader, token.String())
		rec := httptest.NewRecorder()
		CartAddItem(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.addToken != token {
			t.Fatalf("expected session token %s forwarded, got %s", token, stub.addToken)
		}
		if stub.addInput.ProductID != productID || stub.addInput.Quantity != 2 {
			t.Fatalf("unexpected add input: %+v", stub.addInput)
		}
		if len(stub.addInput.Flavors) != 1 || stub.addInput.Flavors[0].Quantity != 4 {
			t.Fatalf("unexpected flavor selections: %+v", stub.addInput.Flavors)
		}

		var envelope struct {
			Data cartsvc.View `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if envelope.Data.SubtotalCents != 1200 {
			t.Fatalf("expected subtotal 1200, got %d", envelope.Data.SubtotalCents)
		}
	})
}

func TestCartReset(t *testing.T) {
	logg := testLogger()

	t.Run("missing session token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/reset", nil)
		rec := httptest.NewRecorder()
		CartReset(&stubCartService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 without session token, got %d", rec.Code)
		}
	})

	t.Run("returns replacement token", func(t *testing.T) {
		oldToken := uuid.New()
		newToken := uuid.New()
		stub := &stubCartService{view: &cartsvc.View{SessionToken: newToken, Items: []cartsvc.ItemView{}}}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/reset", nil)
		req.Header.Set(SessionTokenHeader, oldToken.String())
		rec := httptest.NewRecorder()
		CartReset(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.resetToken != oldToken {
			t.Fatalf("expected old token %s forwarded, got %s", oldToken, stub.resetToken)
		}

		var envelope struct {
			Data cartsvc.View `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if envelope.Data.SessionToken != newToken {
			t.Fatalf("expected new session token %s, got %s", newToken, envelope.Data.SessionToken)
		}
	})
}

func TestCartViewRequiresToken(t *testing.T) {
	logg := testLogger()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	CartView(&stubCartService{}, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session token, got %d", rec.Code)
	}
}

type stubCartService struct {
	view       *cartsvc.View
	addToken   uuid.UUID
	addInput   cartsvc.AddItemInput
	resetToken uuid.UUID
}

func (s *stubCartService) GetOrCreate(ctx context.Context, sessionToken uuid.UUID) (*models.Cart, error) {
	panic("unimplemented")
}

func (s *stubCartService) View(ctx context.Context, sessionToken uuid.UUID) (*cartsvc.View, error) {
	return s.view, nil
}

func (s *stubCartService) AddItem(ctx context.Context, sessionToken uuid.UUID, input cartsvc.AddItemInput) (*cartsvc.View, error) {
	s.addToken = sessionToken
	s.addInput = input
	return s.view, nil
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, sessionToken, itemID uuid.UUID, quantity int) (*cartsvc.View, error) {
	panic("unimplemented")
}

func (s *stubCartService) RemoveItem(ctx context.Context, sessionToken, itemID uuid.UUID) (*cartsvc.View, error) {
	panic("unimplemented")
}

func (s *stubCartService) Clear(ctx context.Context, sessionToken uuid.UUID) error {
	panic("unimplemented")
}

func (s *stubCartService) Reset(ctx context.Context, sessionToken uuid.UUID) (*cartsvc.View, error) {
	s.resetToken = sessionToken
	return s.view, nil
}

func (s *stubCartService) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	panic("unimplemented")
}
