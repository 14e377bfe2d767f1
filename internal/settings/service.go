package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
)

// Setting keys. Values are stored as strings and decoded per key.
const (
	KeyOrderMode                 = "order_mode"
	KeyDeliveryFeeCents          = "delivery_fee_cents"
	KeyCancellationWindowMinutes = "cancellation_window_minutes"
	KeyStoreOpen                 = "store_open"
)

// Defaults applied when a key has no row yet.
const (
	defaultDeliveryFeeCents   = 5000
	defaultCancellationWindow = 30 * time.Minute
)

// Snapshot is the decoded view of every site setting at one point in time.
// Checkout reads one snapshot at the start of finalization so a mid-flight
// admin change cannot split a single order across two modes.
type Snapshot struct {
	OrderMode          enums.OrderMode `json:"order_mode"`
	DeliveryFeeCents   int             `json:"delivery_fee_cents"`
	CancellationWindow time.Duration   `json:"-"`
	StoreOpen          bool            `json:"store_open"`
}

// Service reads and updates global shop settings.
type Service interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	OrderMode(ctx context.Context) (enums.OrderMode, error)
	CancellationWindow(ctx context.Context) (time.Duration, error)
	Update(ctx context.Context, key, value string) error
}

type service struct {
	repo Repository
}

// NewService builds the settings service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		OrderMode:          enums.OrderModeStockBased,
		DeliveryFeeCents:   defaultDeliveryFeeCents,
		CancellationWindow: defaultCancellationWindow,
		StoreOpen:          true,
	}

	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading site settings")
	}

	for _, row := range rows {
		switch row.Key {
		case KeyOrderMode:
			if mode, err := enums.ParseOrderMode(row.Value); err == nil {
				snap.OrderMode = mode
			}
		case KeyDeliveryFeeCents:
			if cents, err := strconv.Atoi(row.Value); err == nil && cents >= 0 {
				snap.DeliveryFeeCents = cents
			}
		case KeyCancellationWindowMinutes:
			if minutes, err := strconv.Atoi(row.Value); err == nil && minutes >= 0 {
				snap.CancellationWindow = time.Duration(minutes) * time.Minute
			}
		case KeyStoreOpen:
			if open, err := strconv.ParseBool(row.Value); err == nil {
				snap.StoreOpen = open
			}
		}
	}
	return snap, nil
}

func (s *service) OrderMode(ctx context.Context) (enums.OrderMode, error) {
	row, err := s.repo.Get(ctx, KeyOrderMode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enums.OrderModeStockBased, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order mode")
	}
	mode, err := enums.ParseOrderMode(row.Value)
	if err != nil {
		return enums.OrderModeStockBased, nil
	}
	return mode, nil
}

// CancellationWindow reads the live policy so an admin change takes effect
// on the next cancellation, not the next deploy.
func (s *service) CancellationWindow(ctx context.Context) (time.Duration, error) {
	row, err := s.repo.Get(ctx, KeyCancellationWindowMinutes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return defaultCancellationWindow, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cancellation window")
	}
	minutes, err := strconv.Atoi(row.Value)
	if err != nil || minutes < 0 {
		return defaultCancellationWindow, nil
	}
	return time.Duration(minutes) * time.Minute, nil
}

func (s *service) Update(ctx context.Context, key, value string) error {
	if err := validateSetting(key, value); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, key, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving site setting")
	}
	return nil
}

func validateSetting(key, value string) error {
	switch key {
	case KeyOrderMode:
		if _, err := enums.ParseOrderMode(value); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "order_mode must be stock_based or preorder")
		}
	case KeyDeliveryFeeCents, KeyCancellationWindowMinutes:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be a non-negative integer", key))
		}
	case KeyStoreOpen:
		if _, err := strconv.ParseBool(value); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "store_open must be true or false")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown setting %q", key))
	}
	return nil
}
