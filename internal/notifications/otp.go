package notifications

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crumbsandco/crumbs-backend/pkg/config"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	"github.com/crumbsandco/crumbs-backend/pkg/security"
	"github.com/crumbsandco/crumbs-backend/pkg/sms"
)

type otpStore interface {
	StoreOTP(ctx context.Context, phone, code string, ttl time.Duration) error
	GetOTP(ctx context.Context, phone string) (string, error)
	DeleteOTP(ctx context.Context, phone string) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

// OTPService sends and verifies one-time phone verification codes. Codes
// live in redis under a per-phone key and expire on their own; sends are
// rate limited per phone.
type OTPService struct {
	store  otpStore
	sender sms.Sender
	cfg    config.OTPConfig
	logger *logger.Logger
}

// NewOTPService builds the OTP service.
func NewOTPService(store otpStore, sender sms.Sender, cfg config.OTPConfig, logg *logger.Logger) (*OTPService, error) {
	if store == nil {
		return nil, fmt.Errorf("otp store required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OTPService{store: store, sender: sender, cfg: cfg, logger: logg}, nil
}

// Send generates a fresh code for the phone and delivers it by SMS.
// Resending replaces any previous unexpired code.
func (s *OTPService) Send(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}

	allowed, _, err := s.store.FixedWindowAllow(ctx, "otp_send:"+phone, int64(s.cfg.SendLimit), s.cfg.SendWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many codes requested, try again shortly")
	}

	code, err := security.GenerateOTPCode(s.cfg.CodeDigits)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating otp code")
	}
	if err := s.store.StoreOTP(ctx, phone, code, s.cfg.TTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing otp code")
	}

	message := fmt.Sprintf("Your Crumbs verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.TTL.Minutes()))
	if err := s.sender.Send(ctx, phone, message); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending otp sms")
	}
	return nil
}

// Verify checks the submitted code against the stored one. The code is
// single use: a successful verification deletes it, and too many failed
// attempts invalidate it early.
func (s *OTPService) Verify(ctx context.Context, phone, code string) error {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number and code are required")
	}

	stored, err := s.store.GetOTP(ctx, phone)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "code is invalid or has expired")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading otp code")
	}
	if stored == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "code is invalid or has expired")
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		attempts, aerr := s.store.IncrWithTTL(ctx, attemptsKey(phone), s.cfg.TTL)
		if aerr != nil {
			s.logger.Error(ctx, "tracking otp attempts", aerr)
		}
		if attempts >= int64(s.cfg.MaxAttempts) {
			if derr := s.store.DeleteOTP(ctx, phone); derr != nil {
				s.logger.Error(ctx, "invalidating otp after failed attempts", derr)
			}
		}
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "code is invalid or has expired")
	}

	if err := s.store.DeleteOTP(ctx, phone); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consuming otp code")
	}
	if err := s.store.Del(ctx, attemptsKey(phone)); err != nil {
		s.logger.Error(ctx, "clearing otp attempts", err)
	}
	return nil
}

func attemptsKey(phone string) string {
	return "otp_attempts:" + phone
}
