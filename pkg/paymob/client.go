package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crumbsandco/crumbs-backend/pkg/config"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

const (
	authPath       = "/auth/tokens"
	ordersPath     = "/ecommerce/orders"
	paymentKeyPath = "/acceptance/payment_keys"

	defaultTimeout = 15 * time.Second
)

var (
	errAPIKeyRequired        = errors.New("paymob api key is required")
	errIntegrationIDRequired = errors.New("paymob integration id is required")
	errLoggerRequired        = errors.New("paymob logger is required")
)

// Client talks to the Paymob Accept API. Every call authenticates lazily
// and reuses the short-lived auth token until Paymob rejects it.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	integrationID string
	currency      string
	logger        *logger.Logger
}

// NewClient validates the Paymob credentials and builds the client.
func NewClient(cfg config.PaymobConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	integrationID := strings.TrimSpace(cfg.IntegrationID)
	if integrationID == "" {
		return nil, errIntegrationIDRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        apiKey,
		integrationID: integrationID,
		currency:      cfg.Currency,
		logger:        logg,
	}, nil
}

// PaymentOrder is Paymob's registered order for a pending card payment.
type PaymentOrder struct {
	ID          int64  `json:"id"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// BillingDetails identifies the payer on the payment key request.
type BillingDetails struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

type authRequest struct {
	APIKey string `json:"api_key"`
}

type authResponse struct {
	Token string `json:"token"`
}

type createOrderRequest struct {
	AuthToken       string `json:"auth_token"`
	DeliveryNeeded  bool   `json:"delivery_needed"`
	AmountCents     int    `json:"amount_cents"`
	Currency        string `json:"currency"`
	MerchantOrderID string `json:"merchant_order_id"`
}

type paymentKeyRequest struct {
	AuthToken     string         `json:"auth_token"`
	AmountCents   int            `json:"amount_cents"`
	Currency      string         `json:"currency"`
	OrderID       int64          `json:"order_id"`
	IntegrationID string         `json:"integration_id"`
	Expiration    int            `json:"expiration"`
	Billing       BillingDetails `json:"billing_data"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges the API key for a short-lived auth token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var resp authResponse
	if err := c.post(ctx, authPath, authRequest{APIKey: c.apiKey}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paymob returned an empty auth token")
	}
	return resp.Token, nil
}

// CreatePaymentOrder registers the order with Paymob and returns its id.
// merchantOrderID must be unique per order; the tracking code serves here.
func (c *Client) CreatePaymentOrder(ctx context.Context, authToken string, amountCents int, merchantOrderID string) (*PaymentOrder, error) {
	body := createOrderRequest{
		AuthToken:       authToken,
		AmountCents:     amountCents,
		Currency:        c.currency,
		MerchantOrderID: merchantOrderID,
	}
	var resp PaymentOrder
	if err := c.post(ctx, ordersPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paymob returned an empty order id")
	}
	return &resp, nil
}

// GeneratePaymentKey returns the client-side payment token for the iframe.
func (c *Client) GeneratePaymentKey(ctx context.Context, authToken string, order *PaymentOrder, billing BillingDetails) (string, error) {
	if order == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "payment order is required")
	}
	body := paymentKeyRequest{
		AuthToken:     authToken,
		AmountCents:   order.AmountCents,
		Currency:      c.currency,
		OrderID:       order.ID,
		IntegrationID: c.integrationID,
		Expiration:    3600,
		Billing:       billing,
	}
	var resp paymentKeyResponse
	if err := c.post(ctx, paymentKeyPath, body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paymob returned an empty payment key")
	}
	return resp.Token, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding paymob request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building paymob request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling paymob")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading paymob response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn(c.logger.WithFields(ctx, map[string]any{
			"status": resp.StatusCode,
			"path":   path,
		}), "paymob request failed")
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paymob responded with status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding paymob response")
	}
	return nil
}
