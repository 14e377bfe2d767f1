package sms

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
	sendPath       = "/messages"
	defaultTimeout = 10 * time.Second
)

var (
	errTokenRequired  = errors.New("sms token is required")
	errLoggerRequired = errors.New("sms logger is required")
)

// Sender delivers a text message to one recipient.
type Sender interface {
	Send(ctx context.Context, phone string, message string) error
}

// Client posts messages to the SMS gateway. When the gateway is disabled
// via config, Send logs the message and reports success, which keeps dev
// and test environments free of real traffic.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	sender     string
	disabled   bool
	logger     *logger.Logger
}

var _ Sender = (*Client)(nil)

// NewClient validates the gateway credentials and builds the client.
func NewClient(cfg config.SMSConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" && !cfg.Disabled {
		return nil, errTokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      token,
		sender:     cfg.Sender,
		disabled:   cfg.Disabled,
		logger:     logg,
	}, nil
}

type sendRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type sendResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Send delivers one message, mapping gateway failures to dependency errors.
func (c *Client) Send(ctx context.Context, phone string, message string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient phone is required")
	}

	if c.disabled {
		c.logger.Info(c.logger.WithFields(ctx, map[string]any{
			"phone": phone,
		}), "sms gateway disabled, skipping send")
		return nil
	}

	payload, err := json.Marshal(sendRequest{
		Sender:    c.sender,
		Recipient: phone,
		Message:   message,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding sms request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building sms request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling sms gateway")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sms response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sms gateway responded with status %d", resp.StatusCode))
	}

	var body sendResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding sms response")
	}
	if !body.Accepted {
		msg := body.Error
		if msg == "" {
			msg = "sms gateway rejected the message"
		}
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
	return nil
}
