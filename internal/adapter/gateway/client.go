package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sevapay/config"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client implements ports.PaymentGateway over the payment gateway's order
// API. The gateway hosts the checkout itself; this client only opens the
// session and hands the token back to the frontend.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a payment gateway API client.
func NewClient(cfg config.GatewayConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

// CreateOrder opens a checkout session for a wallet top-up.
func (c *Client) CreateOrder(ctx context.Context, amount int64, ownerID uuid.UUID) (*ports.GatewayOrder, error) {
	payload := map[string]any{
		"amount":       amount,
		"customer_ref": ownerID.String(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.ErrExternalServiceUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Bytes("body", respBody).
			Msg("gateway returned server error")
		return nil, apperror.ErrExternalServiceUnavailable(
			fmt.Errorf("gateway status %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway rejected order: status %d: %s", resp.StatusCode, respBody)
	}

	var out struct {
		OrderID      string `json:"order_id"`
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return &ports.GatewayOrder{OrderID: out.OrderID, SessionToken: out.SessionToken}, nil
}
