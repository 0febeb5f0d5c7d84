package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sevapay/config"
	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/metrics"
	"sevapay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client implements ports.AggregatorClient over the recharge aggregator's
// REST API. Every call carries the configured timeout; a timeout or a 5xx
// surfaces as apperror.ErrExternalServiceUnavailable so callers never
// mistake an unknown outcome for a definitive one.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates an aggregator API client.
func NewClient(cfg config.AggregatorConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "aggregator").Logger(),
	}
}

// DetectOperator guesses the operator and circle for a subscriber number.
// Detection failures return nil, nil: the caller falls back to manual
// selection.
func (c *Client) DetectOperator(ctx context.Context, number string) (*domain.OperatorHint, error) {
	var out struct {
		OperatorCode string  `json:"operator_code"`
		CircleCode   *string `json:"circle_code"`
	}
	err := c.get(ctx, "/v1/detect?number="+url.QueryEscape(number), &out)
	if err != nil || out.OperatorCode == "" {
		if err != nil {
			c.log.Debug().Err(err).Msg("operator detection failed")
		}
		return nil, nil
	}
	return &domain.OperatorHint{OperatorCode: out.OperatorCode, CircleCode: out.CircleCode}, nil
}

// ListPlans fetches the plan catalog for an operator (and circle, when set).
func (c *Client) ListPlans(ctx context.Context, operatorCode string, circleCode *string) ([]domain.Plan, error) {
	path := "/v1/plans?operator=" + url.QueryEscape(operatorCode)
	if circleCode != nil {
		path += "&circle=" + url.QueryEscape(*circleCode)
	}
	var out struct {
		Plans []domain.Plan `json:"plans"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// FetchBill fetches the due bill for a postpaid/utility subscriber.
func (c *Client) FetchBill(ctx context.Context, operatorCode, number string) (*domain.BillDetails, error) {
	path := fmt.Sprintf("/v1/bill?operator=%s&number=%s",
		url.QueryEscape(operatorCode), url.QueryEscape(number))
	var out struct {
		CustomerName string    `json:"customer_name"`
		DueAmount    int64     `json:"due_amount"`
		DueDate      time.Time `json:"due_date"`
		RefID        string    `json:"ref_id"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &domain.BillDetails{
		CustomerName: out.CustomerName,
		DueAmount:    out.DueAmount,
		DueDate:      out.DueDate,
		RefID:        out.RefID,
	}, nil
}

// Submit sends one recharge for execution. The order ID doubles as the
// aggregator-side idempotency key, so a retried submission cannot execute
// twice.
func (c *Client) Submit(ctx context.Context, req ports.AggregatorSubmitRequest) (*ports.AggregatorResult, error) {
	payload := map[string]any{
		"client_ref":    req.OrderID.String(),
		"operator_code": req.OperatorCode,
		"target_number": req.TargetNumber,
		"amount":        req.Amount,
	}
	if req.BillRef != nil {
		payload["bill_ref"] = *req.BillRef
	}

	var out struct {
		Status string `json:"status"`
		Ref    string `json:"ref"`
	}
	if err := c.post(ctx, "/v1/recharge", payload, &out); err != nil {
		return nil, err
	}
	return &ports.AggregatorResult{Status: ports.AggregatorStatus(out.Status), Ref: out.Ref}, nil
}

// CheckStatus re-queries an earlier submission by client reference.
func (c *Client) CheckStatus(ctx context.Context, orderID uuid.UUID) (*ports.AggregatorResult, error) {
	var out struct {
		Status string `json:"status"`
		Ref    string `json:"ref"`
	}
	if err := c.get(ctx, "/v1/recharge/"+orderID.String(), &out); err != nil {
		return nil, err
	}
	return &ports.AggregatorResult{Status: ports.AggregatorStatus(out.Status), Ref: out.Ref}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build aggregator request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode aggregator request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build aggregator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures land here
		metrics.AggregatorErrors.Inc()
		return apperror.ErrExternalServiceUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Bytes("body", body).
			Str("path", req.URL.Path).Msg("aggregator returned server error")
		metrics.AggregatorErrors.Inc()
		return apperror.ErrExternalServiceUnavailable(
			fmt.Errorf("aggregator status %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("aggregator rejected request: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode aggregator response: %w", err)
	}
	return nil
}
