package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sevapay/config"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"
	"sevapay/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.AggregatorConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	}, logger.New("error", false))
}

func TestClient_Submit_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/recharge", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AIRTEL", body["operator_code"])

		json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS", "ref": "AGG-1"})
	}))

	result, err := client.Submit(context.Background(), ports.AggregatorSubmitRequest{
		OrderID:      uuid.New(),
		OperatorCode: "AIRTEL",
		TargetNumber: "9876543210",
		Amount:       19900,
	})
	require.NoError(t, err)
	assert.Equal(t, ports.AggregatorStatusSuccess, result.Status)
	assert.Equal(t, "AGG-1", result.Ref)
}

func TestClient_Submit_ServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Submit(context.Background(), ports.AggregatorSubmitRequest{
		OrderID: uuid.New(), OperatorCode: "JIO", TargetNumber: "9876543210", Amount: 9900,
	})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "EXT_001", appErr.Code)
}

func TestClient_Submit_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.AggregatorConfig{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	}, logger.New("error", false))

	_, err := client.Submit(context.Background(), ports.AggregatorSubmitRequest{
		OrderID: uuid.New(), OperatorCode: "JIO", TargetNumber: "9876543210", Amount: 9900,
	})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "EXT_001", appErr.Code)
}

func TestClient_DetectOperator(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9876543210", r.URL.Query().Get("number"))
		json.NewEncoder(w).Encode(map[string]any{"operator_code": "AIRTEL", "circle_code": "DL"})
	}))

	hint, err := client.DetectOperator(context.Background(), "9876543210")
	require.NoError(t, err)
	require.NotNil(t, hint)
	assert.Equal(t, "AIRTEL", hint.OperatorCode)
	require.NotNil(t, hint.CircleCode)
	assert.Equal(t, "DL", *hint.CircleCode)
}

func TestClient_DetectOperator_FailureIsNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	hint, err := client.DetectOperator(context.Background(), "9876543210")
	assert.NoError(t, err)
	assert.Nil(t, hint, "detection failure must not block the purchase flow")
}

func TestClient_ListPlans(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AIRTEL", r.URL.Query().Get("operator"))
		assert.Equal(t, "DL", r.URL.Query().Get("circle"))
		json.NewEncoder(w).Encode(map[string]any{
			"plans": []map[string]any{
				{"amount": 19900, "validity": "28 days", "description": "1.5GB/day", "category": "data"},
			},
		})
	}))

	circle := "DL"
	plans, err := client.ListPlans(context.Background(), "AIRTEL", &circle)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, int64(19900), plans[0].Amount)
}

func TestClient_FetchBill(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"customer_name": "A Kumar",
			"due_amount":    145000,
			"due_date":      time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
			"ref_id":        "BILL-777",
		})
	}))

	bill, err := client.FetchBill(context.Background(), "BSES", "K1234567")
	require.NoError(t, err)
	assert.Equal(t, int64(145000), bill.DueAmount)
	assert.Equal(t, "BILL-777", bill.RefID)
}

func TestClient_CheckStatus(t *testing.T) {
	orderID := uuid.New()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/recharge/"+orderID.String(), r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "PENDING", "ref": "AGG-9"})
	}))

	result, err := client.CheckStatus(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, ports.AggregatorStatusPending, result.Status)
}
