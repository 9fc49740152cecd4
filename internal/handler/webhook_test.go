package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrell/selene/internal/domain"
	"github.com/mkrell/selene/internal/payment"
	"github.com/mkrell/selene/internal/service"
)

func checkoutCompletedPayload(orderID uuid.UUID, intentID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": "checkout.session.completed",
		"created": %d,
		"data": {
			"object": {
				"id": "cs_test_1",
				"payment_intent": "%s",
				"payment_method_types": ["card"],
				"metadata": {"order_id": "%s"}
			}
		}
	}`, time.Now().Unix(), intentID, orderID))
}

func paymentFailedPayload(intentID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_2",
		"type": "payment_intent.payment_failed",
		"created": %d,
		"data": {
			"object": {
				"id": "%s",
				"last_payment_error": {"code": "card_declined", "message": "Your card was declined."}
			}
		}
	}`, time.Now().Unix(), intentID))
}

func signedWebhookRequest(payload []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, payment.SignPayload(payload, time.Now(), testWebhookSecret))
	return req
}

// createPendingOrder drives a full checkout through the service so the
// webhook has a realistic order to reconcile.
func createPendingOrder(t *testing.T, s *testServer, productID uuid.UUID, qty int32) *service.CreateOrderResult {
	t.Helper()
	result, err := s.orders.CreateOrder(context.Background(), service.CreateOrderInput{
		Customer: domain.CustomerDetails{
			Name:       "Jonas Møller",
			Email:      "jonas@example.test",
			Phone:      "28123456",
			Address:    "Nyhavn 12",
			City:       "Copenhagen",
			PostalCode: "1050",
		},
		Items: []service.OrderItemInput{{ProductID: productID, Quantity: qty}},
	})
	require.NoError(t, err)
	return result
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	t.Run("confirms the order and decrements stock", func(t *testing.T) {
		s := newTestServer()
		p := s.seedProduct(1000, 10)
		created := createPendingOrder(t, s, p.ID, 3)

		rec := s.do(signedWebhookRequest(checkoutCompletedPayload(created.OrderID, "pi_test_1")))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())

		order, err := s.repo.GetOrder(context.Background(), created.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaymentConfirmed, order.Status)
		assert.Equal(t, "pi_test_1", order.Payment.PaymentID)

		got, err := s.catalog.GetProduct(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(7), got.StockQuantity)
	})

	t.Run("replayed delivery is acknowledged without a second decrement", func(t *testing.T) {
		s := newTestServer()
		p := s.seedProduct(1000, 10)
		created := createPendingOrder(t, s, p.ID, 2)

		payload := checkoutCompletedPayload(created.OrderID, "pi_test_1")
		for i := 0; i < 3; i++ {
			rec := s.do(signedWebhookRequest(payload))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		got, err := s.catalog.GetProduct(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(8), got.StockQuantity)
	})

	t.Run("unknown order id is acknowledged and logged", func(t *testing.T) {
		s := newTestServer()
		rec := s.do(signedWebhookRequest(checkoutCompletedPayload(uuid.New(), "pi_missing")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unhandled event types are acknowledged", func(t *testing.T) {
		s := newTestServer()
		payload := []byte(`{"id":"evt_x","type":"customer.created","data":{"object":{}}}`)
		rec := s.do(signedWebhookRequest(payload))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestWebhookPaymentFailed(t *testing.T) {
	t.Run("moves the order to PAYMENT_FAILED", func(t *testing.T) {
		s := newTestServer()
		p := s.seedProduct(1000, 5)
		created := createPendingOrder(t, s, p.ID, 1)

		rec := s.do(signedWebhookRequest(paymentFailedPayload("pi_test_1")))
		require.Equal(t, http.StatusOK, rec.Code)

		order, err := s.repo.GetOrder(context.Background(), created.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaymentFailed, order.Status)
		require.Len(t, order.Notes, 1)
		assert.Contains(t, order.Notes[0].Body, "card_declined")
	})

	t.Run("failure after confirmation leaves the order confirmed", func(t *testing.T) {
		s := newTestServer()
		p := s.seedProduct(1000, 5)
		created := createPendingOrder(t, s, p.ID, 1)

		rec := s.do(signedWebhookRequest(checkoutCompletedPayload(created.OrderID, "pi_test_1")))
		require.Equal(t, http.StatusOK, rec.Code)
		rec = s.do(signedWebhookRequest(paymentFailedPayload("pi_test_1")))
		require.Equal(t, http.StatusOK, rec.Code)

		order, err := s.repo.GetOrder(context.Background(), created.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaymentConfirmed, order.Status)
	})
}

func TestWebhookSignature(t *testing.T) {
	t.Run("missing signature is rejected with 400", func(t *testing.T) {
		s := newTestServer()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
		rec := s.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("tampered body is rejected with 403 and zero state change", func(t *testing.T) {
		s := newTestServer()
		p := s.seedProduct(1000, 10)
		created := createPendingOrder(t, s, p.ID, 2)

		payload := checkoutCompletedPayload(created.OrderID, "pi_test_1")
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
		// Signature computed over a different body.
		req.Header.Set(SignatureHeader, payment.SignPayload([]byte(`{}`), time.Now(), testWebhookSecret))
		rec := s.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		order, err := s.repo.GetOrder(context.Background(), created.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPendingPayment, order.Status)
		got, err := s.catalog.GetProduct(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(10), got.StockQuantity)
	})

	t.Run("stale timestamp is rejected", func(t *testing.T) {
		s := newTestServer()
		payload := []byte(`{"id":"evt_old","type":"checkout.session.completed","data":{"object":{}}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
		req.Header.Set(SignatureHeader, payment.SignPayload(payload, time.Now().Add(-time.Hour), testWebhookSecret))
		rec := s.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("verified but unparseable payload is still acknowledged", func(t *testing.T) {
		s := newTestServer()
		payload := []byte(`not json`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
		req.Header.Set(SignatureHeader, payment.SignPayload(payload, time.Now(), testWebhookSecret))
		rec := s.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	})
}
