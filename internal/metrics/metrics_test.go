package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recording(t *testing.T) {
	m := New()

	m.CheckoutOutcome("created")
	m.CheckoutOutcome("created")
	m.CheckoutOutcome("insufficient_stock")
	m.WebhookOutcome("already_processed")
	m.ReservationResult(true)
	m.ReservationResult(false)
	m.OutboxResult("order.created", nil)
	m.OutboxResult("order.created", errors.New("broker down"))
	m.ObserveRequest("/api/orders", 201, StartTimer())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Webhooks.WithLabelValues("already_processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues("insufficient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxSent.WithLabelValues("order.created", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/orders", "201")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.CheckoutOutcome("created")
		m.WebhookOutcome("processed")
		m.ReservationResult(true)
		m.OutboxResult("order.created", nil)
		m.ObserveRequest("/", 200, StartTimer())
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.WebhookOutcome("processed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `checkout_payment_webhooks_total{outcome="processed"} 1`)
}

func TestTimer(t *testing.T) {
	timer := StartTimer()
	time.Sleep(2 * time.Millisecond)

	assert.GreaterOrEqual(t, timer.Duration(), 2*time.Millisecond)
	assert.GreaterOrEqual(t, timer.Milliseconds(), 2.0)
}
