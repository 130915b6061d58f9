package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "404")))
}

func TestCountersAndExposition(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveCheckout(OutcomeSuccess)
	m.ObserveCheckout(OutcomeSuccess)
	m.ObserveCheckout(OutcomeEmptyCart)
	m.AddReservedUnits(3)
	m.AddReservedUnits(-1)
	m.ObserveLowStock()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReservedUnits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LowStock))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "lpg_checkout_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheckout(OutcomeError)
		m.AddReservedUnits(1)
		m.ObserveLowStock()
	})
}
