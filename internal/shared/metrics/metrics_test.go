package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/ethbet-relay/internal/shared/metrics"
)

func TestRelayCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.NewRelay(reg)

	r.Submissions.WithLabelValues("call").Inc()
	r.Submissions.WithLabelValues("call").Inc()
	r.LockContention.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Submissions.WithLabelValues("call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LockContention))
}

func TestHandler_Healthz(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewRelay(reg).Reconciled.Inc()

	ok := metrics.Handler(reg, map[string]metrics.HealthFunc{
		"postgres": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "bet_relay_reconciled_total 1"))

	bad := metrics.Handler(reg, map[string]metrics.HealthFunc{
		"redis": func(context.Context) error { return errors.New("down") },
	})
	rec = httptest.NewRecorder()
	bad.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}
