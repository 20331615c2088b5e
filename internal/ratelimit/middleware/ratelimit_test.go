package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/ratelimit/models"
	"etatcivil/internal/ratelimit/store/bucket"
	"etatcivil/pkg/platform/middleware/metadata"
	"etatcivil/pkg/testutil"
)

var rules = map[models.EndpointClass]models.Rule{
	models.ClassAuth: {Limit: 2, Window: time.Minute},
}

func newHandler(store BucketStore, opts ...Option) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := New(store, rules, logger, opts...)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	mux := http.NewServeMux()
	mux.Handle("/auth/login", limiter.RateLimit(models.ClassAuth)(ok))
	mux.Handle("/webhook", limiter.RateLimit(models.EndpointClass("export"))(ok))
	return metadata.ClientMetadata(mux)
}

func fromIP(t *testing.T, path, ip string) *http.Request {
	req := testutil.NewRequest(t, http.MethodPost, path)
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func TestRateLimit(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := newHandler(bucket.NewInMemoryBucketStore(), WithMetrics(m))

	for i := range 2 {
		rr := testutil.DoRequest(h, fromIP(t, "/auth/login", "203.0.113.7"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"1", "0"}[i], rr.Header().Get("X-RateLimit-Remaining"))
	}

	rr := testutil.DoRequest(h, fromIP(t, "/auth/login", "203.0.113.7"))
	env := testutil.AssertFailure(t, rr, http.StatusTooManyRequests)
	assert.Equal(t, "Trop de requêtes, veuillez réessayer plus tard", env.Message)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RateLimited.WithLabelValues("auth")))

	t.Run("other clients keep their budget", func(t *testing.T) {
		rr := testutil.DoRequest(h, fromIP(t, "/auth/login", "198.51.100.4"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
	})

	t.Run("classes without a rule pass through", func(t *testing.T) {
		for range 5 {
			rr := testutil.DoRequest(h, fromIP(t, "/webhook", "203.0.113.7"))
			testutil.AssertStatus(t, rr, http.StatusNoContent)
			assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
		}
	})
}

type brokenStore struct{}

func (brokenStore) Allow(context.Context, string, models.Rule) (*models.Result, error) {
	return nil, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := newHandler(brokenStore{})
	for range 3 {
		rr := testutil.DoRequest(h, fromIP(t, "/auth/login", "203.0.113.7"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := newHandler(bucket.NewInMemoryBucketStore(), WithDisabled(true))
	for range 3 {
		rr := testutil.DoRequest(h, fromIP(t, "/auth/login", "203.0.113.7"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
	}
}
