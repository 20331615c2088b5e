// Package middleware throttles endpoints per client IP.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/ratelimit/models"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

const limitedMessage = "Trop de requêtes, veuillez réessayer plus tard"

// BucketStore is satisfied by the in-memory and Redis bucket stores.
type BucketStore interface {
	Allow(ctx context.Context, key string, rule models.Rule) (*models.Result, error)
}

type Middleware struct {
	store    BucketStore
	rules    map[models.EndpointClass]models.Rule
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through (local demos, load tests).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(store BucketStore, rules map[models.EndpointClass]models.Rule, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		rules:  rules,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests of the given class per client IP. Classes without
// a rule pass through. A store failure lets the request through.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		rule, ok := m.rules[class]
		if m.disabled || !ok || rule.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			result, err := m.store.Allow(ctx, models.Key(class, requestcontext.ClientIP(ctx)), rule)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
					"error", err.Error(),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.IncRateLimited(string(class))
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Envelope{Message: limitedMessage})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
