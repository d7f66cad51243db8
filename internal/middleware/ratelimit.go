package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/ratelimit"
)

// RateLimitConfig configures one rate-limited route group.
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	Rule    ratelimit.Rule
	Logger  *slog.Logger
	Metrics metrics.Recorder
	// KeyFunc derives the bucket key. Defaults to the client IP.
	KeyFunc func(r *http.Request) string
}

// RateLimit rejects requests over cfg.Rule with 429 and Retry-After. Limiter
// errors are logged and the request is let through.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}

	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)

			result, err := cfg.Limiter.Allow(r.Context(), cfg.Rule, key)
			if err != nil {
				cfg.Logger.Error("rate_limit_check_failed",
					slog.String("rule", cfg.Rule.Name),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.Rule.Burst, result.Remaining, result.ResetAt)

			if !result.Allowed {
				retryAfter := retryAfterSeconds(result.RetryAfter)
				cfg.Metrics.IncRateLimited(cfg.Rule.Name)
				cfg.Logger.Warn("rate_limited",
					slog.String("rule", cfg.Rule.Name),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", retryAfter),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, model.ErrRateLimited.WithMessage(
					"rate limit exceeded, retry after "+strconv.Itoa(retryAfter)+" seconds"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if !resetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
