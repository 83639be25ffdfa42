package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "parkspot/internal/errors"
	"parkspot/internal/logging"
	"parkspot/internal/metrics"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RateLimiter is a fixed-window limiter keyed by client address. Counters live
// in Redis so every server instance shares them.
type RateLimiter struct {
	limit    int
	window   time.Duration
	prefix   string
	failOpen bool
	incr     func(ctx context.Context, key string) (int64, error)
}

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	rl := &RateLimiter{limit: limit, window: window, prefix: prefix, failOpen: true}
	rl.incr = func(ctx context.Context, key string) (int64, error) {
		res, err := fixedWindowScript.Run(ctx, rdb, []string{key}, rl.window.Milliseconds()).Result()
		if err != nil {
			return 0, err
		}
		return toInt64(res)
	}
	return rl
}

// FailClosed makes the limiter reject requests with 503 when Redis errors.
// By default requests pass through.
func (rl *RateLimiter) FailClosed() *RateLimiter {
	rl.failOpen = false
	return rl
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		window := time.Now().UnixMilli() / rl.window.Milliseconds()
		key := rl.prefix + ":" + clientKey(r) + ":" + strconv.FormatInt(window, 10)

		count, err := rl.incr(r.Context(), key)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("rate limiter unavailable")
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			apperrors.WriteError(w, apperrors.ErrUnavailable("rate limiter unavailable"))
			return
		}
		if count > int64(rl.limit) {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			apperrors.WriteError(w, apperrors.NewHTTPError(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", v)
	}
}

func clientKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
