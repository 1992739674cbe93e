package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/barbershop-booking/internal/config"
)

// bucketScript refills the bucket for the time elapsed since the last call
// and takes one token.  State lives in a hash {tokens, ts}.  Replies with
// {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local cap      = tonumber(ARGV[2])
local per_ms   = tonumber(ARGV[3]) / tonumber(ARGV[4])
local now      = tonumber(ARGV[1])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens') or cap)
local ts     = tonumber(redis.call('HGET', KEYS[1], 'ts') or now)
tokens = math.min(cap, tokens + math.max(0, now - ts) * per_ms)

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / per_ms)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[5]))
return { allowed, math.floor(tokens), wait }
`)

// bucketReply is the decoded answer of bucketScript.
type bucketReply struct {
	Allowed   bool
	Remaining int64
	RetryIn   time.Duration
}

var errBadReply = errors.New("unexpected rate limiter reply")

func parseBucketReply(v any) (bucketReply, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return bucketReply{}, fmt.Errorf("%w: %#v", errBadReply, v)
	}
	n := make([]int64, 3)
	for i, x := range arr {
		switch t := x.(type) {
		case int64:
			n[i] = t
		case string:
			p, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return bucketReply{}, fmt.Errorf("%w: %q", errBadReply, t)
			}
			n[i] = p
		default:
			return bucketReply{}, fmt.Errorf("%w: %#v", errBadReply, x)
		}
	}
	return bucketReply{Allowed: n[0] == 1, Remaining: n[1], RetryIn: time.Duration(n[2]) * time.Millisecond}, nil
}

func take(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string) (bucketReply, error) {
	v, err := bucketScript.Run(ctx, rdb, []string{key},
		time.Now().UnixMilli(),
		cfg.Capacity,
		cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(),
		int64(cfg.TTL/time.Second),
	).Result()
	if err != nil {
		return bucketReply{}, err
	}
	return parseBucketReply(v)
}

// NewTokenBucket limits requests per key with a Redis token bucket.  Redis
// failures let the request through.  A disabled config or nil client
// yields a pass-through middleware.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = slog.Default()
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			ctx := c.Request().Context()

			r, err := take(ctx, rdb, cfg, key)
			if err != nil {
				log.WarnContext(ctx, "rate limiter unavailable", "key", key, "err", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(r.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if r.Allowed {
				return next(c)
			}

			secs := int((r.RetryIn + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.InfoContext(ctx, "rate limited", "key", key, "retry_in", r.RetryIn.String())
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"errors": echo.Map{"request": echo.Map{
					"code":    "rate_limited",
					"message": "Demasiadas solicitudes. Inténtalo de nuevo más tarde.",
				}},
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey joins the parts named by cfg.KeyStrategy ("ip", "user",
// "route", combined with "_").  An empty or unknown strategy uses all
// three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	add := func(kind string) bool {
		switch kind {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", identity(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		default:
			return false
		}
		return true
	}
	for _, kind := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		if !add(kind) {
			parts = parts[:1]
			add("ip")
			add("user")
			add("route")
			break
		}
	}
	return strings.Join(parts, ":")
}
