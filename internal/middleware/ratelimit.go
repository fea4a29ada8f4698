package middleware

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/carpool-reservation/internal/config"
)

// bucketScript refills and spends tokens atomically.
// KEYS[1] bucket hash; ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s, cost.
// Returns {allowed, tokens_left, retry_after_ms}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])
local cost = tonumber(ARGV[6])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
    tokens = capacity
    last = now
end

local steps = math.floor(math.max(0, now - last) / interval)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    last = last + steps * interval
end

local allowed = 0
local retry = 0
if tokens >= cost then
    allowed = 1
    tokens = tokens - cost
else
    local need = math.ceil((cost - tokens) / refill)
    retry = need * interval - (now - last)
    if retry < 0 then retry = 0 end
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last)
redis.call('EXPIRE', key, ttl)
return {allowed, tokens, retry}
`)

var errBucketReply = errors.New("ratelimit: unexpected script reply")

// Decision is the outcome of one TokenBucket.Take.
type Decision struct {
    Allowed    bool
    Remaining  int64
    RetryAfter time.Duration
}

// TokenBucket keeps one bucket per key in a Redis hash.
type TokenBucket struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
}

// Take spends cost tokens from the bucket behind key.  Cost is clamped to
// [1, capacity] so a request can always succeed on a full bucket.
func (b *TokenBucket) Take(ctx context.Context, key string, cost int, now time.Time) (Decision, error) {
    if cost < 1 {
        cost = 1
    }
    if cost > b.cfg.Capacity {
        cost = b.cfg.Capacity
    }
    refill, interval, ttl := b.cfg.RefillTokens, b.cfg.RefillInterval.Milliseconds(), int64(b.cfg.TTL/time.Second)
    if refill < 1 {
        refill = 1
    }
    if interval < 1 {
        interval = 1000
    }
    if ttl < 1 {
        ttl = 1
    }
    vals, err := bucketScript.Run(ctx, b.rdb, []string{key},
        now.UnixMilli(), b.cfg.Capacity, refill, interval, ttl, cost).Int64Slice()
    if err != nil {
        return Decision{}, err
    }
    if len(vals) != 3 {
        return Decision{}, errBucketReply
    }
    return Decision{
        Allowed:    vals[0] == 1,
        Remaining:  vals[1],
        RetryAfter: time.Duration(vals[2]) * time.Millisecond,
    }, nil
}

// NewTokenBucket rate limits requests per key.  Writes (anything but GET,
// HEAD and OPTIONS) cost cfg.WriteCost tokens, so booking storms drain a
// bucket faster than browsing.  Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passthrough
    }
    bucket := &TokenBucket{cfg: cfg, rdb: rdb}

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            cost := 1
            if isWrite(c.Request().Method) {
                cost = cfg.WriteCost
            }
            d, err := bucket.Take(c.Request().Context(), key, cost, time.Now())
            if err != nil {
                if cfg.Debug {
                    c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
                }
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if d.Allowed {
                return next(c)
            }

            secs := int((d.RetryAfter + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                c.Logger().Infof("[ratelimit] block key=%s cost=%d retry=%s", key, cost, d.RetryAfter)
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too_many_requests",
                "message":     "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

func isWrite(method string) bool {
    switch method {
    case http.MethodGet, http.MethodHead, http.MethodOptions:
        return false
    }
    return true
}

// rateKey joins the parts named by cfg.KeyStrategy, an underscore separated
// list of ip, user and route (e.g. "ip_route").  Unknown or empty
// strategies use all three.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    for _, p := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
        switch p {
        case "ip":
            ip := c.RealIP()
            if ip == "" {
                ip = "unknown"
            }
            parts = append(parts, "ip", ip)
        case "user":
            parts = append(parts, "user", userKey(c))
        case "route":
            parts = append(parts, "route", c.Request().Method+" "+c.Path())
        }
    }
    if len(parts) == 1 {
        return rateKey(config.RateLimitConfig{Prefix: cfg.Prefix, KeyStrategy: "ip_user_route"}, c)
    }
    return strings.Join(parts, ":")
}
