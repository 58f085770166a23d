package echoapi

import (
	"crypto/subtle"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const apiKeyHeader = "apikey"

// apiKeyMiddleware rejects requests that do not carry the project's anon key.
// An empty key disables the check.
func apiKeyMiddleware(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if key == "" {
				return next(ctx)
			}
			got := ctx.Request().Header.Get(apiKeyHeader)
			if got == "" {
				got = ctx.QueryParam(apiKeyHeader)
			}
			if got == "" {
				return errMissingAPIKey
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return errInvalidAPIKey
			}
			return next(ctx)
		}
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// rateLimiter throttles a route per client IP. Idle entries are swept on access.
type rateLimiter struct {
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limit:           limit,
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		clients:         make(map[string]*clientLimiter),
		lastSweep:       nowFunc(),
	}
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := nowFunc()
	if now.Sub(rl.lastSweep) > rl.cleanupInterval {
		for k, cl := range rl.clients {
			if now.Sub(cl.lastAccess) > 2*rl.cleanupInterval {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastAccess = now
	return cl.limiter
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.get(ctx.RealIP()).Allow() {
				if rl.limit != rate.Inf && rl.limit > 0 {
					retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
					if retryAfter < 1 {
						retryAfter = 1
					}
					ctx.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
