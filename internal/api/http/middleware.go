package http

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taskhub/task-auth-service/internal/config"
	"github.com/taskhub/task-auth-service/internal/ids"
	"github.com/taskhub/task-auth-service/internal/observability"
	apperrors "github.com/taskhub/task-auth-service/pkg/util"
)

// RegisterMiddlewares attaches global middlewares: request ids, access
// logging, error rendering, timeouts and per-client rate limiting.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration, limits config.RateLimitConfig) {
	app.Use(requestid.New(requestid.Config{Generator: ids.New}))
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	if limits.PerSecond > 0 {
		app.Use(newClientRateLimiter(limits.PerSecond, limits.Burst).Handle)
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

const limiterIdleTTL = 5 * time.Minute

type clientBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientRateLimiter keeps one token bucket per client IP. Idle buckets are
// swept lazily on the request path.
type clientRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	perSecond rate.Limit
	burst     int
	lastSweep time.Time
}

func newClientRateLimiter(perSecond, burst int) *clientRateLimiter {
	if burst <= 0 {
		burst = perSecond
	}
	return &clientRateLimiter{
		buckets:   make(map[string]*clientBucket),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *clientRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *clientRateLimiter) Handle(c *fiber.Ctx) error {
	if !l.allow(c.IP(), time.Now()) {
		return apperrors.NewTooManyRequests("rate limit exceeded")
	}
	return c.Next()
}
