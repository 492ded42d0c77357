package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	ratelimitsvc "github.com/trezcool/darasa/services/ratelimit"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// rateLimitMiddleware counts hits per client IP and route.
// Limiter failures let the request through.
func rateLimitMiddleware(limiter ratelimitsvc.Limiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil {
				return next(ctx)
			}
			key := ctx.RealIP() + ":" + ctx.Path()
			ok, err := limiter.Allow(ctx.Request().Context(), key)
			if err != nil {
				logger.Warn("checking rate limit", err, map[string]interface{}{"key": key})
				return next(ctx)
			}
			if !ok {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
