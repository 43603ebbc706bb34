package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Allower decides whether a keyed request may proceed.
type Allower interface {
	Allow(key string) bool
}

// RateLimit rejects requests when the limiter refuses the client IP for the
// matched route. deny writes the rejection body; nil answers a bare 429.
func RateLimit(a Allower, deny echo.HandlerFunc) echo.MiddlewareFunc {
	if deny == nil {
		deny = func(c echo.Context) error { return c.NoContent(http.StatusTooManyRequests) }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if a == nil {
				return next(c)
			}
			if !a.Allow(c.RealIP() + "|" + c.Path()) {
				c.Response().Header().Set("Retry-After", "1")
				return deny(c)
			}
			return next(c)
		}
	}
}
