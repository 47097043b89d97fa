package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/pkg/outcome"
)

// RequestTimeout sets a deadline on each request context. Repositories stop
// waiting once it passes; a handler that fails with context.DeadlineExceeded
// is answered with 504 unless it already wrote a response.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			expired := errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded
			if err != nil && expired && !c.Response().Committed {
				return c.JSON(http.StatusGatewayTimeout,
					outcome.Fail("request processing exceeded the allowed time limit", err))
			}
			return err
		}
	}
}
