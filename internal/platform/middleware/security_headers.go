package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// apiHeaders apply to every response of the JSON API.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	// responses carry personal data
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets the API header set. A positive hstsMaxAge also sends
// Strict-Transport-Security; leave it zero when the server is reached over
// plain HTTP, as in development.
func SecurityHeaders(hstsMaxAge time.Duration) echo.MiddlewareFunc {
	hsts := ""
	if hstsMaxAge > 0 {
		hsts = "max-age=" + strconv.FormatInt(int64(hstsMaxAge/time.Second), 10)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}
			return next(c)
		}
	}
}
