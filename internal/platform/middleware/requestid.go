package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header used to propagate request correlation IDs.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns each request a correlation ID.
// An ID supplied by the client in X-Request-ID is preserved; otherwise a new
// one is generated. The ID is stored on the echo context under "request_id"
// and echoed back in the response header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}
