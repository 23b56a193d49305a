package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const defaultBodyLimit = 1 << 20 // 1MB

// BodyLimit caps the request body size. The limit is a size string such as
// "1M", "512K", or a bare byte count; unparseable values fall back to 1MB.
// Requests over the cap get 413. Content-Length is checked up front, and the
// body reader is capped as well for chunked or lying clients.
func BodyLimit(limit string) echo.MiddlewareFunc {
	max := parseSize(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > max {
				return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
					"message": fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", max),
				})
			}

			req.Body = &cappedBody{inner: req.Body, remaining: max}
			return next(c)
		}
	}
}

// cappedBody errors once more than the allowed bytes have been read.
type cappedBody struct {
	inner     io.ReadCloser
	remaining int64
	exceeded  bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.exceeded {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	// One byte past the cap is enough to detect overflow.
	if max := b.remaining + 1; int64(len(p)) > max {
		p = p[:max]
	}

	n, err := b.inner.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		b.exceeded = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}

func (b *cappedBody) Close() error {
	return b.inner.Close()
}

// parseSize converts "1M" / "512K" / "2G" / "4096" into bytes.
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultBodyLimit
	}

	var unit int64 = 1
	switch {
	case strings.HasSuffix(s, "G"), strings.HasSuffix(s, "GB"):
		unit = 1 << 30
		s = strings.TrimRight(s, "GB")
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "MB"):
		unit = 1 << 20
		s = strings.TrimRight(s, "MB")
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "KB"):
		unit = 1 << 10
		s = strings.TrimRight(s, "KB")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultBodyLimit
	}
	return n * unit
}
