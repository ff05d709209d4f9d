package middleware

import (
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/wisercms/wiser-api/pkg/requestcontext"
)

// Logger emits one structured line per request. Health probes are skipped to
// keep the log readable. Runs after Context so the identity fields are set.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/health") {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			ctx := req.Context()
			logger.WithContext(ctx).WithFields(map[string]any{
				"request_id": requestcontext.GetRequestID(ctx),
				"tenant_id":  requestcontext.GetTenantID(ctx),
				"user_id":    requestcontext.GetUserID(ctx),
				"method":     req.Method,
				"route":      c.Path(),
				"uri":        req.RequestURI,
				"status":     c.Response().Status,
				"remote_ip":  c.RealIP(),
				"bytes_out":  c.Response().Size,
				"duration":   time.Since(start).String(),
			}).Info("Request")

			return nil
		}
	}
}
