package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wisercms/wiser-api/pkg/requestcontext"
)

// Identity headers set by the gateway in front of this service.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// Context copies the identity headers and request metadata into the request
// context, where handlers and the merge engine read them. A request id is
// minted when the caller did not send one, and echoed back in the response.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := requestcontext.SetRequestID(req.Context(), requestID)
			ctx = requestcontext.SetMethod(ctx, req.Method)
			ctx = requestcontext.SetRoute(ctx, req.URL.Path)
			ctx = requestcontext.SetRemoteIP(ctx, c.RealIP())
			ctx = requestcontext.SetTenantID(ctx, req.Header.Get(HeaderTenantID))
			ctx = requestcontext.SetUserID(ctx, req.Header.Get(HeaderUserID))
			ctx = requestcontext.SetUserName(ctx, req.Header.Get(HeaderUserName))
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
