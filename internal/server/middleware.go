package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/invobook/invobook/internal/auditctx"
	obsmetrics "github.com/invobook/invobook/internal/observability/metrics"
	"github.com/invobook/invobook/internal/tenantctx"
)

const (
	HeaderOrg       = "X-Org-ID"
	HeaderActor     = "X-Actor-ID"
	HeaderRequestID = "X-Request-ID"
)

// RequestContext threads request identity into the context: a request
// id, the caller's IP and user agent, and the acting user when the
// gateway forwards one.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Header(HeaderRequestID, requestID)

		ctx := auditctx.WithRequestID(c.Request.Context(), requestID)
		ctx = auditctx.WithIPAddress(ctx, c.ClientIP())
		ctx = auditctx.WithUserAgent(ctx, c.Request.UserAgent())
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx = auditctx.WithActor(ctx, "user", actor)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgRequired resolves the tenant from the X-Org-ID header. Every /v1
// route is tenant scoped.
func (s *Server) OrgRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID, err := parseSnowflake(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := tenantctx.WithOrgID(c.Request.Context(), int64(orgID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obsmetrics.HTTP().ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
