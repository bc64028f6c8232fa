package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/perq/pkg/tenantctx"
	"go.uber.org/zap"
)

func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
			log.Warn("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

// TenantContext resolves the calling tenant from the X-Tenant-ID header or the
// tenant_id query parameter. Routes that need no tenant (webhooks) pass through
// untouched.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Tenant-ID"))
		if raw == "" {
			raw = strings.TrimSpace(c.Query("tenant_id"))
		}
		if raw != "" {
			if id, err := snowflake.ParseString(raw); err == nil && id != 0 {
				ctx := tenantctx.WithTenantID(c.Request.Context(), id)
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}

func (s *Server) tenantID(c *gin.Context) string {
	if id, ok := tenantctx.TenantID(c.Request.Context()); ok {
		return id.String()
	}
	return ""
}
