package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/models"
)

const auditResourceKey = "audit_resource_id"

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResourceID names the affected record when the route has no id parameter,
// as with creates.
func SetAuditResourceID(c *gin.Context, id string) {
	c.Set(auditResourceKey, id)
}

// Audit records an audit log after every successful request.
func Audit(repo AuditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if repo == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := ClaimsFromContext(c); ok {
			id := claims.UserID
			userID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"query":   c.Request.URL.RawQuery,
			"latency": time.Since(start).Milliseconds(),
		})

		entry := &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: auditResourceID(c),
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}
		if err := repo.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func auditResourceID(c *gin.Context) *string {
	if value, ok := c.Get(auditResourceKey); ok {
		if id, ok := value.(string); ok && id != "" {
			return &id
		}
	}
	for _, param := range []string{"id", "studentId"} {
		if id := c.Param(param); id != "" {
			return &id
		}
	}
	return nil
}
