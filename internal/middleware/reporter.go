package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
	"github.com/noah-isme/student-record-api/pkg/reporter"
	"github.com/noah-isme/student-record-api/pkg/response"
)

// ReportErrors recovers panics and forwards every 5xx error to the reporter.
func ReportErrors(rep reporter.Reporter, logger *zap.Logger) gin.HandlerFunc {
	if rep == nil {
		rep = reporter.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				logger.Error("request panicked", zap.String("path", c.Request.URL.Path), zap.Error(err), zap.Stack("stack"))
				rep.Report(c.Request, err)
				if !c.Writer.Written() {
					response.Error(c, appErrors.ErrInternal)
				}
				c.Abort()
			}
		}()

		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError {
			return
		}
		for _, ginErr := range c.Errors {
			logger.Error("request failed", zap.String("path", c.FullPath()), zap.Int("status", c.Writer.Status()), zap.Error(ginErr.Err))
			rep.Report(c.Request, ginErr.Err)
		}
	}
}
