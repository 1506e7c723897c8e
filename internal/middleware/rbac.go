package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-record-api/internal/models"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
	"github.com/noah-isme/student-record-api/pkg/response"
)

// RoleSelf grants access when the route targets the caller's own record.
const RoleSelf = "SELF"

var selfParams = []string{"id", "studentId"}

// RBAC enforces role-based access control for routes. RoleSelf matches the
// :id or :studentId path parameter against the caller.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == RoleSelf {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			for _, param := range selfParams {
				if targetID := c.Param(param); targetID != "" && targetID == claims.UserID {
					c.Next()
					return
				}
			}
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not authorized for this resource"))
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
