package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-record-api/internal/middleware"
	"github.com/noah-isme/student-record-api/internal/models"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
	"github.com/noah-isme/student-record-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil
	}
	return claims
}

// identityFromContext writes a 401 and returns false when the request is unauthenticated.
func identityFromContext(c *gin.Context) (models.Identity, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return claims.Identity(), true
}

func queryBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && value
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
