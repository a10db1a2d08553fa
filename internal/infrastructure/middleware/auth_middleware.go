package middleware

import (
	"errors"
	"strings"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/services"
	apperrors "cctvdash/pkg/errors"
	"cctvdash/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyClaims   = "claims"
	ContextKeyOperator = "operator"
)

// AuthMiddleware requires a valid bearer token and stores its claims on the
// gin context.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithAppError(c, apperrors.NewUnauthorizedError("authorization header required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abortWithAppError(c, apperrors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			abortWithAppError(c, apperrors.NewUnauthorizedError(err.Error()))
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyOperator, claims.Operator)
		c.Request = c.Request.WithContext(logger.WithOperator(c.Request.Context(), claims.Operator))
		c.Next()
	}
}

// RequireRole rejects requests whose token does not grant role. It must run
// after AuthMiddleware.
func RequireRole(authService services.AuthService, role domain.OperatorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextKeyClaims)
		claims, ok := value.(*services.Claims)
		if !exists || !ok {
			abortWithAppError(c, apperrors.NewUnauthorizedError("authentication required"))
			return
		}

		if err := authService.Authorize(claims, role); err != nil {
			if errors.Is(err, services.ErrForbidden) {
				abortWithAppError(c, apperrors.NewForbiddenError("insufficient permissions"))
				return
			}
			abortWithAppError(c, apperrors.NewUnauthorizedError(err.Error()))
			return
		}
		c.Next()
	}
}

func abortWithAppError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}
