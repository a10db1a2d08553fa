package middleware

import (
	"context"
	"errors"
	"net/http"

	"cctvdash/internal/core/domain"
	apperrors "cctvdash/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware handles application errors and returns appropriate HTTP responses
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := ToAppError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("Request failed",
				"code", appErr.Code,
				"error", err,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		} else {
			logger.Debugw("Request rejected",
				"code", appErr.Code,
				"message", appErr.Message,
				"path", c.Request.URL.Path,
			)
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// ToAppError maps domain and transport errors onto API errors.
func ToAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrCameraNotFound):
		return apperrors.NewNotFoundError("camera")
	case errors.Is(err, domain.ErrEmployeeNotFound):
		return apperrors.NewNotFoundError("employee")
	case errors.Is(err, domain.ErrDuplicateCamera), errors.Is(err, domain.ErrDuplicateEmployee):
		return apperrors.NewConflictError(err.Error())
	case errors.Is(err, domain.ErrLookupRateLimited):
		return apperrors.NewRateLimitError()
	case errors.Is(err, domain.ErrDashboardStopped), errors.Is(err, domain.ErrPushNotConnected):
		return apperrors.NewServiceUnavailableError(err.Error())
	case errors.Is(err, domain.ErrBackendUnavailable):
		return apperrors.NewBadGatewayError("backend request failed", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("request timed out")
	default:
		return apperrors.WrapError(err, apperrors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("Panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
