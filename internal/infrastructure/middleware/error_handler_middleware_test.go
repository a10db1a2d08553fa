package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cctvdash/internal/core/domain"
	apperrors "cctvdash/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{fmt.Errorf("select: %w", domain.ErrCameraNotFound), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{domain.ErrEmployeeNotFound, http.StatusNotFound, apperrors.ErrCodeNotFound},
		{fmt.Errorf("add camera: %w: cam1", domain.ErrDuplicateCamera), http.StatusConflict, apperrors.ErrCodeConflict},
		{domain.ErrDuplicateEmployee, http.StatusConflict, apperrors.ErrCodeConflict},
		{domain.ErrDashboardStopped, http.StatusServiceUnavailable, apperrors.ErrCodeServiceUnavailable},
		{fmt.Errorf("toggle ai: %w", domain.ErrBackendUnavailable), http.StatusBadGateway, apperrors.ErrCodeBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, apperrors.ErrCodeTimeout},
		{apperrors.NewInvalidInputError("bad"), http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			appErr := ToAppError(tt.err)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(domain.ErrCameraNotFound)
	})
	router.GET("/panic", RecoveryMiddleware(zap.NewNop().Sugar()), func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/missing", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error"])
	assert.Equal(t, "camera not found", body["message"])

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
