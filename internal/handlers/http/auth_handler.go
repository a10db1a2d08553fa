package http

import (
	"net/http"
	"time"

	"cctvdash/internal/core/services"
	"cctvdash/internal/infrastructure/middleware"
	"cctvdash/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthHandler exposes the caller's identity and renews tokens. Tokens are
// first minted out of band with the token command.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates the token inspection handler.
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/auth", middleware.AuthMiddleware(h.authService))
	{
		api.GET("/whoami", h.WhoAmI)
		api.POST("/refresh", h.RefreshToken)
	}
}

func (h *AuthHandler) WhoAmI(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	resp := gin.H{
		"operator": claims.Operator,
		"role":     claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp["expires_at"] = claims.ExpiresAt.Time
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshToken issues a new token with the same operator and role.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	token, err := h.authService.GenerateToken(claims.Operator, claims.Role)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	resp := gin.H{"access_token": token}
	if fresh, err := h.authService.ValidateToken(token); err == nil && fresh.ExpiresAt != nil {
		resp["expires_in"] = int(time.Until(fresh.ExpiresAt.Time) / time.Second)
	}
	c.JSON(http.StatusOK, resp)
}

func claimsFrom(c *gin.Context) (*services.Claims, bool) {
	value, exists := c.Get(middleware.ContextKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*services.Claims)
	return claims, ok && claims != nil
}
