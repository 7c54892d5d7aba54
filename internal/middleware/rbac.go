package middleware

import (
	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/services"

	"github.com/labstack/echo/v4"
)

type RBACMiddleware struct {
	authService services.AuthService
}

func NewRBACMiddleware(authService services.AuthService) *RBACMiddleware {
	return &RBACMiddleware{
		authService: authService,
	}
}

// RequireCapability must run after JWTMiddleware.
func (m *RBACMiddleware) RequireCapability(capability models.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := common.GetUserFromContext(c.Request().Context())
			if !ok {
				return common.NewUnauthenticatedError("Authentication required")
			}
			if !m.authService.HasCapability(user, capability) {
				return common.NewForbiddenError("Insufficient permissions")
			}
			return next(c)
		}
	}
}
