package middleware

import (
	"strings"

	"facilityops/internal/common"
	"facilityops/internal/services"

	"github.com/labstack/echo/v4"
)

// JWTMiddleware authenticates the bearer token and stores the loaded user on
// the request context.
func JWTMiddleware(authService services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}

			user, err := authService.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			ctx := common.WithUser(c.Request().Context(), user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", common.NewUnauthenticatedError("Missing bearer token")
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", common.NewUnauthenticatedError("Invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}
