package middleware

import (
	"github.com/labstack/echo/v4"
)

const HeaderAPIVersion = "X-API-Version"

// VersionMiddleware stamps every response with the running API version.
type VersionMiddleware struct {
	version string
}

func NewVersionMiddleware(version string) *VersionMiddleware {
	return &VersionMiddleware{version: version}
}

// VersionHeader sets the header before the handler runs so error responses
// carry it too.
func (vm *VersionMiddleware) VersionHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderAPIVersion, vm.version)
			return next(c)
		}
	}
}

func (vm *VersionMiddleware) Version() string {
	return vm.version
}
