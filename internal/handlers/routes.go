package handlers

import (
	"facilityops/internal/middleware"
	"facilityops/internal/models"
	"facilityops/internal/services"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Handlers bundles every handler group mounted by RegisterRoutes.
type Handlers struct {
	Auth       *AuthHandlers
	Users      *UserHandlers
	WorkOrders *WorkOrderHandlers
	Health     *HealthHandlers
}

// RegisterRoutes mounts the public API. Literal work order paths are added
// before /:id so they are never parsed as ids.
func RegisterRoutes(e *echo.Echo, h Handlers, authService services.AuthService) {
	authenticated := middleware.JWTMiddleware(authService)
	rbac := middleware.NewRBACMiddleware(authService)
	requires := func(c models.Capability) []echo.MiddlewareFunc {
		return []echo.MiddlewareFunc{authenticated, rbac.RequireCapability(c)}
	}

	e.GET("/health", h.Health.LivenessCheck)
	e.GET("/health/ready", h.Health.ReadinessCheck)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.GET("/me", h.Auth.Me, authenticated)
	auth.PUT("/update", h.Auth.UpdateProfile, authenticated)
	auth.DELETE("/me", h.Auth.DeleteMe, authenticated)

	manageUsers := requires(models.CapUsersManage)
	auth.GET("/users", h.Users.ListUsers, manageUsers...)
	auth.POST("/users", h.Users.CreateUser, manageUsers...)
	auth.GET("/users/report", h.Users.UsersReport, manageUsers...)
	auth.GET("/users/:id", h.Users.GetUser, manageUsers...)
	auth.PUT("/users/:id", h.Users.UpdateUser, manageUsers...)
	auth.DELETE("/users/:id", h.Users.DeleteUser, manageUsers...)

	read := requires(models.CapWorkOrdersRead)
	write := requires(models.CapWorkOrdersWrite)
	export := requires(models.CapReportsExport)

	wo := api.Group("/workorders")
	wo.GET("", h.WorkOrders.ListWorkOrders, read...)
	wo.POST("", h.WorkOrders.CreateWorkOrder, write...)
	wo.GET("/search", h.WorkOrders.SearchWorkOrders, read...)
	wo.GET("/status/:status", h.WorkOrders.ListByStatus, read...)
	wo.GET("/report", h.WorkOrders.ExportReport, export...)
	wo.GET("/stats", h.WorkOrders.WorkOrderStats, read...)
	wo.GET("/:id", h.WorkOrders.GetWorkOrder, read...)
	wo.PUT("/:id", h.WorkOrders.UpdateWorkOrder, write...)
	wo.DELETE("/:id", h.WorkOrders.DeleteWorkOrder, requires(models.CapWorkOrdersDelete)...)
	wo.GET("/:id/pdf", h.WorkOrders.DownloadPDF, export...)
}
