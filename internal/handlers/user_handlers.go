package handlers

import (
	"net/http"
	"time"

	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/services"

	"github.com/labstack/echo/v4"
)

// UserHandlers serves the admin user management API. Every route is gated
// by users:manage at registration time.
type UserHandlers struct {
	userService services.UserService
	now         func() time.Time
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(userService services.UserService) *UserHandlers {
	return &UserHandlers{
		userService: userService,
		now:         time.Now,
	}
}

// ListUsersRequest represents query parameters for listing users
type ListUsersRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// ListUsers returns one page of users, newest first.
//
// @Summary  List users
// @Tags     users
// @Produce  json
// @Security BearerAuth
// @Param    limit  query int false "Page size (default 100, max 500)"
// @Param    offset query int false "Offset"
// @Success  200 {array} models.User
// @Failure  403 {object} common.ErrorResponse
// @Router   /api/auth/users [get]
func (h *UserHandlers) ListUsers(c echo.Context) error {
	var req ListUsersRequest
	if err := c.Bind(&req); err != nil {
		return common.NewValidationError("Invalid query parameters")
	}

	users, err := h.userService.ListUsers(c.Request().Context(), req.Limit, req.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser creates a user with any role.
//
// @Summary  Create user
// @Tags     users
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body models.NewUser true "New user"
// @Success  201 {object} models.User
// @Failure  400 {object} common.ErrorResponse
// @Failure  409 {object} common.ErrorResponse
// @Router   /api/auth/users [post]
func (h *UserHandlers) CreateUser(c echo.Context) error {
	var req models.NewUser
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}

	user, err := h.userService.CreateUser(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// GetUser handles getting a single user by ID
//
// @Summary  Get user
// @Tags     users
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "User ID"
// @Success  200 {object} models.User
// @Failure  404 {object} common.ErrorResponse
// @Router   /api/auth/users/{id} [get]
func (h *UserHandlers) GetUser(c echo.Context) error {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		return err
	}

	user, err := h.userService.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser merge-updates any user, role included.
//
// @Summary  Update user
// @Tags     users
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string           true "User ID"
// @Param    body body models.UserPatch true "Fields to change"
// @Success  200 {object} models.User
// @Failure  400 {object} common.ErrorResponse
// @Failure  404 {object} common.ErrorResponse
// @Router   /api/auth/users/{id} [put]
func (h *UserHandlers) UpdateUser(c echo.Context) error {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		return err
	}

	var patch models.UserPatch
	if err := c.Bind(&patch); err != nil {
		return invalidBody(err)
	}

	user, err := h.userService.UpdateUser(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser handles deleting a user
//
// @Summary  Delete user
// @Tags     users
// @Security BearerAuth
// @Param    id path string true "User ID"
// @Success  204
// @Failure  404 {object} common.ErrorResponse
// @Failure  409 {object} common.ErrorResponse
// @Router   /api/auth/users/{id} [delete]
func (h *UserHandlers) DeleteUser(c echo.Context) error {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.userService.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UsersReport streams the tabular users PDF.
//
// @Summary  Users report
// @Tags     users
// @Produce  application/pdf
// @Security BearerAuth
// @Success  200 {file} binary
// @Router   /api/auth/users/report [get]
func (h *UserHandlers) UsersReport(c echo.Context) error {
	data, err := h.userService.UsersReport(c.Request().Context())
	if err != nil {
		return err
	}
	return sendPDF(c, "users-"+h.now().Format("20060102")+".pdf", data)
}
