package handlers

import (
	"net/http"

	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthHandlers handles registration, login and the caller's own profile.
type AuthHandlers struct {
	authService services.AuthService
	userService services.UserService
	logger      *zap.Logger
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(authService services.AuthService, userService services.UserService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		userService: userService,
		logger:      logger,
	}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a technician account and signs the caller in.
//
// @Summary  Register
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body models.NewUser true "New account"
// @Success  201 {object} models.TokenResponse
// @Failure  400 {object} common.ErrorResponse
// @Failure  409 {object} common.ErrorResponse
// @Router   /api/auth/register [post]
func (h *AuthHandlers) Register(c echo.Context) error {
	var req models.NewUser
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}

	resp, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login handles user login with email and password
//
// @Summary  Login
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body LoginRequest true "Credentials"
// @Success  200 {object} models.TokenResponse
// @Failure  401 {object} common.ErrorResponse
// @Failure  429 {object} common.ErrorResponse
// @Router   /api/auth/login [post]
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}

	var v common.ValidationErrors
	common.ValidateRequiredString(&v, req.Email, "email")
	common.ValidateRequiredString(&v, req.Password, "password")
	if err := v.Err(); err != nil {
		return err
	}

	resp, err := h.authService.Login(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated caller.
//
// @Summary  Current user
// @Tags     auth
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} models.User
// @Failure  401 {object} common.ErrorResponse
// @Router   /api/auth/me [get]
func (h *AuthHandlers) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile merge-updates the caller. A role change is refused.
//
// @Summary  Update own profile
// @Tags     auth
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body models.UserPatch true "Fields to change"
// @Success  200 {object} models.User
// @Failure  400 {object} common.ErrorResponse
// @Failure  403 {object} common.ErrorResponse
// @Failure  409 {object} common.ErrorResponse
// @Router   /api/auth/update [put]
func (h *AuthHandlers) UpdateProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var patch models.UserPatch
	if err := c.Bind(&patch); err != nil {
		return invalidBody(err)
	}

	updated, err := h.userService.UpdateProfile(c.Request().Context(), user.ID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteMe removes the caller's own account.
//
// @Summary  Delete own account
// @Tags     auth
// @Security BearerAuth
// @Success  204
// @Failure  401 {object} common.ErrorResponse
// @Failure  409 {object} common.ErrorResponse
// @Router   /api/auth/me [delete]
func (h *AuthHandlers) DeleteMe(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	if err := h.userService.DeleteUser(c.Request().Context(), user.ID); err != nil {
		return err
	}
	h.logger.Info("account deleted by owner", zap.String("user_id", user.ID.String()))
	return c.NoContent(http.StatusNoContent)
}

func currentUser(c echo.Context) (*models.User, error) {
	user, ok := common.GetUserFromContext(c.Request().Context())
	if !ok {
		return nil, common.NewUnauthenticatedError("User not authenticated")
	}
	return user, nil
}

// invalidBody turns a bind failure into a validation error without echoing
// decoder internals back to the client.
func invalidBody(err error) error {
	appErr := common.NewValidationError("Invalid request body")
	appErr.Err = err
	return appErr
}
