package common

import (
	"context"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"facilityops/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	UserKey   contextKey = "user"
)

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	ctx = context.WithValue(ctx, UserKey, user)
	return context.WithValue(ctx, UserIDKey, user.ID)
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// ParseIDParam reads a UUID path parameter. A malformed id is a validation
// error rather than a 404.
func ParseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Param(name))
	if raw == "" {
		return uuid.Nil, NewFieldValidationError(name, "required", name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewFieldValidationError(name, "invalid_uuid", name+" must be a valid UUID")
	}
	return id, nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(v *ValidationErrors, value, field string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required", field+" is required")
	}
}

// ValidateMaxLength counts characters, not bytes.
func ValidateMaxLength(v *ValidationErrors, value, field string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, "too_long", field+" cannot exceed "+strconv.Itoa(max)+" characters")
	}
}

func ValidateEmail(v *ValidationErrors, value, field string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required", field+" is required")
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v.Add(field, "invalid_email", field+" must be a valid email address")
	}
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EscapeLikePattern escapes LIKE wildcards so user input matches literally.
func EscapeLikePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(query)
}
