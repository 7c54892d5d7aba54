package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "VALIDATION_ERROR"
	ErrorTypeDuplicateEmail     ErrorType = "DUPLICATE_EMAIL"
	ErrorTypeConflict           ErrorType = "CONFLICT"
	ErrorTypeInvalidCredentials ErrorType = "INVALID_CREDENTIALS"
	ErrorTypeUnauthenticated    ErrorType = "UNAUTHENTICATED"
	ErrorTypeForbidden          ErrorType = "FORBIDDEN"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeRateLimited        ErrorType = "RATE_LIMITED"
	ErrorTypeUpstream           ErrorType = "UPSTREAM_FAILURE"
	ErrorTypeInternal           ErrorType = "INTERNAL_ERROR"
)

// AppError is the error every service returns to the HTTP layer.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    interface{}
	StatusCode int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message, Code: code})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Err returns nil when nothing was collected.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	msg := "Validation failed"
	if len(v.Errors) == 1 {
		msg = v.Errors[0].Message
	}
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    msg,
		Details:    ValidationErrors{Errors: v.Errors},
		StatusCode: http.StatusBadRequest,
	}
}

// Fields returns the names of the invalid fields, in insertion order.
func (v *ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message, StatusCode: http.StatusBadRequest}
}

func NewFieldValidationError(field, code, message string) *AppError {
	var v ValidationErrors
	v.Add(field, code, message)
	return v.Err().(*AppError)
}

func NewDuplicateEmailError() *AppError {
	return &AppError{Type: ErrorTypeDuplicateEmail, Message: "A user with this email already exists", StatusCode: http.StatusConflict}
}

func NewConflictError(message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message, StatusCode: http.StatusConflict}
}

// NewInvalidCredentialsError never says which of email or password was wrong.
func NewInvalidCredentialsError() *AppError {
	return &AppError{Type: ErrorTypeInvalidCredentials, Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
}

func NewUnauthenticatedError(message string) *AppError {
	return &AppError{Type: ErrorTypeUnauthenticated, Message: message, StatusCode: http.StatusUnauthorized}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Type: ErrorTypeForbidden, Message: message, StatusCode: http.StatusForbidden}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: fmt.Sprintf("%s not found", resource), StatusCode: http.StatusNotFound}
}

func NewRateLimitedError() *AppError {
	return &AppError{Type: ErrorTypeRateLimited, Message: "Too many attempts, try again later", StatusCode: http.StatusTooManyRequests}
}

func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeUpstream, Message: message, StatusCode: http.StatusBadGateway, Err: err}
}

func NewInternalError(err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: "Internal server error", StatusCode: http.StatusInternalServerError, Err: err}
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// ToAppError maps any error to an AppError. Unknown errors become internal
// errors whose cause is kept out of the response.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return &AppError{Type: typeForStatus(he.Code), Message: msg, StatusCode: he.Code, Err: he.Internal}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Type: ErrorTypeInternal, Message: "Request timed out", StatusCode: http.StatusServiceUnavailable, Err: err}
	}

	return NewInternalError(err)
}

func typeForStatus(code int) ErrorType {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return ErrorTypeValidation
	case http.StatusUnauthorized:
		return ErrorTypeUnauthenticated
	case http.StatusForbidden:
		return ErrorTypeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimited
	case http.StatusBadGateway:
		return ErrorTypeUpstream
	default:
		return ErrorTypeInternal
	}
}

// HTTPErrorHandler renders every error with the ErrorResponse envelope.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := ToAppError(err)
		if appErr.StatusCode >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err),
			)
		}

		var sendErr error
		if c.Request().Method == http.MethodHead {
			sendErr = c.NoContent(appErr.StatusCode)
		} else {
			sendErr = c.JSON(appErr.StatusCode, CreateErrorResponse(appErr))
		}
		if sendErr != nil {
			logger.Warn("failed to write error response", zap.Error(sendErr))
		}
	}
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	} `json:"error"`
}

func CreateErrorResponse(appErr *AppError) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = string(appErr.Type)
	resp.Error.Message = appErr.Message
	resp.Error.Details = appErr.Details
	return &resp
}
