package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes shared by the API and its clients.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
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

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsCode reports whether err is an *AppError carrying code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// StatusFor maps an error to the HTTP status used to report it.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeConflict:
		return fiber.StatusConflict
	case CodeUnauthorized:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
