package http

import (
	"strings"
	"time"

	"travel_server/infra/middleware"
	"travel_server/pkg/apperr"
	"travel_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// APIError represents a standard API error
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// UserIDParam returns the :userID route parameter. When the request is
// authenticated the token subject must name the same user.
func UserIDParam(c *fiber.Ctx) (string, error) {
	userID := strings.TrimSpace(c.Params("userID"))
	if userID == "" {
		return "", apperr.MissingField("user_id")
	}
	if sub, ok := middleware.AuthenticatedUser(c); ok && sub != userID {
		return "", apperr.Forbidden("token subject does not match user")
	}
	return userID, nil
}

// AppErrorResponse handles apperr.AppError and returns appropriate response
func AppErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	requestID, _ := c.Locals(middleware.RequestIDLocal).(string)

	if appErr.Status >= 500 {
		logger.WithError(err).
			WithField("request_id", requestID).
			WithField("path", c.Path()).
			Error("request failed: %s", appErr.Message)
	}

	return c.Status(appErr.Status).JSON(APIResponse{
		Success:   false,
		Error:     &APIError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SuccessResponse sends a standardized JSON success response
func SuccessResponse(c *fiber.Ctx, data any) error {
	requestID, _ := c.Locals(middleware.RequestIDLocal).(string)
	return c.JSON(APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// CreatedResponse is SuccessResponse with a 201 status
func CreatedResponse(c *fiber.Ctx, data any) error {
	c.Status(fiber.StatusCreated)
	return SuccessResponse(c, data)
}

// QueryBool parses a boolean query parameter; absent means def
func QueryBool(c *fiber.Ctx, key string, def bool) bool {
	val := strings.ToLower(c.Query(key))
	switch val {
	case "":
		return def
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
