package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"travel_server/pkg/apperr"
	"travel_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDLocal is the Locals key holding the request id
const RequestIDLocal = "request_id"

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(c *fiber.Ctx, status int, detail ErrorDetail) error {
	requestID, _ := c.Locals(RequestIDLocal).(string)
	return c.Status(status).JSON(ErrorResponse{
		Success:   false,
		Error:     detail,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorHandler renders errors returned by handlers and middleware.
// An *apperr.AppError keeps its code and status; a *fiber.Error (404 for
// unknown routes, 413 from body limits) is mapped by status; anything else
// is an opaque 500.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		log := logger.WithContext(c.UserContext()).WithField("path", c.Path())

		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			log = log.WithField("error_code", appErr.Code).WithError(appErr.Err)
			if appErr.Status >= 500 {
				log.Error("request failed: %s", appErr.Message)
			} else {
				log.Debug("rejected request: %s", appErr.Message)
			}
			return writeError(c, appErr.Status, ErrorDetail{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return writeError(c, fiberErr.Code, ErrorDetail{
				Code:    mapHTTPStatusToCode(fiberErr.Code),
				Message: fiberErr.Message,
			})
		}

		log.WithError(err).Error("unhandled error")
		return writeError(c, fiber.StatusInternalServerError, ErrorDetail{
			Code:    apperr.CodeInternalError,
			Message: "An unexpected error occurred",
		})
	}
}

// RequestID adds a unique request ID to each request and its user context
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals(RequestIDLocal, requestID)
		c.Set(fiber.HeaderXRequestID, requestID)
		c.SetUserContext(logger.ContextWithRequestID(c.UserContext(), requestID))
		return c.Next()
	}
}

// RequestLogger logs one line per request, level chosen by status
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		log := logger.WithContext(c.UserContext()).
			WithDuration(time.Since(start)).
			WithFields(map[string]any{
				"method": c.Method(),
				"path":   c.Path(),
				"status": status,
				"ip":     c.IP(),
			})

		switch {
		case status >= 500:
			log.Error("%s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("%s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("%s %s -> %d", c.Method(), c.Path(), status)
		}
		return err
	}
}

// Recover turns panics into a 500 response
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.UserContext()).WithFields(map[string]any{
					"panic":  fmt.Sprint(r),
					"method": c.Method(),
					"path":   c.Path(),
					"stack":  string(debug.Stack()),
				}).Error("panic recovered")

				err = writeError(c, fiber.StatusInternalServerError, ErrorDetail{
					Code:    apperr.CodeInternalError,
					Message: "An unexpected error occurred",
				})
			}
		}()
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apperr.CodeBadRequest
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperr.CodeForbidden
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusBadGateway, fiber.StatusServiceUnavailable, fiber.StatusGatewayTimeout:
		return "SERVICE_UNAVAILABLE"
	}
	if status >= 500 {
		return apperr.CodeInternalError
	}
	return "UNKNOWN_ERROR"
}
