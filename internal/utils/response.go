package utils

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/types"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

func errorBody(c *fiber.Ctx, message string, status int, errorType string) fiber.Map {
	return fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	}
}

// ErrorResponse sends the standard error envelope
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(errorBody(c, message, status, errorType))
}

// CustomErrorResponse renders a CustomError, including its details when present
func CustomErrorResponse(c *fiber.Ctx, e *types.CustomError) error {
	body := errorBody(c, e.Message, e.Code, e.Type)
	if e.Details != nil {
		body["details"] = e.Details
	}
	if e.Type == types.TypeVersion {
		body["versionError"] = true
	}
	return c.Status(e.Code).JSON(body)
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusNotFound, types.TypeNotFound)
}

// DeletedResponse acknowledges a successful delete
func DeletedResponse(c *fiber.Ctx, id string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   "Success",
		"ok":        true,
		"id":        id,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorHandler renders every error returned by a handler or middleware.
// Errors outside the taxonomy are logged and reported as a bare 500.
func ErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if ce, ok := types.AsCustomError(err); ok {
			if ce.Code >= fiber.StatusInternalServerError {
				log.WithError(err).Error("request failed", map[string]interface{}{"url": c.OriginalURL()})
			}
			return CustomErrorResponse(c, ce)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ErrorResponse(c, fe.Message, fe.Code, "http")
		}

		log.WithError(err).Error("unhandled error", map[string]interface{}{
			"method": c.Method(),
			"url":    c.OriginalURL(),
		})
		return ErrorResponse(c, "Internal server error", fiber.StatusInternalServerError, types.TypeInternal)
	}
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status       int         `json:"status"`
	Message      string      `json:"message"`
	Ok           bool        `json:"ok"`
	Timestamp    string      `json:"timestamp"`
	URL          string      `json:"url"`
	Type         string      `json:"type,omitempty"`
	Details      interface{} `json:"details,omitempty"`
	VersionError bool        `json:"versionError,omitempty"`
}

// DeletedResponseStruct defines the schema for delete acknowledgements
type DeletedResponseStruct struct {
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}
