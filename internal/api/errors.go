package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/logger"
)

// Error codes returned in ErrorResponse.Error.
const (
	CodeInvalidInput       = "invalid_input"
	CodeValidationError    = "validation_error"
	CodeNotFound           = "not_found"
	CodeInternalError      = "internal_error"
	CodeServiceUnavailable = "service_unavailable"
	CodeRequestTooLarge    = "request_too_large"
	CodeMethodNotAllowed   = "method_not_allowed"
)

// internalErrorMessage is the only text clients see for server-side failures.
const internalErrorMessage = "An unexpected error occurred. Please try again later."

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error         string         `json:"error"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

// NewErrorResponse creates an error response with a fresh correlation ID.
func NewErrorResponse(code, message string, details map[string]any) *ErrorResponse {
	return &ErrorResponse{
		Error:         code,
		Message:       message,
		Details:       details,
		CorrelationID: uuid.NewString(),
	}
}

// HandleError logs err with a correlation ID and writes the error response.
// Internal failures are logged in full and reported with a generic message.
func (s *Server) HandleError(c echo.Context, err error, code, message string, status int, details map[string]any) error {
	resp := NewErrorResponse(code, message, details)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("code", code),
		logger.Int("status", status),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.String("ip", c.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}

	log := s.log.WithContext(c.Request().Context())
	if status >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Warn("API error", fields...)
	}

	return c.JSON(status, resp)
}

// internalError reports err as a generic 500.
func (s *Server) internalError(c echo.Context, err error) error {
	return s.HandleError(c, err, CodeInternalError, internalErrorMessage, http.StatusInternalServerError, nil)
}

// httpErrorHandler renders errors that escape handlers, such as routing
// misses, oversized bodies and recovered panics, in the ErrorResponse shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = s.internalError(c, err)
		return
	}

	var code, message string
	switch he.Code {
	case http.StatusNotFound:
		code, message = CodeNotFound, "Resource not found"
	case http.StatusMethodNotAllowed:
		code, message = CodeMethodNotAllowed, "Method not allowed"
	case http.StatusRequestEntityTooLarge:
		code, message = CodeRequestTooLarge, "Request body too large"
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		code, message = CodeValidationError, "Invalid request data"
	default:
		if he.Code >= http.StatusInternalServerError {
			_ = s.internalError(c, err)
			return
		}
		code, message = CodeInvalidInput, http.StatusText(he.Code)
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(he.Code)
	} else {
		sendErr = s.HandleError(c, err, code, message, he.Code, nil)
	}
	if sendErr != nil {
		s.log.Error("failed to send error response", logger.Error(sendErr))
	}
}
