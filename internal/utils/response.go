// internal/utils/response.go
package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fallrisk/super-serial/internal/linkerr"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
	Records []*linkerr.Error `json:"records,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// LinkErrorResponse sends err with a status derived from its kind. Every
// record carried by err is listed so a client sees all invalid fields.
func LinkErrorResponse(c *gin.Context, message string, err error) {
	kind := linkerr.KindOf(err)
	statusCode := StatusForKind(kind)

	apiError := &APIError{
		Code:    kind.String(),
		Message: message,
		Records: linkerr.Records(err),
	}
	if kind == linkerr.KindUnknown {
		apiError.Code = getErrorCode(statusCode)
	}
	if err != nil {
		apiError.Details = err.Error()
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// StatusForKind maps an error kind to the HTTP status the bridge reports
func StatusForKind(kind linkerr.Kind) int {
	switch kind {
	case linkerr.ConfigInvalid, linkerr.NameRequired, linkerr.SchemaError:
		return http.StatusBadRequest
	case linkerr.PermissionDenied:
		return http.StatusForbidden
	case linkerr.PortUnavailable:
		return http.StatusNotFound
	case linkerr.AlreadyOpen, linkerr.NotOpen:
		return http.StatusConflict
	case linkerr.DeviceRemoved, linkerr.IOReadError, linkerr.IOWriteError:
		return http.StatusBadGateway
	case linkerr.Timeout:
		return http.StatusGatewayTimeout
	case linkerr.Unsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	apiError := &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
	}

	response := APIResponse{
		Success:   false,
		Message:   "Validation failed",
		Error:     apiError,
		Data:      gin.H{"validation_errors": errors},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(http.StatusBadRequest, response)
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
