package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Standard API Response Types
// =============================================================================
//
// All endpoints use these helpers so every response carries the same JSON
// structure: {"data": ...} on success, {"error": {...}} on failure, with
// proper HTTP status codes and machine-readable error codes.

// ErrorCode defines standard error codes for programmatic handling
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"  // 400 - Malformed request
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED" // 401 - Not authenticated
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"    // 404 - Resource not found
	ErrCodeConflict     ErrorCode = "CONFLICT"     // 409 - Resource conflict
	ErrCodeTooMany      ErrorCode = "TOO_MANY"     // 429 - Capacity reached

	// Server errors (5xx)
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR" // 500 - Unexpected error
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"    // 503 - Dependency not configured or down
)

// ErrorResponse is the standard error response structure
type ErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`    // Machine-readable error code
		Message string    `json:"message"` // Human-readable error message
	} `json:"error"`
}

// DataResponse wraps a single resource or object response
type DataResponse[T any] struct {
	Data T `json:"data"`
}

// ListResponse wraps a collection of resources
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// RespondData sends a successful response with a single data object
func RespondData[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, DataResponse[T]{Data: data})
}

// RespondList sends a successful response with a list of items.
// Empty slices serialize as [] instead of null.
func RespondList[T any](c *gin.Context, data []T) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, ListResponse[T]{Data: data, Count: len(data)})
}

// RespondCreated sends a 201 Created response with the created resource
func RespondCreated[T any](c *gin.Context, data T) {
	c.JSON(http.StatusCreated, DataResponse[T]{Data: data})
}

// RespondNoContent sends a 204 No Content response
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func respondError(c *gin.Context, status int, code ErrorCode, message string) {
	resp := ErrorResponse{}
	resp.Error.Code = code
	resp.Error.Message = message
	c.JSON(status, resp)
}

// RespondBadRequest sends a 400 Bad Request error
func RespondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// RespondUnauthorized sends a 401 Unauthorized error
func RespondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// RespondNotFound sends a 404 Not Found error
func RespondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// RespondConflict sends a 409 Conflict error
func RespondConflict(c *gin.Context, message string) {
	respondError(c, http.StatusConflict, ErrCodeConflict, message)
}

// RespondTooMany sends a 429 error when session capacity is reached
func RespondTooMany(c *gin.Context, message string) {
	respondError(c, http.StatusTooManyRequests, ErrCodeTooMany, message)
}

// RespondUnavailable sends a 503 Service Unavailable error
func RespondUnavailable(c *gin.Context, message string) {
	respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// RespondInternalError sends a 500 Internal Server Error
func RespondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, ErrCodeInternal, message)
}
