package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TimestampLayout formats ErrorBody.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Timestamp        string       `json:"timestamp"`
	Status           int          `json:"status"`
	Error            string       `json:"error"`
	Message          string       `json:"message"`
	Path             string       `json:"path"`
	ValidationErrors []FieldError `json:"validationErrors,omitempty"`
}

// SuccessResponse sends data as a 200 JSON response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// CreatedResponse sends data as a 201 JSON response
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// MessageResponse sends a simple message response
func MessageResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{
		"message": message,
	})
}

// ErrorResponse sends a standard error JSON response
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	ValidationErrorResponse(c, statusCode, message, nil)
}

// ValidationErrorResponse sends an error response carrying per-field detail
func ValidationErrorResponse(c *gin.Context, statusCode int, message string, fields []FieldError) {
	c.JSON(statusCode, ErrorBody{
		Timestamp:        time.Now().Format(TimestampLayout),
		Status:           statusCode,
		Error:            http.StatusText(statusCode),
		Message:          message,
		Path:             c.Request.URL.Path,
		ValidationErrors: fields,
	})
}
