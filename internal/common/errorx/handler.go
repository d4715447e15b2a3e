package errorx

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// ErrorHandler provides unified error responses for the HTTP surface
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.Named("errorx"),
	}
}

// HandleError converts err to an APIError, logs it and writes the JSON response
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := *FromError(err)
	apiErr.TraceID = ExtractTraceID(c)
	apiErr.Timestamp = time.Now().UTC().Format(time.RFC3339)

	fields := []zap.Field{
		zap.String("trace_id", apiErr.TraceID),
		zap.String("error_code", apiErr.Code),
		zap.String("category", string(apiErr.Category)),
		zap.Int("http_status", apiErr.HTTPStatus),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	}
	if apiErr.HTTPStatus >= 500 {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}

	c.AbortWithStatusJSON(apiErr.HTTPStatus, gin.H{"error": &apiErr})
}

// ExtractTraceID returns the request id set by middleware, falling back to the header or a new uuid
func ExtractTraceID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if id := c.GetHeader("X-Request-Id"); id != "" {
		return id
	}
	id := uuid.New().String()
	c.Set(RequestIDKey, id)
	return id
}
