package httputil

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/logutil"
)

// ContextKey represents a context key type to avoid collisions
type ContextKey string

const (
	// TimeoutConfigKey is the context key for timeout configuration
	TimeoutConfigKey ContextKey = "timeout_config"
	// RequestIDKey is the context key for the request id
	RequestIDKey ContextKey = "request_id"
)

// MiddlewareConfig holds middleware configuration
type MiddlewareConfig struct {
	Timeouts       TimeoutConfig
	EnableCORS     bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// DefaultMiddlewareConfig provides sensible defaults
var DefaultMiddlewareConfig = MiddlewareConfig{
	Timeouts:       DefaultTimeouts,
	EnableCORS:     true,
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	AllowedHeaders: []string{"Content-Type", "Authorization"},
}

// TimeoutMiddleware creates a middleware that injects timeout configuration into context
func TimeoutMiddleware(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(TimeoutConfigKey), config)
		c.Next()
	}
}

// CORSMiddleware creates a configurable CORS middleware
func CORSMiddleware(config MiddlewareConfig) gin.HandlerFunc {
	methods := "GET, POST, PUT, DELETE, OPTIONS"
	if len(config.AllowedMethods) > 0 {
		methods = strings.Join(config.AllowedMethods, ", ")
	}
	headers := "Content-Type, Authorization"
	if len(config.AllowedHeaders) > 0 {
		headers = strings.Join(config.AllowedHeaders, ", ")
	}

	return func(c *gin.Context) {
		if config.EnableCORS {
			for _, origin := range config.AllowedOrigins {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Expose-Headers", constants.HeaderContentDisposition)

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}
		}
		c.Next()
	}
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new one
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(string(RequestIDKey), id)
		c.Header(constants.HeaderRequestID, id)
		c.Next()
	}
}

// LoggingMiddleware logs one line per request
func LoggingMiddleware(logger *logutil.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logutil.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  c.GetString(string(RequestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("Request failed", fields)
		case status >= 400:
			logger.Warn("Request rejected", fields)
		default:
			logger.Debug("Request served", fields)
		}
	}
}

// GetTimeoutForOperation retrieves appropriate timeout for operation from context
func GetTimeoutForOperation(c *gin.Context, operationType string) time.Duration {
	configInterface, exists := c.Get(string(TimeoutConfigKey))
	if !exists {
		return TimeoutFor(operationType, DefaultTimeouts)
	}

	config, ok := configInterface.(TimeoutConfig)
	if !ok {
		return TimeoutFor(operationType, DefaultTimeouts)
	}
	return TimeoutFor(operationType, config)
}

// WithOperationContext derives a context from the request for a specific operation
func WithOperationContext(c *gin.Context, operationType string) (context.Context, context.CancelFunc) {
	return WithTimeout(c.Request.Context(), GetTimeoutForOperation(c, operationType))
}
