package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/pkg/apperror"
	"intent-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for API-key authentication
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Signature"
	HeaderNonce     = "X-Nonce"
	HeaderRequestID = "X-Request-Id"

	// Context keys
	CtxMerchantID = "merchant_id"
	CtxAPIKey     = "api_key"
	CtxRequestID  = "request_id"
)

// APIKeyAuth creates a middleware that authenticates a presented API key and
// enforces the required scopes. Mutating requests from secret-type keys must
// additionally carry a valid HMAC signature and a fresh nonce; publishable
// keys never reach mutating routes because they lack the write scope.
func APIKeyAuth(auth ports.Authenticator, log zerolog.Logger, requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(HeaderAPIKey)
		if presented == "" {
			response.Error(c, apperror.ErrUnauthenticated())
			c.Abort()
			return
		}

		key, err := auth.Authenticate(c.Request.Context(), presented, requiredScopes...)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if key.Type == domain.APIKeyTypeSecret && c.Request.Method != http.MethodGet {
			signature := c.GetHeader(HeaderSignature)
			nonce := c.GetHeader(HeaderNonce)
			if signature == "" || nonce == "" {
				response.Error(c, apperror.ErrMissingSignature())
				c.Abort()
				return
			}

			bodyBytes, err := io.ReadAll(c.Request.Body)
			if err != nil {
				response.Error(c, apperror.Validation("cannot read request body"))
				c.Abort()
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

			if err := auth.VerifyRequestSignature(
				c.Request.Context(), key, signature, nonce,
				c.Request.Method, c.Request.URL.Path, bodyBytes,
			); err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
		}

		c.Set(CtxMerchantID, key.MerchantID)
		c.Set(CtxAPIKey, key)

		c.Next()
	}
}

// RequestID creates a middleware that attaches a request id to every request,
// honoring one supplied by the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "INTERNAL_ERROR",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize returns middleware that limits the request body size.
// Once the limit is exceeded the reader returns an error and the
// request is rejected with 413 Payload Too Large.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
