package middleware

import (
	"bytes"
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
	// HeaderIdempotencyKey must be present on every mutating request.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay marks a response served from the cache.
	HeaderIdempotentReplay = "Idempotent-Replay"

	// Cached responses outlive any client retry schedule.
	idempotencyTTL = 24 * time.Hour

	maxIdempotencyKeyLen = 255
)

// Idempotency creates a middleware that replays previously committed
// responses for a repeated Idempotency-Key. Must run after APIKeyAuth: cache
// keys are scoped to the authenticated merchant and the route, so keys never
// collide across merchants or endpoints.
//
// The cache is a replay convenience only; the payment natural key in the
// store is what actually guarantees at-most-one payment per key. A cache
// miss on a retried request therefore falls through safely.
func Idempotency(cache ports.IdempotencyCache, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || len(key) > maxIdempotencyKeyLen {
			response.Error(c, apperror.ErrMissingIdempotencyKey())
			c.Abort()
			return
		}

		merchantID, ok := c.Get(CtxMerchantID)
		if !ok {
			response.Error(c, apperror.ErrUnauthenticated())
			c.Abort()
			return
		}

		cacheKey := domain.BuildIdempotencyCacheKey(
			merchantID.(uuid.UUID), c.Request.Method, c.Request.URL.Path, key)

		cached, err := cache.Begin(c.Request.Context(), cacheKey)
		if err != nil {
			// Degraded mode: the natural key still protects consistency.
			log.Warn().Err(err).Msg("idempotency cache unavailable, proceeding without replay")
		}
		if cached != nil {
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(cached.StatusCode, "application/json", cached.Body)
			c.Abort()
			return
		}

		w := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		status := w.Status()
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			if err := cache.Commit(c.Request.Context(), cacheKey, status, w.body.Bytes(), idempotencyTTL); err != nil {
				log.Warn().Err(err).Msg("idempotency cache commit failed")
			}
		}
	}
}

// bodyCaptureWriter tees the response body so a successful response can be
// committed to the idempotency cache after the handler runs.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
