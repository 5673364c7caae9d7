package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports/mocks"
	"intent-payment-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func secretKey(merchantID uuid.UUID) *domain.APIKey {
	return &domain.APIKey{
		ID:         uuid.New(),
		MerchantID: merchantID,
		KeyID:      "sk_live_abc",
		Type:       domain.APIKeyTypeSecret,
		Scopes:     []string{domain.ScopePaymentsRead, domain.ScopePaymentsWrite},
		Status:     domain.APIKeyStatusActive,
	}
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auth := mocks.NewMockAuthenticator(ctrl)
	router := gin.New()
	router.GET("/test", APIKeyAuth(auth, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auth := mocks.NewMockAuthenticator(ctrl)
	auth.EXPECT().Authenticate(gomock.Any(), "sk_live_bad.secret").
		Return(nil, apperror.ErrUnauthenticated())

	router := gin.New()
	router.GET("/test", APIKeyAuth(auth, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderAPIKey, "sk_live_bad.secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyAuth_GetRequestSkipsSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	merchantID := uuid.New()
	key := secretKey(merchantID)

	auth := mocks.NewMockAuthenticator(ctrl)
	auth.EXPECT().Authenticate(gomock.Any(), "sk_live_abc.s3cret", domain.ScopePaymentsRead).
		Return(key, nil)

	var capturedID uuid.UUID
	router := gin.New()
	router.GET("/test", APIKeyAuth(auth, zerolog.Nop(), domain.ScopePaymentsRead), func(c *gin.Context) {
		id, _ := c.Get(CtxMerchantID)
		capturedID = id.(uuid.UUID)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderAPIKey, "sk_live_abc.s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, merchantID, capturedID)
}

func TestAPIKeyAuth_MutatingRequestRequiresSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	key := secretKey(uuid.New())

	auth := mocks.NewMockAuthenticator(ctrl)
	auth.EXPECT().Authenticate(gomock.Any(), "sk_live_abc.s3cret", domain.ScopePaymentsWrite).
		Return(key, nil)

	router := gin.New()
	router.POST("/test", APIKeyAuth(auth, zerolog.Nop(), domain.ScopePaymentsWrite), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{}`))
	req.Header.Set(HeaderAPIKey, "sk_live_abc.s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MISSING_SIGNATURE", resp["error_code"])
}

func TestAPIKeyAuth_MutatingRequestWithValidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	merchantID := uuid.New()
	key := secretKey(merchantID)
	body := `{"amount":"12.5"}`

	auth := mocks.NewMockAuthenticator(ctrl)
	auth.EXPECT().Authenticate(gomock.Any(), "sk_live_abc.s3cret", domain.ScopePaymentsWrite).
		Return(key, nil)
	auth.EXPECT().VerifyRequestSignature(
		gomock.Any(), key, "valid-sig", "nonce-1",
		http.MethodPost, "/test", []byte(body),
	).Return(nil)

	var gotBody []byte
	router := gin.New()
	router.POST("/test", APIKeyAuth(auth, zerolog.Nop(), domain.ScopePaymentsWrite), func(c *gin.Context) {
		gotBody, _ = c.GetRawData()
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set(HeaderAPIKey, "sk_live_abc.s3cret")
	req.Header.Set(HeaderSignature, "valid-sig")
	req.Header.Set(HeaderNonce, "nonce-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// The body must be restored for the handler after verification read it.
	assert.Equal(t, []byte(body), gotBody)
}

func TestAPIKeyAuth_SignatureRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	key := secretKey(uuid.New())

	auth := mocks.NewMockAuthenticator(ctrl)
	auth.EXPECT().Authenticate(gomock.Any(), "sk_live_abc.s3cret", domain.ScopePaymentsWrite).
		Return(key, nil)
	auth.EXPECT().VerifyRequestSignature(
		gomock.Any(), key, "bad-sig", "nonce-1",
		http.MethodPost, "/test", gomock.Any(),
	).Return(apperror.ErrInvalidSignature())

	router := gin.New()
	router.POST("/test", APIKeyAuth(auth, zerolog.Nop(), domain.ScopePaymentsWrite), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{}`))
	req.Header.Set(HeaderAPIKey, "sk_live_abc.s3cret")
	req.Header.Set(HeaderSignature, "bad-sig")
	req.Header.Set(HeaderNonce, "nonce-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID_Generated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestRequestID_HonorsClientSupplied(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-supplied-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-supplied-1", w.Header().Get(HeaderRequestID))
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
}

func TestMaxBodySize_OversizedBodyRejected(t *testing.T) {
	router := gin.New()
	router.Use(MaxBodySize(16))
	router.POST("/test", func(c *gin.Context) {
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error_code": "PAYLOAD_TOO_LARGE"})
			return
		}
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"memo":"this body is longer than sixteen bytes"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
