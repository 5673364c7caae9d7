package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Code extracts the machine-readable code from an error, or "" if it is not
// an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation ----

func Validation(message string) *AppError {
	return New("VALIDATION_ERROR", message, http.StatusBadRequest)
}

func ErrMissingIdempotencyKey() *AppError {
	return New("MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required on mutating requests", http.StatusBadRequest)
}

// ---- Authentication & signing ----

func ErrUnauthenticated() *AppError {
	return New("UNAUTHENTICATED", "Missing or invalid API key", http.StatusUnauthorized)
}

func ErrForbidden(scope string) *AppError {
	return New("FORBIDDEN", fmt.Sprintf("API key lacks required scope %q", scope), http.StatusForbidden)
}

func ErrKeyRevoked() *AppError {
	return New("KEY_REVOKED", "API key has been revoked", http.StatusForbidden)
}

func ErrMissingSignature() *AppError {
	return New("MISSING_SIGNATURE", "Signature and nonce headers are required for secret keys", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("INVALID_SIGNATURE", "Request signature verification failed", http.StatusUnauthorized)
}

func ErrNonceUsed() *AppError {
	return New("NONCE_USED", "Nonce has already been used", http.StatusForbidden)
}

// ---- Rate limiting ----

func ErrRateLimited() *AppError {
	return New("RATE_LIMITED", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Payment lifecycle ----

func ErrPaymentNotFound() *AppError {
	return New("PAYMENT_NOT_FOUND", "Payment not found", http.StatusNotFound)
}

func ErrPaymentAlreadyFinalized() *AppError {
	return New("PAYMENT_ALREADY_FINALIZED", "Payment has already reached a terminal state", http.StatusConflict)
}

func ErrUnknownAsset(assetID string) *AppError {
	return New("UNKNOWN_ASSET", fmt.Sprintf("Asset %q is not known to the token catalog", assetID), http.StatusBadRequest)
}

// ---- Webhook classification ----

func ErrInvalidPayload(err error) *AppError {
	return Wrap("INVALID_PAYLOAD", "Webhook payload is not valid JSON", http.StatusBadRequest, err)
}

func ErrNoID() *AppError {
	return New("NO_ID", "Webhook payload carries neither an order id nor a quote id", http.StatusBadRequest)
}

func ErrOrderNotFound() *AppError {
	return New("ORDER_NOT_FOUND", "No payment matches the webhook order or quote id", http.StatusNotFound)
}

// ---- Provider ----

// ErrProviderUnavailable marks a retryable provider failure (timeout, 5xx,
// unreachable). Callers may retry with the same idempotency key.
func ErrProviderUnavailable(err error) *AppError {
	return Wrap("PROVIDER_UNAVAILABLE", "Intent execution provider is unavailable", http.StatusBadGateway, err)
}

// ErrProviderRejected marks a fatal provider rejection (4xx validation).
func ErrProviderRejected(message string) *AppError {
	return New("PROVIDER_REJECTED", message, http.StatusUnprocessableEntity)
}

// IsRetryableProvider reports whether err is a provider failure the caller
// may safely retry.
func IsRetryableProvider(err error) bool {
	return Code(err) == "PROVIDER_UNAVAILABLE"
}

// ---- System ----

// InternalError wraps an internal error as an INTERNAL_ERROR.
func InternalError(err error) *AppError {
	return Wrap("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError, err)
}
