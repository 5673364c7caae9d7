package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secret.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secret, payload).
// Uses constant-time comparison to prevent timing attacks.
func (s *HMACSignatureService) Verify(secret string, payload []byte, signature string) bool {
	expected := s.Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// BuildCanonicalPayload constructs the signed byte string for API requests.
// Format: NONCE|METHOD|PATH|BODY
func (s *HMACSignatureService) BuildCanonicalPayload(nonce, method, path string, body []byte) []byte {
	canonical := make([]byte, 0, len(nonce)+len(method)+len(path)+len(body)+3)
	canonical = append(canonical, nonce...)
	canonical = append(canonical, '|')
	canonical = append(canonical, method...)
	canonical = append(canonical, '|')
	canonical = append(canonical, path...)
	canonical = append(canonical, '|')
	canonical = append(canonical, body...)
	return canonical
}

// VerifyWebhook checks an HMAC-SHA256 over the raw webhook body. The
// provider encodes signatures as hex or base64 depending on event source, so
// both encodings are accepted; each comparison is constant-time.
func (s *HMACSignatureService) VerifyWebhook(secret string, rawBody []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	sum := mac.Sum(nil)

	if hmac.Equal([]byte(hex.EncodeToString(sum)), []byte(signature)) {
		return true
	}
	if hmac.Equal([]byte(base64.StdEncoding.EncodeToString(sum)), []byte(signature)) {
		return true
	}
	return false
}
