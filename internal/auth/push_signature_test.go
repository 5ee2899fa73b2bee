package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeys(t *testing.T) (privateKeyBase64, publicKeyBase64 string) {
	t.Helper()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(privateKey), base64.StdEncoding.EncodeToString(publicKey)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)

	signer, err := NewPlatformRequestSigner(privateKey)
	require.NoError(t, err)

	verifier, err := NewPlatformSignatureVerifier(publicKey)
	require.NoError(t, err)

	body := []byte(`{"workspace_id":"ws-1","type":"connection.updated"}`)

	headers, err := signer.SignRequest("POST", "/api/v1/push/connections", body)
	require.NoError(t, err)
	require.Contains(t, headers, "X-Platform-Signature")
	require.Contains(t, headers, "X-Platform-Timestamp")

	err = verifier.VerifyRequest("POST", "/api/v1/push/connections",
		headers["X-Platform-Signature"], headers["X-Platform-Timestamp"], body)
	assert.NoError(t, err)
}

func TestVerifyRejectsTamperedRequest(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)

	signer, err := NewPlatformRequestSigner(privateKey)
	require.NoError(t, err)

	verifier, err := NewPlatformSignatureVerifier(publicKey)
	require.NoError(t, err)

	body := []byte(`{"workspace_id":"ws-1"}`)

	headers, err := signer.SignRequest("POST", "/api/v1/push/connections", body)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   []byte
	}{
		{
			name:   "tampered body",
			method: "POST",
			path:   "/api/v1/push/connections",
			body:   []byte(`{"workspace_id":"ws-2"}`),
		},
		{
			name:   "tampered path",
			method: "POST",
			path:   "/api/v1/push/other",
			body:   body,
		},
		{
			name:   "tampered method",
			method: "PUT",
			path:   "/api/v1/push/connections",
			body:   body,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.VerifyRequest(tt.method, tt.path,
				headers["X-Platform-Signature"], headers["X-Platform-Timestamp"], tt.body)
			assert.Error(t, err)
		})
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	privateKey, _ := generateTestKeys(t)
	_, otherPublicKey := generateTestKeys(t)

	signer, err := NewPlatformRequestSigner(privateKey)
	require.NoError(t, err)

	verifier, err := NewPlatformSignatureVerifier(otherPublicKey)
	require.NoError(t, err)

	body := []byte(`{}`)

	headers, err := signer.SignRequest("POST", "/api/v1/push/connections", body)
	require.NoError(t, err)

	err = verifier.VerifyRequest("POST", "/api/v1/push/connections",
		headers["X-Platform-Signature"], headers["X-Platform-Timestamp"], body)
	assert.ErrorContains(t, err, "signature verification failed")
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)

	signer, err := NewPlatformRequestSigner(privateKey)
	require.NoError(t, err)

	verifier, err := NewPlatformSignatureVerifier(publicKey)
	require.NoError(t, err)

	body := []byte(`{}`)

	headers, err := signer.SignRequest("POST", "/api/v1/push/connections", body)
	require.NoError(t, err)

	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)

	err = verifier.VerifyRequest("POST", "/api/v1/push/connections",
		headers["X-Platform-Signature"], stale, body)
	assert.ErrorContains(t, err, "timestamp outside allowed window")
}

func TestVerifyRejectsMalformedHeaders(t *testing.T) {
	_, publicKey := generateTestKeys(t)

	verifier, err := NewPlatformSignatureVerifier(publicKey)
	require.NoError(t, err)

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	tests := []struct {
		name      string
		signature string
		timestamp string
	}{
		{
			name:      "missing scheme prefix",
			signature: "c2lnbmF0dXJl",
			timestamp: timestamp,
		},
		{
			name:      "empty signature",
			signature: "",
			timestamp: timestamp,
		},
		{
			name:      "invalid base64",
			signature: "ed25519=!!!not-base64!!!",
			timestamp: timestamp,
		},
		{
			name:      "invalid timestamp",
			signature: "ed25519=c2lnbmF0dXJl",
			timestamp: "not-a-number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.VerifyRequest("POST", "/api/v1/push/connections", tt.signature, tt.timestamp, []byte(`{}`))
			assert.Error(t, err)
		})
	}
}

func TestNewSignerAndVerifierRejectBadKeys(t *testing.T) {
	_, err := NewPlatformRequestSigner("not-base64!!!")
	assert.Error(t, err)

	_, err = NewPlatformRequestSigner(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorContains(t, err, "invalid private key size")

	_, err = NewPlatformSignatureVerifier("not-base64!!!")
	assert.Error(t, err)

	_, err = NewPlatformSignatureVerifier(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorContains(t, err, "invalid public key size")
}
