package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Push signatures cover method, path, timestamp and a body digest:
//
//	METHOD\nPATH\n\nTIMESTAMP\nsha256:<hex digest>
//
// signed with the platform's Ed25519 key and carried as
// "ed25519=<base64 signature>". The blank line is reserved for signed
// headers, which no push uses today.

const (
	signatureScheme = "ed25519="
	replayWindow    = 5 * time.Minute
)

func canonicalPushRequest(method, path, timestamp string, body []byte) []byte {
	digest := sha256.Sum256(body)
	return []byte(fmt.Sprintf("%s\n%s\n\n%s\nsha256:%x", method, path, timestamp, digest))
}

func decodeSigningKey(encoded, kind string, size int) ([]byte, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s key: %w", kind, err)
	}
	if len(keyBytes) != size {
		return nil, fmt.Errorf("invalid %s key size: expected %d, got %d", kind, size, len(keyBytes))
	}
	return keyBytes, nil
}

// PlatformRequestSigner signs push requests the way the platform does. The
// hub only verifies, but the signer lets tests mint valid pushes.
type PlatformRequestSigner struct {
	privateKey ed25519.PrivateKey
}

func NewPlatformRequestSigner(privateKeyBase64 string) (*PlatformRequestSigner, error) {
	keyBytes, err := decodeSigningKey(privateKeyBase64, "private", ed25519.PrivateKeySize)
	if err != nil {
		return nil, err
	}

	return &PlatformRequestSigner{privateKey: ed25519.PrivateKey(keyBytes)}, nil
}

// SignRequest returns the signature headers for a push request.
func (s *PlatformRequestSigner) SignRequest(method, path string, body []byte) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	canonical := canonicalPushRequest(method, path, timestamp, body)
	signature := ed25519.Sign(s.privateKey, canonical)

	return map[string]string{
		"X-Platform-Signature": signatureScheme + base64.StdEncoding.EncodeToString(signature),
		"X-Platform-Timestamp": timestamp,
	}, nil
}

// PlatformSignatureVerifier verifies push request signatures against the
// platform's public key.
type PlatformSignatureVerifier struct {
	publicKey ed25519.PublicKey
}

func NewPlatformSignatureVerifier(publicKeyBase64 string) (*PlatformSignatureVerifier, error) {
	keyBytes, err := decodeSigningKey(publicKeyBase64, "public", ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}

	return &PlatformSignatureVerifier{publicKey: ed25519.PublicKey(keyBytes)}, nil
}

// VerifyRequest checks a push request's signature and replay window.
func (v *PlatformSignatureVerifier) VerifyRequest(method, path, signatureHeader, timestampHeader string, body []byte) error {
	signatureB64, ok := strings.CutPrefix(signatureHeader, signatureScheme)
	if !ok || signatureB64 == "" {
		return fmt.Errorf("malformed signature header")
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	timestamp, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}

	// Replayed pushes outside the window are rejected outright.
	if drift := time.Since(time.Unix(timestamp, 0)); drift > replayWindow || drift < -replayWindow {
		return fmt.Errorf("timestamp outside allowed window")
	}

	canonical := canonicalPushRequest(method, path, timestampHeader, body)
	if !ed25519.Verify(v.publicKey, canonical, signature) {
		return fmt.Errorf("signature verification failed")
	}

	return nil
}
