package managers

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dsentr/dsentr/pkg/domain"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const credentialHKDFSalt = "dsentr-hub-credentials"

// hubCredentialDecryptionService opens credential payloads the platform
// sealed for this hub. Sealing is X25519 ECDH against the hub's public key,
// HKDF-SHA256 key derivation bound to the hub id, then ChaCha20-Poly1305.
type hubCredentialDecryptionService struct {
	privateKey string // base64 X25519 scalar
}

func NewHubCredentialDecryptionService(privateKeyBase64 string) *hubCredentialDecryptionService {
	return &hubCredentialDecryptionService{privateKey: privateKeyBase64}
}

func (s *hubCredentialDecryptionService) DecryptCredential(sealed domain.SealedCredential) ([]byte, error) {
	if time.Now().Unix() > sealed.ExpiresAt {
		return nil, errors.New("sealed credential expired")
	}

	hubPrivateKey, err := base64.StdEncoding.DecodeString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hub private key: %w", err)
	}
	if len(hubPrivateKey) != curve25519.ScalarSize {
		return nil, fmt.Errorf("invalid hub private key length: expected %d bytes, got %d", curve25519.ScalarSize, len(hubPrivateKey))
	}

	sharedSecret, err := curve25519.X25519(hubPrivateKey, sealed.EphemeralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("X25519 agreement failed: %w", err)
	}

	key, err := sealedPayloadKey(sharedSecret, sealed.HubID)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, sealed.Nonce, sealed.EncryptedPayload, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}

	return plaintext, nil
}

// sealedPayloadKey derives the per-credential ChaCha20 key. Binding the hub
// id into the HKDF info line stops a payload sealed for one hub from
// opening on another.
func sealedPayloadKey(sharedSecret []byte, hubID string) ([]byte, error) {
	reader := hkdf.New(sha256.New, sharedSecret, []byte(credentialHKDFSalt), []byte("encryption-key-"+hubID))

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive payload key: %w", err)
	}

	return key, nil
}
