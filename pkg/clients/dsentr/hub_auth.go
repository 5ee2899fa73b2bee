package dsentr

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateKeyPair mints the Ed25519 identity a hub registers with. Both
// halves travel base64-encoded: the public key goes to the platform, the
// private key stays in the hub's config file.
func GenerateKeyPair() (privateKey, publicKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ed25519 identity: %w", err)
	}

	return base64.StdEncoding.EncodeToString(priv), base64.StdEncoding.EncodeToString(pub), nil
}

// parseSigningKey decodes a base64 private key. It returns nil when the
// value is missing or malformed so the client falls back to unsigned
// requests instead of failing construction.
func parseSigningKey(privateKeyBase64 string) ed25519.PrivateKey {
	if privateKeyBase64 == "" {
		return nil
	}

	keyBytes, err := base64.StdEncoding.DecodeString(privateKeyBase64)
	if err != nil || len(keyBytes) != ed25519.PrivateKeySize {
		return nil
	}

	return ed25519.PrivateKey(keyBytes)
}
