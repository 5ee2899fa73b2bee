package domain

import (
	"context"
	"time"
)

// OAuthTokenData is the decrypted payload behind an OAuth connection.
type OAuthTokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// SealedCredential is a credential payload encrypted to this hub's X25519
// key. The platform seals per request with an ephemeral key, so the hub can
// decrypt but never store provider tokens at rest.
type SealedCredential struct {
	ID                 string `json:"id"`
	WorkspaceID        string `json:"workspace_id"`
	EphemeralPublicKey []byte `json:"ephemeral_public_key"` // X25519, 32 bytes
	EncryptedPayload   []byte `json:"encrypted_payload"`
	Nonce              []byte `json:"nonce"` // ChaCha20-Poly1305 nonce, 12 bytes
	ExpiresAt          int64  `json:"expires_at"`
	HubID              string `json:"hub_id"`
}

type CredentialDecryptionService interface {
	DecryptCredential(sealed SealedCredential) ([]byte, error)
}

// HubCredentialManager fetches and decrypts credentials for provider calls.
type HubCredentialManager interface {
	GetDecryptedCredential(ctx context.Context, workspaceID, credentialID string) ([]byte, error)
}

// CredentialGetter decodes a decrypted credential payload into a typed value.
type CredentialGetter[T any] interface {
	GetDecryptedCredential(ctx context.Context, workspaceID, credentialID string) (T, error)
}
