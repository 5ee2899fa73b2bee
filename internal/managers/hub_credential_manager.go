package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"
)

// Decrypted payloads stay cached briefly so a burst of option loads for the
// same panel does not hammer the platform credential endpoint.
const decryptedCredentialTTL = 30 * time.Second

type cachedCredential struct {
	payload   []byte
	expiresAt time.Time
}

type hubCredentialManager struct {
	client        dsentr.ClientInterface
	decryptionSvc domain.CredentialDecryptionService

	mu    sync.Mutex
	cache map[string]cachedCredential
}

func NewHubCredentialManager(client dsentr.ClientInterface, decryptionSvc domain.CredentialDecryptionService) domain.HubCredentialManager {
	return &hubCredentialManager{
		client:        client,
		decryptionSvc: decryptionSvc,
		cache:         make(map[string]cachedCredential),
	}
}

func (m *hubCredentialManager) GetDecryptedCredential(ctx context.Context, workspaceID, credentialID string) ([]byte, error) {
	cacheKey := workspaceID + ":" + credentialID

	if payload, ok := m.cachedPayload(cacheKey); ok {
		return payload, nil
	}

	record, err := m.client.GetCredential(ctx, workspaceID, credentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to get encrypted credential: %w", err)
	}

	payload, err := m.decryptionSvc.DecryptCredential(sealedFromWire(record))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	m.storePayload(cacheKey, payload)

	return payload, nil
}

func (m *hubCredentialManager) cachedPayload(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.payload, true
}

func (m *hubCredentialManager) storePayload(key string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[key] = cachedCredential{
		payload:   payload,
		expiresAt: time.Now().Add(decryptedCredentialTTL),
	}
}

func sealedFromWire(record *dsentr.EncryptedCredential) domain.SealedCredential {
	return domain.SealedCredential{
		ID:                 record.ID,
		WorkspaceID:        record.WorkspaceID,
		EphemeralPublicKey: record.EphemeralPublicKey,
		EncryptedPayload:   record.EncryptedPayload,
		Nonce:              record.Nonce,
		ExpiresAt:          record.ExpiresAt,
		HubID:              record.HubID,
	}
}

// HubCredentialGetter decodes decrypted credential payloads into typed
// structures for the provider loaders.
type HubCredentialGetter[T any] struct {
	manager domain.HubCredentialManager
}

func NewHubCredentialGetter[T any](manager domain.HubCredentialManager) *HubCredentialGetter[T] {
	return &HubCredentialGetter[T]{manager: manager}
}

func (g *HubCredentialGetter[T]) GetDecryptedCredential(ctx context.Context, workspaceID, credentialID string) (T, error) {
	var decoded T

	payload, err := g.manager.GetDecryptedCredential(ctx, workspaceID, credentialID)
	if err != nil {
		return decoded, err
	}

	if err := json.Unmarshal(payload, &decoded); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return decoded, nil
}
