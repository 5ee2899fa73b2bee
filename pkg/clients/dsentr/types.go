package dsentr

import "time"

// PersonalConnectionRecord is the wire shape of one of the calling user's
// own connections. The platform's personal and workspace listings predate
// each other and do not share field names.
type PersonalConnectionRecord struct {
	ID           string     `json:"id"`
	Provider     string     `json:"provider"`
	Email        string     `json:"email"`
	Label        string     `json:"label"`
	Status       string     `json:"status"`
	CredentialID string     `json:"credential_id"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Personal connection statuses as the platform reports them.
const (
	PersonalConnectionStatusActive         = "active"
	PersonalConnectionStatusNeedsReconnect = "needs_reconnect"
	PersonalConnectionStatusDisconnected   = "disconnected"
)

// WorkspaceConnectionRecord is the wire shape of a workspace-shared
// connection.
type WorkspaceConnectionRecord struct {
	ConnectionID      string    `json:"connection_id"`
	ProviderType      string    `json:"provider_type"`
	AccountEmail      string    `json:"account_email"`
	DisplayName       string    `json:"display_name"`
	SharedByUserID    string    `json:"shared_by_user_id"`
	RequiresReconnect bool      `json:"requires_reconnect"`
	CredentialID      string    `json:"credential_id"`
	SharedAt          time.Time `json:"shared_at"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`
}

// ConnectionInventory is the full connection listing for one workspace as
// seen by the calling user: their personal connections plus everything
// shared with the workspace.
type ConnectionInventory struct {
	PersonalConnections  []PersonalConnectionRecord  `json:"personal_connections"`
	WorkspaceConnections []WorkspaceConnectionRecord `json:"workspace_connections"`
}

type GetConnectionsResponse struct {
	ConnectionInventory
}

// Connection mutations answer with the updated inventory so callers can
// rebuild their view without a second round trip.
type PromoteConnectionResponse struct {
	Success bool `json:"success"`
	ConnectionInventory
}

type UnshareConnectionResponse struct {
	Success bool `json:"success"`
	ConnectionInventory
}

type DisconnectConnectionResponse struct {
	Success bool `json:"success"`
	ConnectionInventory
}

type RefreshConnectionResponse struct {
	Success bool `json:"success"`
	ConnectionInventory
}

// EncryptedCredential is a credential payload sealed to this hub's X25519
// key with an ephemeral sender key.
type EncryptedCredential struct {
	ID                 string `json:"id"`
	WorkspaceID        string `json:"workspace_id"`
	EphemeralPublicKey []byte `json:"ephemeral_public_key"`
	EncryptedPayload   []byte `json:"encrypted_payload"`
	Nonce              []byte `json:"nonce"`
	ExpiresAt          int64  `json:"expires_at"`
	HubID              string `json:"hub_id"`
}

type Workspace struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Hub struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
}

type CreateHubRegistrationRequest struct {
	HubName          string `json:"hub_name"`
	Address          string `json:"address"`
	X25519PublicKey  string `json:"x25519_public_key"`
	Ed25519PublicKey string `json:"ed25519_public_key"`
}

type CreateHubRegistrationResponse struct {
	VerificationCode string    `json:"verification_code"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type GetHubRegistrationStatusResponse struct {
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	Hub           *Hub      `json:"hub,omitempty"`
	WorkspaceName string    `json:"workspace_name,omitempty"`
}

// Registration states the platform reports while a hub awaits verification.
const (
	RegistrationStatusPending  = "pending"
	RegistrationStatusVerified = "verified"
	RegistrationStatusNotFound = "not_found"
)
