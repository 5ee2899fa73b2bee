package domain

import "time"

type ConnectionScope string

const (
	ConnectionScopePersonal  ConnectionScope = "personal"
	ConnectionScopeWorkspace ConnectionScope = "workspace"
)

func (s ConnectionScope) IsValid() bool {
	return s == ConnectionScopePersonal || s == ConnectionScopeWorkspace
}

type ConnectionStatus string

const (
	ConnectionStatusConnected         ConnectionStatus = "connected"
	ConnectionStatusRequiresReconnect ConnectionStatus = "requires_reconnect"
	ConnectionStatusDisconnected      ConnectionStatus = "disconnected"
)

// Connection is one OAuth connection as the hub sees it. Workspace-scoped
// connections are shared with everyone in the workspace, personal ones belong
// to the signed-in user only.
type Connection struct {
	ID           string           `json:"id"`
	WorkspaceID  string           `json:"workspace_id"`
	Provider     ProviderType     `json:"provider"`
	Scope        ConnectionScope  `json:"scope"`
	Status       ConnectionStatus `json:"status"`
	AccountEmail string           `json:"account_email"`
	DisplayName  string           `json:"display_name"`
	OwnerUserID  string           `json:"owner_user_id,omitempty"`
	CredentialID string           `json:"credential_id,omitempty"`
	ConnectedAt  time.Time        `json:"connected_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

// RequiresReconnect reports whether the provider revoked or expired the grant.
// Such a connection stays visible in the inventory so panels can offer a
// reconnect action, but it is never selectable and never auto-resolved onto
// a node.
func (c Connection) RequiresReconnect() bool {
	return c.Status == ConnectionStatusRequiresReconnect
}

// Selectable reports whether the connection may be bound to a node, either by
// the user or by automatic resolution.
func (c Connection) Selectable() bool {
	return c.Status == ConnectionStatusConnected
}
