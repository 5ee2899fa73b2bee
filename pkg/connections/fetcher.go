package connections

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"
)

// Fetcher pulls a workspace's connection inventory from the platform and
// normalizes the two wire listings into one grouped snapshot. The personal
// and workspace listings predate each other on the platform and carry
// different field names, so each has its own normalizer.
type Fetcher struct {
	client dsentr.ClientInterface
}

func NewFetcher(client dsentr.ClientInterface) *Fetcher {
	return &Fetcher{
		client: client,
	}
}

// FetchSnapshot retrieves and normalizes the inventory for one workspace.
// The error is the client's typed error; callers keep whatever snapshot they
// already had.
func (f *Fetcher) FetchSnapshot(ctx context.Context, workspaceID string) (*domain.GroupedConnectionsSnapshot, error) {
	resp, err := f.client.GetConnections(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch connection inventory: %w", err)
	}

	return f.SnapshotFromInventory(workspaceID, resp.ConnectionInventory), nil
}

// SnapshotFromInventory normalizes a wire inventory into a snapshot.
// Malformed records are skipped with a warning; one bad record never takes
// down its well-formed siblings.
func (f *Fetcher) SnapshotFromInventory(workspaceID string, inventory dsentr.ConnectionInventory) *domain.GroupedConnectionsSnapshot {
	connections := make([]domain.Connection, 0, len(inventory.PersonalConnections)+len(inventory.WorkspaceConnections))

	for _, record := range inventory.PersonalConnections {
		conn, err := normalizePersonalRecord(workspaceID, record)
		if err != nil {
			log.Warn().
				Err(err).
				Str("workspace_id", workspaceID).
				Str("connection_id", record.ID).
				Msg("Skipping malformed personal connection record")
			continue
		}
		connections = append(connections, conn)
	}

	for _, record := range inventory.WorkspaceConnections {
		conn, err := normalizeWorkspaceRecord(workspaceID, record)
		if err != nil {
			log.Warn().
				Err(err).
				Str("workspace_id", workspaceID).
				Str("connection_id", record.ConnectionID).
				Msg("Skipping malformed workspace connection record")
			continue
		}
		connections = append(connections, conn)
	}

	return domain.NewGroupedConnectionsSnapshot(workspaceID, connections)
}

func normalizePersonalRecord(workspaceID string, record dsentr.PersonalConnectionRecord) (domain.Connection, error) {
	if record.ID == "" {
		return domain.Connection{}, fmt.Errorf("personal connection record has no id")
	}
	if record.Provider == "" {
		return domain.Connection{}, fmt.Errorf("personal connection record has no provider")
	}

	var status domain.ConnectionStatus
	switch record.Status {
	case dsentr.PersonalConnectionStatusActive:
		status = domain.ConnectionStatusConnected
	case dsentr.PersonalConnectionStatusNeedsReconnect:
		status = domain.ConnectionStatusRequiresReconnect
	case dsentr.PersonalConnectionStatusDisconnected:
		status = domain.ConnectionStatusDisconnected
	default:
		return domain.Connection{}, fmt.Errorf("personal connection record has unknown status %q", record.Status)
	}

	var expiresAt time.Time
	if record.ExpiresAt != nil {
		expiresAt = *record.ExpiresAt
	}

	return domain.Connection{
		ID:           record.ID,
		WorkspaceID:  workspaceID,
		Provider:     domain.NormalizeProviderType(record.Provider),
		Scope:        domain.ConnectionScopePersonal,
		Status:       status,
		AccountEmail: record.Email,
		DisplayName:  record.Label,
		CredentialID: record.CredentialID,
		ConnectedAt:  record.CreatedAt,
		ExpiresAt:    expiresAt,
	}, nil
}

func normalizeWorkspaceRecord(workspaceID string, record dsentr.WorkspaceConnectionRecord) (domain.Connection, error) {
	if record.ConnectionID == "" {
		return domain.Connection{}, fmt.Errorf("workspace connection record has no id")
	}
	if record.ProviderType == "" {
		return domain.Connection{}, fmt.Errorf("workspace connection record has no provider")
	}

	status := domain.ConnectionStatusConnected
	if record.RequiresReconnect {
		status = domain.ConnectionStatusRequiresReconnect
	}

	return domain.Connection{
		ID:           record.ConnectionID,
		WorkspaceID:  workspaceID,
		Provider:     domain.NormalizeProviderType(record.ProviderType),
		Scope:        domain.ConnectionScopeWorkspace,
		Status:       status,
		AccountEmail: record.AccountEmail,
		DisplayName:  record.DisplayName,
		OwnerUserID:  record.SharedByUserID,
		CredentialID: record.CredentialID,
		ConnectedAt:  record.SharedAt,
		ExpiresAt:    record.ExpiresAt,
	}, nil
}
