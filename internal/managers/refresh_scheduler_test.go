package managers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorkspaceManager struct {
	workspaces []domain.Workspace
	err        error
}

func (m *stubWorkspaceManager) GetWorkspace(ctx context.Context, workspaceID string) (domain.Workspace, error) {
	for _, workspace := range m.workspaces {
		if workspace.ID == workspaceID {
			return workspace, nil
		}
	}
	return domain.Workspace{}, errors.New("workspace not found")
}

func (m *stubWorkspaceManager) GetWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.workspaces, nil
}

type stubRefreshClient struct {
	dsentr.ClientInterface

	response               *dsentr.GetConnectionsResponse
	getConnectionsCalls    int
	refreshedConnectionIDs []string
}

func (c *stubRefreshClient) GetConnections(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
	c.getConnectionsCalls++
	return c.response, nil
}

func (c *stubRefreshClient) RefreshConnection(ctx context.Context, workspaceID, connectionID string) (*dsentr.RefreshConnectionResponse, error) {
	c.refreshedConnectionIDs = append(c.refreshedConnectionIDs, connectionID)
	return &dsentr.RefreshConnectionResponse{
		Success:             true,
		ConnectionInventory: c.response.ConnectionInventory,
	}, nil
}

func TestSyncSnapshotsRefetchesEveryWorkspace(t *testing.T) {
	client := &stubRefreshClient{response: &dsentr.GetConnectionsResponse{}}
	hub := newTestHub(client)
	workspaceManager := &stubWorkspaceManager{
		workspaces: []domain.Workspace{{ID: "ws-1"}, {ID: "ws-2"}},
	}

	scheduler := NewConnectionRefreshScheduler(hub, workspaceManager, RefreshSchedulerConfig{})
	scheduler.SyncSnapshots()

	assert.Equal(t, 2, client.getConnectionsCalls)

	_, ok := hub.Snapshot("ws-1")
	assert.True(t, ok)
	_, ok = hub.Snapshot("ws-2")
	assert.True(t, ok)
}

func TestRefreshExpiringOnlyTouchesExpiringSelectableConnections(t *testing.T) {
	now := time.Now()
	soon := now.Add(5 * time.Minute)
	later := now.Add(2 * time.Hour)

	client := &stubRefreshClient{
		response: &dsentr.GetConnectionsResponse{
			ConnectionInventory: dsentr.ConnectionInventory{
				PersonalConnections: []dsentr.PersonalConnectionRecord{
					{
						ID:        "conn-expiring",
						Provider:  "slack",
						Status:    dsentr.PersonalConnectionStatusActive,
						CreatedAt: now,
						ExpiresAt: &soon,
					},
					{
						ID:        "conn-fresh",
						Provider:  "slack",
						Status:    dsentr.PersonalConnectionStatusActive,
						CreatedAt: now,
						ExpiresAt: &later,
					},
					{
						ID:        "conn-broken",
						Provider:  "slack",
						Status:    dsentr.PersonalConnectionStatusNeedsReconnect,
						CreatedAt: now,
						ExpiresAt: &soon,
					},
					{
						ID:        "conn-no-expiry",
						Provider:  "slack",
						Status:    dsentr.PersonalConnectionStatusActive,
						CreatedAt: now,
					},
				},
			},
		},
	}
	hub := newTestHub(client)
	workspaceManager := &stubWorkspaceManager{workspaces: []domain.Workspace{{ID: "ws-1"}}}

	// Seed the cache; RefreshExpiring only walks cached workspaces
	_, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	scheduler := NewConnectionRefreshScheduler(hub, workspaceManager, RefreshSchedulerConfig{
		ExpiryWindow: 10 * time.Minute,
	})
	scheduler.RefreshExpiring()

	assert.Equal(t, []string{"conn-expiring"}, client.refreshedConnectionIDs)
}

func TestRefreshExpiringSkipsUncachedWorkspaces(t *testing.T) {
	client := &stubRefreshClient{response: &dsentr.GetConnectionsResponse{}}
	hub := newTestHub(client)
	workspaceManager := &stubWorkspaceManager{workspaces: []domain.Workspace{{ID: "ws-cold"}}}

	scheduler := NewConnectionRefreshScheduler(hub, workspaceManager, RefreshSchedulerConfig{})
	scheduler.RefreshExpiring()

	assert.Empty(t, client.refreshedConnectionIDs)
	assert.Equal(t, 0, client.getConnectionsCalls)
}
