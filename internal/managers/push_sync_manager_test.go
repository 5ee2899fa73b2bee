package managers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/connections"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInventoryClient struct {
	dsentr.ClientInterface

	getConnectionsCalls int
	response            *dsentr.GetConnectionsResponse
	err                 error
}

func (c *stubInventoryClient) GetConnections(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
	c.getConnectionsCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

func newTestHub(client dsentr.ClientInterface) *connections.Hub {
	return connections.NewHub(connections.HubDependencies{
		Client:  client,
		Cache:   connections.NewSnapshotCache(),
		Fetcher: connections.NewFetcher(client),
	})
}

func TestPushSyncManagerHandleEventRefetches(t *testing.T) {
	client := &stubInventoryClient{
		response: &dsentr.GetConnectionsResponse{
			ConnectionInventory: dsentr.ConnectionInventory{
				PersonalConnections: []dsentr.PersonalConnectionRecord{
					{
						ID:        "conn-1",
						Provider:  "slack",
						Email:     "dev@example.com",
						Status:    dsentr.PersonalConnectionStatusActive,
						CreatedAt: time.Now(),
					},
				},
			},
		},
	}
	hub := newTestHub(client)
	manager := NewPushSyncManager(hub, nil)

	event := domain.NewConnectionEvent(domain.ConnectionEventType_Updated, "ws-1", "conn-1")

	err := manager.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, client.getConnectionsCalls)

	snapshot, ok := hub.Snapshot("ws-1")
	require.True(t, ok)
	assert.Equal(t, 1, snapshot.TotalCount())
}

func TestPushSyncManagerHandleEventRejectsMissingWorkspace(t *testing.T) {
	client := &stubInventoryClient{response: &dsentr.GetConnectionsResponse{}}
	manager := NewPushSyncManager(newTestHub(client), nil)

	event := domain.ConnectionEvent{ID: "evt-1", Type: domain.ConnectionEventType_Updated}

	err := manager.HandleEvent(context.Background(), event)
	assert.ErrorContains(t, err, "has no workspace id")
	assert.Equal(t, 0, client.getConnectionsCalls)
}

func TestPushSyncManagerHandleEventPropagatesFetchFailure(t *testing.T) {
	client := &stubInventoryClient{err: errors.New("platform down")}
	manager := NewPushSyncManager(newTestHub(client), nil)

	event := domain.NewConnectionEvent(domain.ConnectionEventType_Revoked, "ws-1", "conn-1")

	err := manager.HandleEvent(context.Background(), event)
	assert.ErrorContains(t, err, "failed to refetch connections for workspace ws-1")
}

func TestPushSyncManagerWithoutListener(t *testing.T) {
	manager := NewPushSyncManager(newTestHub(&stubInventoryClient{}), nil)

	err := manager.Start(context.Background())
	assert.ErrorContains(t, err, "no connection event listener configured")

	assert.NoError(t, manager.Stop())
}
