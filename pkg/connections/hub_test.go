package connections

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"
)

// stubPlatformClient implements dsentr.ClientInterface with overridable
// behavior per call. Methods without an override return empty success.
type stubPlatformClient struct {
	mu                  sync.Mutex
	getConnectionsCalls int

	getConnections       func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error)
	promoteConnection    func(ctx context.Context, workspaceID, connectionID string) (*dsentr.PromoteConnectionResponse, error)
	unshareConnection    func(ctx context.Context, workspaceID, connectionID string) (*dsentr.UnshareConnectionResponse, error)
	disconnectConnection func(ctx context.Context, workspaceID, scope, connectionID string) (*dsentr.DisconnectConnectionResponse, error)
	refreshConnection    func(ctx context.Context, workspaceID, connectionID string) (*dsentr.RefreshConnectionResponse, error)
}

func (s *stubPlatformClient) connectionsCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getConnectionsCalls
}

func (s *stubPlatformClient) GetConnections(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
	s.mu.Lock()
	s.getConnectionsCalls++
	s.mu.Unlock()

	if s.getConnections != nil {
		return s.getConnections(ctx, workspaceID)
	}
	return &dsentr.GetConnectionsResponse{}, nil
}

func (s *stubPlatformClient) PromoteConnection(ctx context.Context, workspaceID, connectionID string) (*dsentr.PromoteConnectionResponse, error) {
	if s.promoteConnection != nil {
		return s.promoteConnection(ctx, workspaceID, connectionID)
	}
	return &dsentr.PromoteConnectionResponse{Success: true}, nil
}

func (s *stubPlatformClient) UnshareConnection(ctx context.Context, workspaceID, connectionID string) (*dsentr.UnshareConnectionResponse, error) {
	if s.unshareConnection != nil {
		return s.unshareConnection(ctx, workspaceID, connectionID)
	}
	return &dsentr.UnshareConnectionResponse{Success: true}, nil
}

func (s *stubPlatformClient) DisconnectConnection(ctx context.Context, workspaceID, scope, connectionID string) (*dsentr.DisconnectConnectionResponse, error) {
	if s.disconnectConnection != nil {
		return s.disconnectConnection(ctx, workspaceID, scope, connectionID)
	}
	return &dsentr.DisconnectConnectionResponse{Success: true}, nil
}

func (s *stubPlatformClient) RefreshConnection(ctx context.Context, workspaceID, connectionID string) (*dsentr.RefreshConnectionResponse, error) {
	if s.refreshConnection != nil {
		return s.refreshConnection(ctx, workspaceID, connectionID)
	}
	return &dsentr.RefreshConnectionResponse{Success: true}, nil
}

func (s *stubPlatformClient) GetCredential(ctx context.Context, workspaceID, credentialID string) (*dsentr.EncryptedCredential, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPlatformClient) GetWorkspace(ctx context.Context, workspaceID string) (*dsentr.Workspace, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPlatformClient) GetWorkspaces(ctx context.Context) ([]dsentr.Workspace, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPlatformClient) CreateHubRegistration(ctx context.Context, req *dsentr.CreateHubRegistrationRequest) (*dsentr.CreateHubRegistrationResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPlatformClient) GetHubRegistrationStatus(ctx context.Context, code string) (*dsentr.GetHubRegistrationStatusResponse, error) {
	return nil, errors.New("not implemented")
}

func inventoryOf(ids ...string) dsentr.ConnectionInventory {
	var inv dsentr.ConnectionInventory
	for _, id := range ids {
		inv.PersonalConnections = append(inv.PersonalConnections, dsentr.PersonalConnectionRecord{
			ID:       id,
			Provider: "slack",
			Status:   dsentr.PersonalConnectionStatusActive,
		})
	}
	return inv
}

func newTestHub(client *stubPlatformClient) *Hub {
	return NewHub(HubDependencies{
		Client:  client,
		Cache:   NewSnapshotCache(),
		Fetcher: NewFetcher(client),
	})
}

func TestEnsureSnapshotFetchesOnceThenServesFromCache(t *testing.T) {
	client := &stubPlatformClient{
		getConnections: func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
			return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1")}, nil
		},
	}
	hub := newTestHub(client)

	first, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version())

	second, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second.Version())

	assert.Equal(t, 1, client.connectionsCallCount())
}

func TestEnsureSnapshotCollapsesConcurrentFetches(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once

	client := &stubPlatformClient{}
	client.getConnections = func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
		startedOnce.Do(func() { close(started) })
		<-gate
		return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1")}, nil
	}
	hub := newTestHub(client)

	const callers = 8
	var wg sync.WaitGroup
	versions := make([]uint64, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := hub.EnsureSnapshot(context.Background(), "ws-1")
			errs[i] = err
			if snapshot != nil {
				versions[i] = snapshot.Version()
			}
		}(i)
	}

	<-started
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, client.connectionsCallCount(), "concurrent callers must share one upstream fetch")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, uint64(1), versions[i], "every caller sees the shared result")
	}
}

func TestEnsureSnapshotPropagatesSharedFailure(t *testing.T) {
	client := &stubPlatformClient{
		getConnections: func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
			return nil, errors.New("platform down")
		},
	}
	hub := newTestHub(client)

	_, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.Error(t, err)

	// A failed fetch caches nothing, so the next call tries again.
	_, err = hub.EnsureSnapshot(context.Background(), "ws-1")
	require.Error(t, err)
	assert.Equal(t, 2, client.connectionsCallCount())
}

func TestRefetchBypassesCache(t *testing.T) {
	client := &stubPlatformClient{}
	client.getConnections = func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
		if client.connectionsCallCount() == 1 {
			return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1")}, nil
		}
		return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1", "c2")}, nil
	}
	hub := newTestHub(client)

	first, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalCount())

	fresh, err := hub.Refetch(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, 2, client.connectionsCallCount())
	assert.Equal(t, uint64(2), fresh.Version())
	assert.Equal(t, 2, fresh.TotalCount())
}

// A forced refetch that overlaps an in-flight fetch must wait it out and then
// fetch again: the result it returns can never predate the call.
func TestRefetchRunsAfterInflightFetch(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once

	client := &stubPlatformClient{}
	client.getConnections = func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
		startedOnce.Do(func() { close(started) })
		<-gate
		if client.connectionsCallCount() == 1 {
			return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1")}, nil
		}
		return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1", "c2")}, nil
	}
	hub := newTestHub(client)

	var wg sync.WaitGroup
	wg.Add(2)

	var ensureVersion uint64
	go func() {
		defer wg.Done()
		snapshot, err := hub.EnsureSnapshot(context.Background(), "ws-1")
		if err == nil {
			ensureVersion = snapshot.Version()
		}
	}()

	<-started

	var refetched *domain.GroupedConnectionsSnapshot
	var refetchErr error
	go func() {
		defer wg.Done()
		refetched, refetchErr = hub.Refetch(context.Background(), "ws-1")
	}()

	for i := 0; i < 2; i++ {
		select {
		case gate <- struct{}{}:
		case <-time.After(2 * time.Second):
			t.Fatal("expected a second upstream fetch")
		}
	}
	wg.Wait()

	require.NoError(t, refetchErr)
	assert.Equal(t, 2, client.connectionsCallCount())
	assert.Equal(t, uint64(1), ensureVersion)
	assert.Equal(t, uint64(2), refetched.Version())
	assert.Equal(t, 2, refetched.TotalCount())
}

func TestInvalidateForcesNextFetch(t *testing.T) {
	client := &stubPlatformClient{
		getConnections: func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
			return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1")}, nil
		},
	}
	hub := newTestHub(client)

	_, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	hub.Invalidate("ws-1")

	_, ok := hub.Snapshot("ws-1")
	assert.False(t, ok)

	refreshed, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 2, client.connectionsCallCount())
	assert.Equal(t, uint64(2), refreshed.Version(), "versions keep increasing across invalidation")
}

// Mutations carry the resulting inventory in their response. The hub must
// install that inventory directly instead of fetching again.
func TestMutationsWriteThroughWithoutRefetch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(h *Hub) (*domain.GroupedConnectionsSnapshot, error)
	}{
		{
			name: "promote",
			call: func(h *Hub) (*domain.GroupedConnectionsSnapshot, error) {
				return h.Promote(ctx, "ws-1", "c1")
			},
		},
		{
			name: "unshare",
			call: func(h *Hub) (*domain.GroupedConnectionsSnapshot, error) {
				return h.Unshare(ctx, "ws-1", "c1")
			},
		},
		{
			name: "disconnect",
			call: func(h *Hub) (*domain.GroupedConnectionsSnapshot, error) {
				return h.Disconnect(ctx, "ws-1", domain.ConnectionScopePersonal, "c1")
			},
		},
		{
			name: "refresh",
			call: func(h *Hub) (*domain.GroupedConnectionsSnapshot, error) {
				return h.RefreshConnection(ctx, "ws-1", "c1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubPlatformClient{
				getConnections: func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
					return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1")}, nil
				},
				promoteConnection: func(ctx context.Context, workspaceID, connectionID string) (*dsentr.PromoteConnectionResponse, error) {
					return &dsentr.PromoteConnectionResponse{Success: true, ConnectionInventory: inventoryOf("c1", "c2")}, nil
				},
				unshareConnection: func(ctx context.Context, workspaceID, connectionID string) (*dsentr.UnshareConnectionResponse, error) {
					return &dsentr.UnshareConnectionResponse{Success: true, ConnectionInventory: inventoryOf("c1", "c2")}, nil
				},
				disconnectConnection: func(ctx context.Context, workspaceID, scope, connectionID string) (*dsentr.DisconnectConnectionResponse, error) {
					return &dsentr.DisconnectConnectionResponse{Success: true, ConnectionInventory: inventoryOf("c1", "c2")}, nil
				},
				refreshConnection: func(ctx context.Context, workspaceID, connectionID string) (*dsentr.RefreshConnectionResponse, error) {
					return &dsentr.RefreshConnectionResponse{Success: true, ConnectionInventory: inventoryOf("c1", "c2")}, nil
				},
			}
			hub := newTestHub(client)

			_, err := hub.EnsureSnapshot(ctx, "ws-1")
			require.NoError(t, err)

			var notified []uint64
			hub.Cache().Subscribe("ws-1", func(s *domain.GroupedConnectionsSnapshot) {
				notified = append(notified, s.Version())
			})

			snapshot, err := tt.call(hub)
			require.NoError(t, err)

			assert.Equal(t, uint64(2), snapshot.Version())
			assert.Equal(t, 2, snapshot.TotalCount())
			assert.Equal(t, 1, client.connectionsCallCount(), "mutations must not trigger a refetch")
			assert.Equal(t, []uint64{2}, notified, "subscribers see the write-through")

			cached, ok := hub.Snapshot("ws-1")
			require.True(t, ok)
			assert.Equal(t, uint64(2), cached.Version())
		})
	}
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	client := &stubPlatformClient{
		getConnections: func(ctx context.Context, workspaceID string) (*dsentr.GetConnectionsResponse, error) {
			return &dsentr.GetConnectionsResponse{ConnectionInventory: inventoryOf("c1")}, nil
		},
		promoteConnection: func(ctx context.Context, workspaceID, connectionID string) (*dsentr.PromoteConnectionResponse, error) {
			return nil, &dsentr.Error{StatusCode: 409, Message: "connection already shared"}
		},
	}
	hub := newTestHub(client)

	before, err := hub.EnsureSnapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	snapshot, err := hub.Promote(context.Background(), "ws-1", "c1")
	require.Error(t, err)
	assert.Nil(t, snapshot)
	assert.Contains(t, err.Error(), "failed to promote connection")

	cached, ok := hub.Snapshot("ws-1")
	require.True(t, ok)
	assert.Equal(t, before.Version(), cached.Version())
}
