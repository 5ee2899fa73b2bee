package connections

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsentr/dsentr/pkg/domain"
)

func makeSnapshot(workspaceID string, connIDs ...string) *domain.GroupedConnectionsSnapshot {
	conns := make([]domain.Connection, 0, len(connIDs))
	for _, id := range connIDs {
		conns = append(conns, domain.Connection{
			ID:       id,
			Provider: domain.ProviderType_Slack,
			Scope:    domain.ConnectionScopePersonal,
			Status:   domain.ConnectionStatusConnected,
		})
	}
	return domain.NewGroupedConnectionsSnapshot(workspaceID, conns)
}

func TestSnapshotCacheGetMiss(t *testing.T) {
	cache := NewSnapshotCache()

	snapshot, ok := cache.Get("ws-1")

	assert.False(t, ok)
	assert.Nil(t, snapshot)
}

func TestSnapshotCacheSetStampsIncreasingVersions(t *testing.T) {
	cache := NewSnapshotCache()

	cache.Set("ws-1", makeSnapshot("ws-1", "c1"))
	first, ok := cache.Get("ws-1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), first.Version())

	cache.Set("ws-1", makeSnapshot("ws-1", "c1", "c2"))
	second, ok := cache.Get("ws-1")
	require.True(t, ok)
	assert.Equal(t, uint64(2), second.Version())
	assert.Equal(t, 2, second.TotalCount())

	// The first snapshot handed out earlier is untouched by the replacement.
	assert.Equal(t, uint64(1), first.Version())
	assert.Equal(t, 1, first.TotalCount())
}

func TestSnapshotCacheNotifiesInSubscriptionOrder(t *testing.T) {
	cache := NewSnapshotCache()

	var order []string
	cache.Subscribe("ws-1", func(s *domain.GroupedConnectionsSnapshot) {
		order = append(order, fmt.Sprintf("a:%d", s.Version()))
	})
	cache.Subscribe("ws-1", func(s *domain.GroupedConnectionsSnapshot) {
		order = append(order, fmt.Sprintf("b:%d", s.Version()))
	})

	cache.Set("ws-1", makeSnapshot("ws-1", "c1"))
	cache.Set("ws-1", makeSnapshot("ws-1", "c2"))

	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, order)
}

// A subscriber that writes from inside its handler must not deadlock and must
// not let the new write overtake the one being delivered.
func TestSnapshotCacheQueuesReentrantWrites(t *testing.T) {
	cache := NewSnapshotCache()

	var order []string
	cache.Subscribe("ws-1", func(s *domain.GroupedConnectionsSnapshot) {
		order = append(order, fmt.Sprintf("a:%d", s.Version()))
		if s.Version() == 1 {
			cache.Set("ws-1", makeSnapshot("ws-1", "c2"))
		}
	})
	cache.Subscribe("ws-1", func(s *domain.GroupedConnectionsSnapshot) {
		order = append(order, fmt.Sprintf("b:%d", s.Version()))
	})

	cache.Set("ws-1", makeSnapshot("ws-1", "c1"))

	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, order)
}

// Subscribing and reading in one step must not lose a write that lands in
// between: every version after the one read has to reach the handler with no
// gaps.
func TestSnapshotCacheGetAndSubscribeMissesNothing(t *testing.T) {
	const writes = 50

	cache := NewSnapshotCache()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			cache.Set("ws-1", makeSnapshot("ws-1", "c1"))
		}
	}()

	var mu sync.Mutex
	var received []uint64
	snapshot, ok, cancel := cache.GetAndSubscribe("ws-1", func(s *domain.GroupedConnectionsSnapshot) {
		mu.Lock()
		received = append(received, s.Version())
		mu.Unlock()
	})
	defer cancel()

	var readVersion uint64
	if ok {
		readVersion = snapshot.Version()
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()

	last := readVersion
	if len(received) > 0 {
		// A write already in flight during the subscribe may be delivered
		// again, so the stream starts at or one past the version read.
		assert.LessOrEqual(t, received[0], readVersion+1)
		for i := 1; i < len(received); i++ {
			assert.Equal(t, received[i-1]+1, received[i], "versions must arrive without gaps")
		}
		last = received[len(received)-1]
	}
	assert.Equal(t, uint64(writes), last, "the final write must be observed")
}

func TestSnapshotCacheCancelStopsDelivery(t *testing.T) {
	cache := NewSnapshotCache()

	calls := 0
	cancel := cache.Subscribe("ws-1", func(*domain.GroupedConnectionsSnapshot) {
		calls++
	})

	cache.Set("ws-1", makeSnapshot("ws-1", "c1"))
	require.Equal(t, 1, calls)

	cancel()
	cancel() // repeat cancels are harmless

	cache.Set("ws-1", makeSnapshot("ws-1", "c2"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, cache.SubscriberCount("ws-1"))
}

func TestSnapshotCacheEvictKeepsSubscribersAndVersions(t *testing.T) {
	cache := NewSnapshotCache()

	var versions []uint64
	cache.Subscribe("ws-1", func(s *domain.GroupedConnectionsSnapshot) {
		versions = append(versions, s.Version())
	})

	cache.Set("ws-1", makeSnapshot("ws-1", "c1"))
	cache.Evict("ws-1")

	_, ok := cache.Get("ws-1")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.SubscriberCount("ws-1"))

	cache.Set("ws-1", makeSnapshot("ws-1", "c2"))

	assert.Equal(t, []uint64{1, 2}, versions, "the version counter survives eviction")
}

func TestSnapshotCacheWorkspacesAreIsolated(t *testing.T) {
	cache := NewSnapshotCache()

	calls := 0
	cache.Subscribe("ws-1", func(*domain.GroupedConnectionsSnapshot) {
		calls++
	})

	cache.Set("ws-2", makeSnapshot("ws-2", "c1"))

	assert.Equal(t, 0, calls)

	got, ok := cache.Get("ws-2")
	require.True(t, ok)
	assert.Equal(t, "ws-2", got.WorkspaceID())

	_, ok = cache.Get("ws-1")
	assert.False(t, ok)
}
