package connections

import (
	"sync"

	"github.com/dsentr/dsentr/pkg/domain"
)

// SnapshotHandler receives every snapshot stored for a subscribed workspace.
// Handlers run synchronously on the writer's goroutine, one write at a time
// per workspace, in the order the writes committed.
type SnapshotHandler func(snapshot *domain.GroupedConnectionsSnapshot)

// CancelFunc removes a subscription. Safe to call more than once.
type CancelFunc func()

type subscription struct {
	id        uint64
	handler   SnapshotHandler
	cancelled bool
}

type workspaceEntry struct {
	snapshot *domain.GroupedConnectionsSnapshot
	version  uint64

	subscribers []*subscription
	nextSubID   uint64

	// notifying marks an in-progress fan-out. Writes that land while it is
	// set queue on pending and are delivered by the draining goroutine, so
	// a subscriber that writes during delivery cannot interleave fan-outs.
	notifying bool
	pending   []*domain.GroupedConnectionsSnapshot
}

// SnapshotCache holds the current connection snapshot per workspace and fans
// every replacement out to subscribers.
//
// Guarantees, per workspace:
//   - writes replace the snapshot wholesale and are stamped with a strictly
//     increasing version
//   - subscribers are notified in subscription order
//   - the fan-out for write N finishes before the fan-out for any write
//     issued while N was being delivered
//   - GetAndSubscribe reads and subscribes atomically with respect to
//     writes, so no write that commits after the read can be missed
type SnapshotCache struct {
	mu         sync.Mutex
	workspaces map[string]*workspaceEntry
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		workspaces: make(map[string]*workspaceEntry),
	}
}

func (c *SnapshotCache) entryLocked(workspaceID string) *workspaceEntry {
	entry, ok := c.workspaces[workspaceID]
	if !ok {
		entry = &workspaceEntry{}
		c.workspaces[workspaceID] = entry
	}
	return entry
}

// Get returns the current snapshot for a workspace, if one is cached.
func (c *SnapshotCache) Get(workspaceID string) (*domain.GroupedConnectionsSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.workspaces[workspaceID]
	if !ok || entry.snapshot == nil {
		return nil, false
	}
	return entry.snapshot, true
}

// Set replaces the workspace's snapshot and delivers it to every subscriber.
// If a fan-out for this workspace is already running the snapshot is queued
// and delivered after the current one completes; Set returns immediately in
// that case. Otherwise Set returns once every subscriber has been notified.
func (c *SnapshotCache) Set(workspaceID string, snapshot *domain.GroupedConnectionsSnapshot) {
	c.mu.Lock()
	entry := c.entryLocked(workspaceID)
	entry.version++
	stamped := snapshot.WithVersion(entry.version)
	entry.snapshot = stamped

	if entry.notifying {
		entry.pending = append(entry.pending, stamped)
		c.mu.Unlock()
		return
	}

	entry.notifying = true
	c.mu.Unlock()

	c.drain(entry, stamped)
}

// drain delivers a snapshot and whatever queues behind it during delivery.
func (c *SnapshotCache) drain(entry *workspaceEntry, first *domain.GroupedConnectionsSnapshot) {
	current := first
	for {
		c.mu.Lock()
		subscribers := make([]*subscription, len(entry.subscribers))
		copy(subscribers, entry.subscribers)
		c.mu.Unlock()

		for _, sub := range subscribers {
			c.mu.Lock()
			cancelled := sub.cancelled
			c.mu.Unlock()
			if cancelled {
				continue
			}
			sub.handler(current)
		}

		c.mu.Lock()
		if len(entry.pending) == 0 {
			entry.notifying = false
			c.mu.Unlock()
			return
		}
		current = entry.pending[0]
		entry.pending = entry.pending[1:]
		c.mu.Unlock()
	}
}

// Subscribe registers a handler for future writes to the workspace. Nothing
// is delivered retroactively.
func (c *SnapshotCache) Subscribe(workspaceID string, handler SnapshotHandler) CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribeLocked(workspaceID, handler)
}

// GetAndSubscribe reads the current snapshot and registers the handler in
// one step. Callers that render from the returned snapshot are guaranteed to
// observe every write that commits after it.
func (c *SnapshotCache) GetAndSubscribe(workspaceID string, handler SnapshotHandler) (*domain.GroupedConnectionsSnapshot, bool, CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cancel := c.subscribeLocked(workspaceID, handler)

	entry := c.workspaces[workspaceID]
	if entry == nil || entry.snapshot == nil {
		return nil, false, cancel
	}
	return entry.snapshot, true, cancel
}

func (c *SnapshotCache) subscribeLocked(workspaceID string, handler SnapshotHandler) CancelFunc {
	entry := c.entryLocked(workspaceID)
	entry.nextSubID++

	sub := &subscription{
		id:      entry.nextSubID,
		handler: handler,
	}
	entry.subscribers = append(entry.subscribers, sub)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		sub.cancelled = true
		for i, candidate := range entry.subscribers {
			if candidate.id == sub.id {
				entry.subscribers = append(entry.subscribers[:i], entry.subscribers[i+1:]...)
				break
			}
		}
	}
}

// Evict drops the cached snapshot for a workspace. Subscriptions and the
// version counter survive, so later writes keep increasing versions and
// reach existing subscribers.
func (c *SnapshotCache) Evict(workspaceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.workspaces[workspaceID]; ok {
		entry.snapshot = nil
	}
}

// SubscriberCount reports how many active subscriptions a workspace has.
func (c *SnapshotCache) SubscriberCount(workspaceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.workspaces[workspaceID]
	if !ok {
		return 0
	}
	return len(entry.subscribers)
}
