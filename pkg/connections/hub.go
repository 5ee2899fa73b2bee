package connections

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"
)

// Hub is the facade the rest of the system talks to: it owns the snapshot
// cache, collapses concurrent fetches, and runs every connection mutation
// write-through so open panels reconcile from the mutation's own response
// instead of waiting for a refetch.
type Hub struct {
	client  dsentr.ClientInterface
	cache   *SnapshotCache
	fetcher *Fetcher

	mu       sync.Mutex
	inflight map[string]*inflightFetch
}

type inflightFetch struct {
	done     chan struct{}
	snapshot *domain.GroupedConnectionsSnapshot
	err      error
}

// HubDependencies contains everything a Hub needs.
type HubDependencies struct {
	Client  dsentr.ClientInterface
	Cache   *SnapshotCache
	Fetcher *Fetcher
}

func NewHub(deps HubDependencies) *Hub {
	return &Hub{
		client:   deps.Client,
		cache:    deps.Cache,
		fetcher:  deps.Fetcher,
		inflight: make(map[string]*inflightFetch),
	}
}

func (h *Hub) Cache() *SnapshotCache {
	return h.cache
}

// Snapshot returns the cached snapshot for a workspace, if any.
func (h *Hub) Snapshot(workspaceID string) (*domain.GroupedConnectionsSnapshot, bool) {
	return h.cache.Get(workspaceID)
}

// EnsureSnapshot returns the cached snapshot or fetches one. Concurrent
// calls for the same workspace share a single upstream fetch.
func (h *Hub) EnsureSnapshot(ctx context.Context, workspaceID string) (*domain.GroupedConnectionsSnapshot, error) {
	if snapshot, ok := h.cache.Get(workspaceID); ok {
		return snapshot, nil
	}

	return h.fetchShared(ctx, workspaceID, false)
}

// Refetch fetches a fresh snapshot unconditionally. A fetch already in
// flight is waited out first so the new read cannot predate whatever event
// prompted the refetch.
func (h *Hub) Refetch(ctx context.Context, workspaceID string) (*domain.GroupedConnectionsSnapshot, error) {
	return h.fetchShared(ctx, workspaceID, true)
}

// Invalidate drops the cached snapshot. Subscribers stay registered and see
// the next write.
func (h *Hub) Invalidate(workspaceID string) {
	h.cache.Evict(workspaceID)
}

func (h *Hub) fetchShared(ctx context.Context, workspaceID string, force bool) (*domain.GroupedConnectionsSnapshot, error) {
	for {
		h.mu.Lock()
		if fl, ok := h.inflight[workspaceID]; ok {
			h.mu.Unlock()

			if !force {
				return h.awaitFetch(ctx, fl)
			}

			// Forced fetches wait out the running one, then start fresh.
			select {
			case <-fl.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		fl := &inflightFetch{done: make(chan struct{})}
		h.inflight[workspaceID] = fl
		h.mu.Unlock()

		fl.snapshot, fl.err = h.fetcher.FetchSnapshot(ctx, workspaceID)
		if fl.err == nil {
			h.cache.Set(workspaceID, fl.snapshot)
			// Re-read so callers observe the version the cache stamped.
			if stored, ok := h.cache.Get(workspaceID); ok {
				fl.snapshot = stored
			}
		}

		h.mu.Lock()
		delete(h.inflight, workspaceID)
		h.mu.Unlock()
		close(fl.done)

		return fl.snapshot, fl.err
	}
}

func (h *Hub) awaitFetch(ctx context.Context, fl *inflightFetch) (*domain.GroupedConnectionsSnapshot, error) {
	select {
	case <-fl.done:
		return fl.snapshot, fl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Promote shares a personal connection with the whole workspace. The
// mutation response carries the updated inventory, which replaces the
// cached snapshot before Promote returns.
func (h *Hub) Promote(ctx context.Context, workspaceID, connectionID string) (*domain.GroupedConnectionsSnapshot, error) {
	resp, err := h.client.PromoteConnection(ctx, workspaceID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to promote connection: %w", err)
	}

	return h.applyInventory(workspaceID, resp.ConnectionInventory), nil
}

// Unshare reverts a workspace-shared connection back to personal.
func (h *Hub) Unshare(ctx context.Context, workspaceID, connectionID string) (*domain.GroupedConnectionsSnapshot, error) {
	resp, err := h.client.UnshareConnection(ctx, workspaceID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to unshare connection: %w", err)
	}

	return h.applyInventory(workspaceID, resp.ConnectionInventory), nil
}

// Disconnect removes a connection entirely.
func (h *Hub) Disconnect(ctx context.Context, workspaceID string, scope domain.ConnectionScope, connectionID string) (*domain.GroupedConnectionsSnapshot, error) {
	resp, err := h.client.DisconnectConnection(ctx, workspaceID, string(scope), connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to disconnect connection: %w", err)
	}

	return h.applyInventory(workspaceID, resp.ConnectionInventory), nil
}

// RefreshConnection forces a provider token refresh. On success the
// connection comes back without its reconnect flag.
func (h *Hub) RefreshConnection(ctx context.Context, workspaceID, connectionID string) (*domain.GroupedConnectionsSnapshot, error) {
	resp, err := h.client.RefreshConnection(ctx, workspaceID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh connection: %w", err)
	}

	return h.applyInventory(workspaceID, resp.ConnectionInventory), nil
}

// applyInventory rebuilds a snapshot from a mutation response and stores it.
// Every open panel on the workspace reconciles during the Set.
func (h *Hub) applyInventory(workspaceID string, inventory dsentr.ConnectionInventory) *domain.GroupedConnectionsSnapshot {
	snapshot := h.fetcher.SnapshotFromInventory(workspaceID, inventory)
	h.cache.Set(workspaceID, snapshot)

	stored, ok := h.cache.Get(workspaceID)
	if !ok {
		// Evicted between Set and Get; the unstamped snapshot is still
		// the freshest data we have.
		log.Warn().Str("workspace_id", workspaceID).Msg("Snapshot evicted during write-through")
		return snapshot
	}
	return stored
}
