package managers

import (
	"context"
	"fmt"

	"github.com/dsentr/dsentr/pkg/connections"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/rs/zerolog/log"
)

// PushSyncManager turns platform connection events into hub refetches so
// cached snapshots converge without waiting for the next scheduled sync.
type PushSyncManager struct {
	hub      *connections.Hub
	listener domain.ConnectionEventListener
}

func NewPushSyncManager(hub *connections.Hub, listener domain.ConnectionEventListener) *PushSyncManager {
	return &PushSyncManager{
		hub:      hub,
		listener: listener,
	}
}

// Start blocks until the context is cancelled or the listener stops. A
// manager built without a listener still serves direct HandleEvent calls,
// it just has nothing to subscribe to.
func (m *PushSyncManager) Start(ctx context.Context) error {
	if m.listener == nil {
		return fmt.Errorf("no connection event listener configured")
	}

	log.Info().Msg("Starting connection push sync")

	return m.listener.Listen(ctx, m.HandleEvent)
}

func (m *PushSyncManager) HandleEvent(ctx context.Context, event domain.ConnectionEvent) error {
	if event.WorkspaceID == "" {
		return fmt.Errorf("connection event %s has no workspace id", event.ID)
	}

	if _, err := m.hub.Refetch(ctx, event.WorkspaceID); err != nil {
		return fmt.Errorf("failed to refetch connections for workspace %s: %w", event.WorkspaceID, err)
	}

	log.Debug().
		Str("workspace_id", event.WorkspaceID).
		Str("event_type", string(event.Type)).
		Msg("Refetched connection snapshot after push event")

	return nil
}

func (m *PushSyncManager) Stop() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}
