package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ConnectionEventType string

const (
	ConnectionEventType_Updated      ConnectionEventType = "connection.updated"
	ConnectionEventType_Revoked      ConnectionEventType = "connection.revoked"
	ConnectionEventType_Shared       ConnectionEventType = "connection.shared"
	ConnectionEventType_Unshared     ConnectionEventType = "connection.unshared"
	ConnectionEventType_Disconnected ConnectionEventType = "connection.disconnected"
)

// ConnectionEvent is a platform notification that a workspace's connection
// inventory changed and cached snapshots may be stale.
type ConnectionEvent struct {
	ID           string              `json:"id"`
	Type         ConnectionEventType `json:"type"`
	WorkspaceID  string              `json:"workspace_id"`
	ConnectionID string              `json:"connection_id,omitempty"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

func NewConnectionEvent(eventType ConnectionEventType, workspaceID, connectionID string) ConnectionEvent {
	return ConnectionEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		WorkspaceID:  workspaceID,
		ConnectionID: connectionID,
		OccurredAt:   time.Now(),
	}
}

type ConnectionEventHandler func(ctx context.Context, event ConnectionEvent) error

// ConnectionEventListener delivers platform connection events until the
// context is cancelled or Close is called.
type ConnectionEventListener interface {
	Listen(ctx context.Context, handler ConnectionEventHandler) error
	Close() error
}
