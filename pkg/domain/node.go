package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNodeNotFound = errors.New("node not found")

type NodeValidationCode string

const (
	NodeValidationCode_ConnectionMissing           NodeValidationCode = "connection_missing"
	NodeValidationCode_ConnectionRequiresChoice    NodeValidationCode = "connection_requires_choice"
	NodeValidationCode_ConnectionRequiresReconnect NodeValidationCode = "connection_requires_reconnect"
)

// NodeValidationError marks a node as not runnable until the user intervenes.
// The code is stable so the front end can localize the message.
type NodeValidationError struct {
	Code    NodeValidationCode `json:"code"`
	Message string             `json:"message"`
}

func (e NodeValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WorkflowNode is the slice of a workflow node the connection hub cares
// about: which provider it talks to and which connection it selected.
type WorkflowNode struct {
	ID          string
	WorkflowID  string
	WorkspaceID string
	Name        string
	Provider    ProviderType
	Selection   ConnectionSelection
	// Dirty marks unsaved editor changes. Applying a selection patch that
	// changes nothing must leave it untouched.
	Dirty            bool
	ValidationErrors []NodeValidationError
	UpdatedAt        time.Time
}

func (n WorkflowNode) HasSelection() bool {
	return !n.Selection.IsZero()
}

// NodeStore persists node selections for the hub.
type NodeStore interface {
	GetNode(ctx context.Context, workspaceID, nodeID string) (WorkflowNode, error)
	SaveNode(ctx context.Context, node WorkflowNode) error
	ListNodes(ctx context.Context, workspaceID string) ([]WorkflowNode, error)

	// ApplySelectionPatch replaces the node's stored selection with the
	// patch and returns the updated node. A patch that changes nothing is
	// a no-op: the node is returned as stored, with its dirty flag and
	// update time untouched.
	ApplySelectionPatch(ctx context.Context, workspaceID, nodeID string, patch *SelectionPatch) (WorkflowNode, error)

	// SetValidationErrors replaces the node's validation errors. Passing
	// an empty slice clears them.
	SetValidationErrors(ctx context.Context, workspaceID, nodeID string, validationErrors []NodeValidationError) error
}
