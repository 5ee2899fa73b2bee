package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsentr/dsentr/pkg/domain"
)

func seedNode(t *testing.T, store *NodeStore, node domain.WorkflowNode) domain.WorkflowNode {
	t.Helper()
	require.NoError(t, store.SaveNode(context.Background(), node))
	saved, err := store.GetNode(context.Background(), node.WorkspaceID, node.ID)
	require.NoError(t, err)
	return saved
}

func TestGetNodeMissing(t *testing.T) {
	store := NewNodeStore()

	_, err := store.GetNode(context.Background(), "ws-1", "n1")

	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestSaveAndListNodes(t *testing.T) {
	store := NewNodeStore()

	seedNode(t, store, domain.WorkflowNode{ID: "n2", WorkspaceID: "ws-1", Provider: domain.ProviderType_Slack})
	seedNode(t, store, domain.WorkflowNode{ID: "n1", WorkspaceID: "ws-1", Provider: domain.ProviderType_Teams})
	seedNode(t, store, domain.WorkflowNode{ID: "n3", WorkspaceID: "ws-2", Provider: domain.ProviderType_Slack})

	nodes, err := store.ListNodes(context.Background(), "ws-1")
	require.NoError(t, err)

	require.Len(t, nodes, 2)
	assert.Equal(t, "n1", nodes[0].ID)
	assert.Equal(t, "n2", nodes[1].ID)
}

func TestApplySelectionPatch(t *testing.T) {
	selection := domain.ConnectionSelection{
		ConnectionScope: domain.ConnectionScopePersonal,
		ConnectionID:    "c1",
		AccountEmail:    "ada@acme.test",
	}

	tests := []struct {
		name          string
		initial       domain.ConnectionSelection
		patch         *domain.SelectionPatch
		wantSelection domain.ConnectionSelection
		wantDirty     bool
	}{
		{
			name:          "setting a selection dirties the node",
			initial:       domain.ConnectionSelection{},
			patch:         domain.SetSelectionPatch(selection),
			wantSelection: selection,
			wantDirty:     true,
		},
		{
			name:          "clearing a selection dirties the node",
			initial:       selection,
			patch:         domain.ClearSelectionPatch(),
			wantSelection: domain.ConnectionSelection{},
			wantDirty:     true,
		},
		{
			name:          "re-applying the stored selection is a no-op",
			initial:       selection,
			patch:         domain.SetSelectionPatch(selection),
			wantSelection: selection,
			wantDirty:     false,
		},
		{
			name:          "clearing an empty selection is a no-op",
			initial:       domain.ConnectionSelection{},
			patch:         domain.ClearSelectionPatch(),
			wantSelection: domain.ConnectionSelection{},
			wantDirty:     false,
		},
		{
			name:          "nil patch is a no-op",
			initial:       selection,
			patch:         nil,
			wantSelection: selection,
			wantDirty:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewNodeStore()
			saved := seedNode(t, store, domain.WorkflowNode{
				ID:          "n1",
				WorkspaceID: "ws-1",
				Provider:    domain.ProviderType_Slack,
				Selection:   tt.initial,
			})

			updated, err := store.ApplySelectionPatch(context.Background(), "ws-1", "n1", tt.patch)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSelection, updated.Selection)
			assert.Equal(t, tt.wantDirty, updated.Dirty)
			if !tt.wantDirty {
				assert.Equal(t, saved.UpdatedAt, updated.UpdatedAt, "a no-op must not touch the update time")
			}

			stored, err := store.GetNode(context.Background(), "ws-1", "n1")
			require.NoError(t, err)
			assert.Equal(t, updated, stored)
		})
	}
}

func TestApplySelectionPatchMissingNode(t *testing.T) {
	store := NewNodeStore()

	_, err := store.ApplySelectionPatch(context.Background(), "ws-1", "n1", domain.ClearSelectionPatch())

	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestSetValidationErrors(t *testing.T) {
	store := NewNodeStore()
	seedNode(t, store, domain.WorkflowNode{ID: "n1", WorkspaceID: "ws-1", Provider: domain.ProviderType_Slack})

	validationErr := domain.NodeValidationError{
		Code:    domain.NodeValidationCode_ConnectionMissing,
		Message: "no connection is available for this step",
	}

	require.NoError(t, store.SetValidationErrors(context.Background(), "ws-1", "n1", []domain.NodeValidationError{validationErr}))

	node, err := store.GetNode(context.Background(), "ws-1", "n1")
	require.NoError(t, err)
	require.Len(t, node.ValidationErrors, 1)
	assert.Equal(t, validationErr, node.ValidationErrors[0])

	require.NoError(t, store.SetValidationErrors(context.Background(), "ws-1", "n1", nil))

	node, err = store.GetNode(context.Background(), "ws-1", "n1")
	require.NoError(t, err)
	assert.Empty(t, node.ValidationErrors)
}
