package panels

import (
	"github.com/dsentr/dsentr/pkg/domain"
)

// PanelView is what a configuration panel renders for one node: the stored
// selection after reconciliation, the connection it resolved to, and the
// candidates the user may switch to. Loaded is false until the workspace
// inventory has arrived; a view is never built from an absent snapshot, so a
// node keeps its stored selection on screen while the first fetch runs.
type PanelView struct {
	NodeID   string              `json:"node_id"`
	NodeName string              `json:"node_name"`
	Provider domain.ProviderType `json:"provider"`

	Loaded          bool                       `json:"loaded"`
	SnapshotVersion uint64                     `json:"snapshot_version"`
	State           domain.ResolutionState     `json:"state,omitempty"`
	Selection       domain.ConnectionSelection `json:"selection"`
	Selected        *domain.Connection         `json:"selected,omitempty"`

	Personal  []domain.Connection `json:"personal"`
	Workspace []domain.Connection `json:"workspace"`

	ValidationError *domain.NodeValidationError `json:"validation_error,omitempty"`
}

// Equal reports whether two views render the same. The snapshot version is
// bookkeeping and deliberately ignored: a refetch that changes nothing must
// not re-emit.
func (v PanelView) Equal(other PanelView) bool {
	if v.NodeID != other.NodeID ||
		v.NodeName != other.NodeName ||
		v.Provider != other.Provider ||
		v.Loaded != other.Loaded ||
		v.State != other.State ||
		!v.Selection.Equal(other.Selection) {
		return false
	}

	if (v.Selected == nil) != (other.Selected == nil) {
		return false
	}
	if v.Selected != nil && *v.Selected != *other.Selected {
		return false
	}

	if (v.ValidationError == nil) != (other.ValidationError == nil) {
		return false
	}
	if v.ValidationError != nil && *v.ValidationError != *other.ValidationError {
		return false
	}

	return connectionsEqual(v.Personal, other.Personal) &&
		connectionsEqual(v.Workspace, other.Workspace)
}

func connectionsEqual(a, b []domain.Connection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pendingView renders a node before the first snapshot arrives.
func pendingView(node domain.WorkflowNode) PanelView {
	return PanelView{
		NodeID:    node.ID,
		NodeName:  node.Name,
		Provider:  node.Provider,
		Selection: node.Selection,
	}
}

// buildView renders a node against a reconciled connection set.
func buildView(node domain.WorkflowNode, version uint64, set domain.ProviderConnectionSet, res domain.Resolution) PanelView {
	return PanelView{
		NodeID:          node.ID,
		NodeName:        node.Name,
		Provider:        set.Provider,
		Loaded:          true,
		SnapshotVersion: version,
		State:           res.State,
		Selection:       node.Selection,
		Selected:        res.Connection,
		Personal:        set.Personal,
		Workspace:       set.Workspace,
		ValidationError: res.ValidationError,
	}
}
