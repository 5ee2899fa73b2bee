package domain

import "strings"

// ConnectionSelection is the triple a workflow node stores to remember which
// connection it uses. The account email rides along so a selection can be
// re-bound when the same account is reconnected under a new connection id.
type ConnectionSelection struct {
	ConnectionScope ConnectionScope `json:"connection_scope"`
	ConnectionID    string          `json:"connection_id"`
	AccountEmail    string          `json:"account_email"`
}

func (s ConnectionSelection) IsZero() bool {
	return s.ConnectionScope == "" && s.ConnectionID == "" && s.AccountEmail == ""
}

func (s ConnectionSelection) Equal(other ConnectionSelection) bool {
	return s.ConnectionScope == other.ConnectionScope &&
		s.ConnectionID == other.ConnectionID &&
		s.AccountEmail == other.AccountEmail
}

// EmailMatches compares account emails the way resolution does: trimmed and
// case-insensitive. Empty emails never match.
func (s ConnectionSelection) EmailMatches(email string) bool {
	stored := strings.TrimSpace(strings.ToLower(s.AccountEmail))
	candidate := strings.TrimSpace(strings.ToLower(email))
	return stored != "" && stored == candidate
}

// SelectionOf builds the selection triple pointing at a connection.
func SelectionOf(conn Connection) ConnectionSelection {
	return ConnectionSelection{
		ConnectionScope: conn.Scope,
		ConnectionID:    conn.ID,
		AccountEmail:    conn.AccountEmail,
	}
}

// SelectionPatch replaces a node's stored selection wholesale. A nil
// Selection clears it. Field-level merges are deliberately not supported;
// the stored triple always moves as one unit.
type SelectionPatch struct {
	Selection *ConnectionSelection `json:"selection"`
}

func ClearSelectionPatch() *SelectionPatch {
	return &SelectionPatch{}
}

func SetSelectionPatch(selection ConnectionSelection) *SelectionPatch {
	return &SelectionPatch{Selection: &selection}
}

// AppliesTo reports whether applying the patch would change the stored
// selection. Stores use this to keep no-op patches from dirtying a node.
func (p *SelectionPatch) AppliesTo(stored ConnectionSelection) bool {
	if p == nil {
		return false
	}
	if p.Selection == nil {
		return !stored.IsZero()
	}
	return !p.Selection.Equal(stored)
}

type ResolutionState string

const (
	// ResolutionStateResolved means the node is bound to a usable connection.
	ResolutionStateResolved ResolutionState = "resolved"
	// ResolutionStateMissing means nothing usable exists for the node.
	ResolutionStateMissing ResolutionState = "missing"
	// ResolutionStateRequiresChoice means several candidates exist and the
	// hub refuses to guess between them.
	ResolutionStateRequiresChoice ResolutionState = "requires_choice"
	// ResolutionStateRequiresReconnect means the matching connection exists
	// but its grant must be re-authorized first.
	ResolutionStateRequiresReconnect ResolutionState = "requires_reconnect"
)

// Resolution is the outcome of reconciling a stored selection against the
// current provider connection set.
type Resolution struct {
	State      ResolutionState
	Connection *Connection
	// Patch is non-nil when the node's stored selection must change to
	// match the outcome. It is nil whenever the stored triple already
	// equals what resolution decided.
	Patch           *SelectionPatch
	ValidationError *NodeValidationError
}

func (r Resolution) Resolved() bool {
	return r.State == ResolutionStateResolved
}
