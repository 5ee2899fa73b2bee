package connections

import (
	"fmt"

	"github.com/dsentr/dsentr/pkg/domain"
)

// Reconcile decides what a node's connection binding should be, given the
// selection it stored and the provider connections that exist right now. It
// is a pure function: no I/O, no clock, and reconciling its own outcome
// against the same set yields the same resolution with no further patch.
//
// Priority order, first match wins:
//
//  1. the stored (scope, id) still names a selectable connection
//  2. a selectable connection carries the stored account email
//  3. the stored connection exists but awaits reconnect: hold the binding
//     and surface the reconnect
//  4. a stored workspace selection vanished: clear, never substitute
//  5. nothing usable stored and exactly one selectable personal connection:
//     take it
//  6. nothing usable stored, no selectable personal connections, exactly one
//     selectable workspace connection: take it
//  7. clear whatever was stored and report why nothing resolved
func Reconcile(stored domain.ConnectionSelection, set domain.ProviderConnectionSet) domain.Resolution {
	// Step 1: exact match on (scope, id).
	var reconnectTarget *domain.Connection
	if stored.ConnectionID != "" && stored.ConnectionScope.IsValid() {
		if conn, ok := set.Find(stored.ConnectionScope, stored.ConnectionID); ok {
			if conn.Selectable() {
				return domain.Resolution{
					State:      domain.ResolutionStateResolved,
					Connection: &conn,
				}
			}
			if conn.RequiresReconnect() {
				reconnectTarget = &conn
			}
		}
	}

	// Step 2: the same account under a different connection id. This is how
	// a binding survives the user disconnecting and reconnecting a provider.
	if !stored.IsZero() {
		if conn, ok := findEmailMatch(set, stored); ok {
			resolution := domain.Resolution{
				State:      domain.ResolutionStateResolved,
				Connection: &conn,
			}
			patch := domain.SetSelectionPatch(domain.SelectionOf(conn))
			if patch.AppliesTo(stored) {
				resolution.Patch = patch
			}
			return resolution
		}
	}

	// Step 3: the stored connection (by id, or by account email under a new
	// id) is still there but its grant died. Keep the binding so the panel
	// can offer a reconnect instead of silently rebinding the node to
	// another account.
	if reconnectTarget == nil && !stored.IsZero() {
		if conn, ok := findEmailReconnectTarget(set, stored); ok {
			reconnectTarget = &conn
		}
	}
	if reconnectTarget != nil {
		return domain.Resolution{
			State:      domain.ResolutionStateRequiresReconnect,
			Connection: reconnectTarget,
			ValidationError: &domain.NodeValidationError{
				Code:    domain.NodeValidationCode_ConnectionRequiresReconnect,
				Message: fmt.Sprintf("connection %s must be reconnected", describeConnection(*reconnectTarget)),
			},
		}
	}

	// Step 4: a vanished workspace selection clears the node outright. A
	// shared connection was deliberately chosen; substituting someone
	// else's is never safe.
	if stored.ConnectionScope == domain.ConnectionScopeWorkspace {
		return domain.Resolution{
			State: domain.ResolutionStateMissing,
			Patch: domain.ClearSelectionPatch(),
			ValidationError: &domain.NodeValidationError{
				Code:    domain.NodeValidationCode_ConnectionMissing,
				Message: "the shared connection this step used is no longer available",
			},
		}
	}

	personal := set.SelectablePersonal()
	workspace := set.SelectableWorkspace()

	// Step 5: exactly one personal connection. Workspace shares do not
	// block the auto-select; your own connection is always the default.
	if len(personal) == 1 {
		return autoSelect(stored, personal[0])
	}

	// Step 6: no personal connection at all, exactly one workspace share.
	if len(personal) == 0 && len(workspace) == 1 {
		return autoSelect(stored, workspace[0])
	}

	// Step 7: nothing resolvable. Clear a stale stored selection and say
	// why the node cannot run.
	resolution := domain.Resolution{}
	if !stored.IsZero() {
		resolution.Patch = domain.ClearSelectionPatch()
	}

	if len(personal)+len(workspace) > 1 {
		resolution.State = domain.ResolutionStateRequiresChoice
		resolution.ValidationError = &domain.NodeValidationError{
			Code:    domain.NodeValidationCode_ConnectionRequiresChoice,
			Message: "several connections are available, choose one for this step",
		}
		return resolution
	}

	resolution.State = domain.ResolutionStateMissing
	resolution.ValidationError = &domain.NodeValidationError{
		Code:    domain.NodeValidationCode_ConnectionMissing,
		Message: "no connection is available for this step",
	}
	return resolution
}

func autoSelect(stored domain.ConnectionSelection, conn domain.Connection) domain.Resolution {
	resolution := domain.Resolution{
		State:      domain.ResolutionStateResolved,
		Connection: &conn,
	}

	patch := domain.SetSelectionPatch(domain.SelectionOf(conn))
	if patch.AppliesTo(stored) {
		resolution.Patch = patch
	}
	return resolution
}

func describeConnection(conn domain.Connection) string {
	if conn.AccountEmail != "" {
		return conn.AccountEmail
	}
	if conn.DisplayName != "" {
		return conn.DisplayName
	}
	return conn.ID
}
