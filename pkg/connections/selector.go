package connections

import "github.com/dsentr/dsentr/pkg/domain"

// ProviderSet derives the per-provider connection set a panel works with.
// The provider identifier is normalized before lookup, an unknown provider
// yields an empty set, and a nil snapshot (nothing cached yet) does too.
func ProviderSet(snapshot *domain.GroupedConnectionsSnapshot, provider string) domain.ProviderConnectionSet {
	canonical := domain.NormalizeProviderType(provider)
	if snapshot == nil {
		return domain.ProviderConnectionSet{Provider: canonical}
	}
	return snapshot.Provider(canonical)
}

// SelectableCandidates lists every connection a node could bind to, personal
// before workspace, preserving each list's order. Connections awaiting
// reconnect are excluded.
func SelectableCandidates(set domain.ProviderConnectionSet) []domain.Connection {
	personal := set.SelectablePersonal()
	workspace := set.SelectableWorkspace()

	candidates := make([]domain.Connection, 0, len(personal)+len(workspace))
	candidates = append(candidates, personal...)
	candidates = append(candidates, workspace...)
	return candidates
}

// findEmailMatch looks for a selectable connection whose account email
// matches the stored selection's. When several match, the stored scope wins
// first, then personal over workspace, then set order.
func findEmailMatch(set domain.ProviderConnectionSet, stored domain.ConnectionSelection) (domain.Connection, bool) {
	return findEmailMatchWhere(set, stored, domain.Connection.Selectable)
}

// findEmailReconnectTarget finds a reconnect-pending connection carrying the
// stored account email. Used to surface "reconnect" instead of "missing"
// when the account still exists but its grant died.
func findEmailReconnectTarget(set domain.ProviderConnectionSet, stored domain.ConnectionSelection) (domain.Connection, bool) {
	return findEmailMatchWhere(set, stored, domain.Connection.RequiresReconnect)
}

func findEmailMatchWhere(set domain.ProviderConnectionSet, stored domain.ConnectionSelection, keep func(domain.Connection) bool) (domain.Connection, bool) {
	if stored.AccountEmail == "" {
		return domain.Connection{}, false
	}

	scopeOrder := [][]domain.Connection{set.Personal, set.Workspace}
	if stored.ConnectionScope == domain.ConnectionScopeWorkspace {
		scopeOrder[0], scopeOrder[1] = scopeOrder[1], scopeOrder[0]
	}

	for _, candidates := range scopeOrder {
		for _, conn := range candidates {
			if keep(conn) && stored.EmailMatches(conn.AccountEmail) {
				return conn, true
			}
		}
	}

	return domain.Connection{}, false
}
