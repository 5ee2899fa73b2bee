package domain

import (
	"sort"
	"time"
)

// ProviderConnectionSet is the slice of a snapshot that belongs to one
// provider: the caller's personal connections and the workspace-shared ones,
// each deduplicated by (scope, id) and ordered most recently connected first.
type ProviderConnectionSet struct {
	Provider  ProviderType `json:"provider"`
	Personal  []Connection `json:"personal"`
	Workspace []Connection `json:"workspace"`
}

func (s ProviderConnectionSet) IsEmpty() bool {
	return len(s.Personal) == 0 && len(s.Workspace) == 0
}

// SelectablePersonal returns the personal connections a node may bind to.
// Connections awaiting reconnect are excluded.
func (s ProviderConnectionSet) SelectablePersonal() []Connection {
	return selectableOnly(s.Personal)
}

// SelectableWorkspace returns the workspace-shared connections a node may
// bind to. Connections awaiting reconnect are excluded.
func (s ProviderConnectionSet) SelectableWorkspace() []Connection {
	return selectableOnly(s.Workspace)
}

// Find returns the connection with the given scope and id, whether or not
// it is selectable.
func (s ProviderConnectionSet) Find(scope ConnectionScope, id string) (Connection, bool) {
	var list []Connection
	switch scope {
	case ConnectionScopePersonal:
		list = s.Personal
	case ConnectionScopeWorkspace:
		list = s.Workspace
	default:
		return Connection{}, false
	}

	for _, conn := range list {
		if conn.ID == id {
			return conn, true
		}
	}

	return Connection{}, false
}

func selectableOnly(conns []Connection) []Connection {
	out := make([]Connection, 0, len(conns))
	for _, conn := range conns {
		if conn.Selectable() {
			out = append(out, conn)
		}
	}
	return out
}

// GroupedConnectionsSnapshot is an immutable grouped view of one workspace's
// connection inventory. Snapshots are replaced wholesale, never patched in
// place, and a version stamped by the cache increases with every replacement.
// Accessors hand out copies so a holder never observes a later write.
type GroupedConnectionsSnapshot struct {
	workspaceID string
	version     uint64
	fetchedAt   time.Time
	byProvider  map[ProviderType]ProviderConnectionSet
}

// NewGroupedConnectionsSnapshot groups a flat inventory into per-provider
// buckets. Duplicate (scope, id) pairs collapse to their first occurrence.
func NewGroupedConnectionsSnapshot(workspaceID string, connections []Connection) *GroupedConnectionsSnapshot {
	type scopedID struct {
		scope ConnectionScope
		id    string
	}

	byProvider := make(map[ProviderType]ProviderConnectionSet)
	seen := make(map[scopedID]bool, len(connections))

	for _, conn := range connections {
		key := scopedID{scope: conn.Scope, id: conn.ID}
		if seen[key] {
			continue
		}
		seen[key] = true

		provider := NormalizeProviderType(string(conn.Provider))
		conn.Provider = provider

		set := byProvider[provider]
		set.Provider = provider
		switch conn.Scope {
		case ConnectionScopePersonal:
			set.Personal = append(set.Personal, conn)
		case ConnectionScopeWorkspace:
			set.Workspace = append(set.Workspace, conn)
		}
		byProvider[provider] = set
	}

	for provider, set := range byProvider {
		sortConnections(set.Personal)
		sortConnections(set.Workspace)
		byProvider[provider] = set
	}

	return &GroupedConnectionsSnapshot{
		workspaceID: workspaceID,
		fetchedAt:   time.Now(),
		byProvider:  byProvider,
	}
}

func sortConnections(conns []Connection) {
	sort.SliceStable(conns, func(i, j int) bool {
		if !conns[i].ConnectedAt.Equal(conns[j].ConnectedAt) {
			return conns[i].ConnectedAt.After(conns[j].ConnectedAt)
		}
		return conns[i].ID < conns[j].ID
	})
}

func (s *GroupedConnectionsSnapshot) WorkspaceID() string {
	return s.workspaceID
}

// Version is assigned by the cache when the snapshot is stored. A snapshot
// that never went through the cache reports zero.
func (s *GroupedConnectionsSnapshot) Version() uint64 {
	return s.version
}

func (s *GroupedConnectionsSnapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// WithVersion returns a copy of the snapshot carrying the given version. The
// receiver is left untouched.
func (s *GroupedConnectionsSnapshot) WithVersion(version uint64) *GroupedConnectionsSnapshot {
	copied := *s
	copied.version = version
	return &copied
}

// Provider returns the connection set for one provider. The provider key is
// normalized before lookup and an unknown provider yields an empty set. The
// returned slices are copies.
func (s *GroupedConnectionsSnapshot) Provider(provider ProviderType) ProviderConnectionSet {
	canonical := NormalizeProviderType(string(provider))

	set, ok := s.byProvider[canonical]
	if !ok {
		return ProviderConnectionSet{Provider: canonical}
	}

	return ProviderConnectionSet{
		Provider:  canonical,
		Personal:  append([]Connection(nil), set.Personal...),
		Workspace: append([]Connection(nil), set.Workspace...),
	}
}

// Providers lists every provider with at least one connection, sorted.
func (s *GroupedConnectionsSnapshot) Providers() []ProviderType {
	providers := make([]ProviderType, 0, len(s.byProvider))
	for provider := range s.byProvider {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// Connections flattens the snapshot back into a copied inventory list.
func (s *GroupedConnectionsSnapshot) Connections() []Connection {
	var out []Connection
	for _, provider := range s.Providers() {
		set := s.byProvider[provider]
		out = append(out, set.Personal...)
		out = append(out, set.Workspace...)
	}
	return out
}

func (s *GroupedConnectionsSnapshot) TotalCount() int {
	total := 0
	for _, set := range s.byProvider {
		total += len(set.Personal) + len(set.Workspace)
	}
	return total
}
