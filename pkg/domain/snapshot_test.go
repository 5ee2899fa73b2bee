package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotConn(id string, provider ProviderType, scope ConnectionScope, connectedAt time.Time) Connection {
	return Connection{
		ID:          id,
		Provider:    provider,
		Scope:       scope,
		Status:      ConnectionStatusConnected,
		ConnectedAt: connectedAt,
	}
}

func TestNewGroupedConnectionsSnapshotGroupsAndDeduplicates(t *testing.T) {
	now := time.Now()

	snapshot := NewGroupedConnectionsSnapshot("ws-1", []Connection{
		snapshotConn("c1", ProviderType_Slack, ConnectionScopePersonal, now),
		snapshotConn("c2", ProviderType_Slack, ConnectionScopeWorkspace, now),
		snapshotConn("c3", ProviderType_GitHub, ConnectionScopePersonal, now),
		// Same id as c1 but a different scope, so it is a distinct entry.
		snapshotConn("c1", ProviderType_Slack, ConnectionScopeWorkspace, now),
		// Exact duplicate of c1, dropped.
		snapshotConn("c1", ProviderType_Slack, ConnectionScopePersonal, now.Add(time.Hour)),
	})

	assert.Equal(t, "ws-1", snapshot.WorkspaceID())
	assert.Equal(t, 4, snapshot.TotalCount())
	assert.Equal(t, []ProviderType{ProviderType_GitHub, ProviderType_Slack}, snapshot.Providers())

	slack := snapshot.Provider(ProviderType_Slack)
	require.Len(t, slack.Personal, 1)
	require.Len(t, slack.Workspace, 2)

	// The first occurrence of (personal, c1) won.
	assert.Equal(t, now.Unix(), slack.Personal[0].ConnectedAt.Unix())
}

func TestSnapshotOrdersMostRecentFirstWithIDTiebreak(t *testing.T) {
	base := time.Now()

	snapshot := NewGroupedConnectionsSnapshot("ws-1", []Connection{
		snapshotConn("older", ProviderType_Slack, ConnectionScopePersonal, base.Add(-time.Hour)),
		snapshotConn("b-tied", ProviderType_Slack, ConnectionScopePersonal, base),
		snapshotConn("newest", ProviderType_Slack, ConnectionScopePersonal, base.Add(time.Hour)),
		snapshotConn("a-tied", ProviderType_Slack, ConnectionScopePersonal, base),
	})

	personal := snapshot.Provider(ProviderType_Slack).Personal
	require.Len(t, personal, 4)

	var order []string
	for _, conn := range personal {
		order = append(order, conn.ID)
	}
	assert.Equal(t, []string{"newest", "a-tied", "b-tied", "older"}, order)
}

func TestProviderLookupNormalizesSpelling(t *testing.T) {
	snapshot := NewGroupedConnectionsSnapshot("ws-1", []Connection{
		snapshotConn("c1", "google-sheets", ConnectionScopePersonal, time.Now()),
	})

	for _, spelling := range []ProviderType{"google_sheets", "googleSheets", "Google-Sheets"} {
		set := snapshot.Provider(spelling)
		assert.Equal(t, ProviderType_GoogleSheets, set.Provider)
		assert.Len(t, set.Personal, 1, "spelling %q should find the connection", spelling)
	}

	unknown := snapshot.Provider("notion")
	assert.True(t, unknown.IsEmpty())
}

func TestSnapshotAccessorsReturnCopies(t *testing.T) {
	snapshot := NewGroupedConnectionsSnapshot("ws-1", []Connection{
		snapshotConn("c1", ProviderType_Slack, ConnectionScopePersonal, time.Now()),
		snapshotConn("c2", ProviderType_Slack, ConnectionScopeWorkspace, time.Now()),
	})

	set := snapshot.Provider(ProviderType_Slack)
	set.Personal[0].ID = "tampered"
	set.Workspace[0].Status = ConnectionStatusRequiresReconnect

	reread := snapshot.Provider(ProviderType_Slack)
	assert.Equal(t, "c1", reread.Personal[0].ID)
	assert.Equal(t, ConnectionStatusConnected, reread.Workspace[0].Status)

	flat := snapshot.Connections()
	require.Len(t, flat, 2)
	flat[0].ID = "tampered-again"
	assert.Equal(t, 2, snapshot.TotalCount())
	assert.Equal(t, "c1", snapshot.Provider(ProviderType_Slack).Personal[0].ID)
}

func TestWithVersionLeavesReceiverUntouched(t *testing.T) {
	snapshot := NewGroupedConnectionsSnapshot("ws-1", []Connection{
		snapshotConn("c1", ProviderType_Slack, ConnectionScopePersonal, time.Now()),
	})

	stamped := snapshot.WithVersion(7)

	assert.Equal(t, uint64(7), stamped.Version())
	assert.Equal(t, uint64(0), snapshot.Version())
	assert.Equal(t, snapshot.TotalCount(), stamped.TotalCount())
}

func TestSelectableExcludesReconnect(t *testing.T) {
	healthy := snapshotConn("ok", ProviderType_Slack, ConnectionScopePersonal, time.Now())
	revoked := snapshotConn("revoked", ProviderType_Slack, ConnectionScopePersonal, time.Now())
	revoked.Status = ConnectionStatusRequiresReconnect

	set := NewGroupedConnectionsSnapshot("ws-1", []Connection{healthy, revoked}).Provider(ProviderType_Slack)

	require.Len(t, set.Personal, 2, "reconnect connections stay visible in the set")

	selectable := set.SelectablePersonal()
	require.Len(t, selectable, 1)
	assert.Equal(t, "ok", selectable[0].ID)
}
