package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/dsentr/dsentr/pkg/connections"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

type RefreshSchedulerConfig struct {
	SyncSpec     string
	RefreshSpec  string
	ExpiryWindow time.Duration
	JobTimeout   time.Duration
}

// ConnectionRefreshScheduler keeps cached snapshots fresh on a timer and asks
// the platform to refresh grants that are about to expire, so panels rarely
// see a connection fall into requires_reconnect.
type ConnectionRefreshScheduler struct {
	hub        *connections.Hub
	workspaces domain.HubWorkspaceManager
	cron       *cron.Cron

	syncSpec     string
	refreshSpec  string
	expiryWindow time.Duration
	jobTimeout   time.Duration
}

func NewConnectionRefreshScheduler(hub *connections.Hub, workspaces domain.HubWorkspaceManager, cfg RefreshSchedulerConfig) *ConnectionRefreshScheduler {
	syncSpec := cfg.SyncSpec
	if syncSpec == "" {
		syncSpec = "@every 5m"
	}

	refreshSpec := cfg.RefreshSpec
	if refreshSpec == "" {
		refreshSpec = "@every 1m"
	}

	expiryWindow := cfg.ExpiryWindow
	if expiryWindow == 0 {
		expiryWindow = 10 * time.Minute
	}

	jobTimeout := cfg.JobTimeout
	if jobTimeout == 0 {
		jobTimeout = time.Minute
	}

	return &ConnectionRefreshScheduler{
		hub:          hub,
		workspaces:   workspaces,
		cron:         cron.New(),
		syncSpec:     syncSpec,
		refreshSpec:  refreshSpec,
		expiryWindow: expiryWindow,
		jobTimeout:   jobTimeout,
	}
}

func (s *ConnectionRefreshScheduler) Start() error {
	if err := s.cron.AddFunc(s.syncSpec, s.SyncSnapshots); err != nil {
		return fmt.Errorf("failed to schedule snapshot sync: %w", err)
	}

	if err := s.cron.AddFunc(s.refreshSpec, s.RefreshExpiring); err != nil {
		return fmt.Errorf("failed to schedule connection refresh: %w", err)
	}

	s.cron.Start()

	log.Info().
		Str("sync_spec", s.syncSpec).
		Str("refresh_spec", s.refreshSpec).
		Msg("Started connection refresh scheduler")

	return nil
}

func (s *ConnectionRefreshScheduler) Stop() {
	s.cron.Stop()
}

// SyncSnapshots refetches every assigned workspace so cached inventories do
// not drift when push events are missed.
func (s *ConnectionRefreshScheduler) SyncSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	workspaces, err := s.workspaces.GetWorkspaces(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list workspaces for snapshot sync")
		return
	}

	for _, workspace := range workspaces {
		if _, err := s.hub.Refetch(ctx, workspace.ID); err != nil {
			log.Warn().Err(err).Str("workspace_id", workspace.ID).Msg("Failed to re-sync connection snapshot")
		}
	}
}

// RefreshExpiring walks the snapshots the hub already tracks and asks the
// platform to refresh connections whose grants expire inside the window.
// Only cached workspaces are considered, a workspace nobody looked at does
// not need fresh tokens.
func (s *ConnectionRefreshScheduler) RefreshExpiring() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	workspaces, err := s.workspaces.GetWorkspaces(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list workspaces for connection refresh")
		return
	}

	deadline := time.Now().Add(s.expiryWindow)

	for _, workspace := range workspaces {
		snapshot, ok := s.hub.Snapshot(workspace.ID)
		if !ok {
			continue
		}

		for _, conn := range snapshot.Connections() {
			if conn.ExpiresAt.IsZero() || !conn.Selectable() {
				continue
			}
			if conn.ExpiresAt.After(deadline) {
				continue
			}

			if _, err := s.hub.RefreshConnection(ctx, workspace.ID, conn.ID); err != nil {
				log.Warn().
					Err(err).
					Str("workspace_id", workspace.ID).
					Str("connection_id", conn.ID).
					Msg("Failed to refresh expiring connection")
				continue
			}

			log.Debug().
				Str("workspace_id", workspace.ID).
				Str("connection_id", conn.ID).
				Time("expires_at", conn.ExpiresAt).
				Msg("Refreshed expiring connection")
		}
	}
}
