package initialization

import (
	"context"
	"fmt"

	"github.com/dsentr/dsentr/internal/controllers"
	"github.com/dsentr/dsentr/internal/managers"
	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/connections"
	"github.com/dsentr/dsentr/pkg/domain"
	inmemorystore "github.com/dsentr/dsentr/pkg/nodestore/inmemory"
	mongodbstore "github.com/dsentr/dsentr/pkg/nodestore/mongodb"
	postgresstore "github.com/dsentr/dsentr/pkg/nodestore/postgresql"
	"github.com/dsentr/dsentr/pkg/panels"

	"github.com/rs/zerolog/log"
)

type HubDependencies struct {
	DsentrClient     *dsentr.Client
	Hub              *connections.Hub
	ProviderSelector domain.ProviderSelector
	PanelService     *panels.Service
	NodeStore        domain.NodeStore
	PushSyncManager  *managers.PushSyncManager
	RefreshScheduler *managers.ConnectionRefreshScheduler
	HubController    *controllers.HubController
}

type HubDependencyConfig struct {
	DsentrClient *dsentr.Client
	HubID        string
	Config       domain.HubConfig
	Runtime      RuntimeConfig
}

type HubContainer struct {
	configManager domain.ConfigManager
}

func NewHubContainer() (*HubContainer, error) {
	configManager, err := domain.NewConfigManager()
	if err != nil {
		return nil, err
	}

	return &HubContainer{
		configManager: configManager,
	}, nil
}

func (c *HubContainer) GetConfigManager() domain.ConfigManager {
	return c.configManager
}

func (c *HubContainer) BuildHubDependencies(ctx context.Context, config HubDependencyConfig) (*HubDependencies, error) {
	log.Info().Msg("Building hub dependencies")

	cache := connections.NewSnapshotCache()
	fetcher := connections.NewFetcher(config.DsentrClient)
	hub := connections.NewHub(connections.HubDependencies{
		Client:  config.DsentrClient,
		Cache:   cache,
		Fetcher: fetcher,
	})

	credentialDecryptor := managers.NewHubCredentialDecryptionService(config.Config.X25519PrivateKey)
	credentialManager := managers.NewHubCredentialManager(config.DsentrClient, credentialDecryptor)
	workspaceManager := managers.NewHubWorkspaceManager(config.DsentrClient)

	providerSelector := domain.NewProviderSelector()

	providerDeps := domain.ProviderDeps{
		HubCredentialManager: credentialManager,
	}

	if err := registerProviders(providerSelector, providerDeps); err != nil {
		return nil, err
	}

	nodeStore, err := buildNodeStore(ctx, config.Runtime)
	if err != nil {
		log.Error().Err(err).Str("backend", config.Runtime.NodeStore).Msg("Failed to build node store")
		return nil, err
	}

	panelService := panels.NewService(panels.ServiceDependencies{
		Hub:       hub,
		NodeStore: nodeStore,
		Selector:  providerSelector,
	})

	refreshScheduler := managers.NewConnectionRefreshScheduler(hub, workspaceManager, managers.RefreshSchedulerConfig{})

	var eventListener domain.ConnectionEventListener
	if config.Runtime.RedisAddr != "" {
		eventListener, err = managers.NewRedisConnectionEventListener(ctx, managers.RedisListenerConfig{
			Addr:     config.Runtime.RedisAddr,
			Password: config.Runtime.RedisPassword,
			DB:       config.Runtime.RedisDB,
		})
		if err != nil {
			log.Error().Err(err).Str("redis_addr", config.Runtime.RedisAddr).Msg("Failed to connect push listener")
			return nil, err
		}
	}

	pushSyncManager := managers.NewPushSyncManager(hub, eventListener)

	hubController := controllers.NewHubController(controllers.HubControllerDependencies{
		Hub:          hub,
		PanelService: panelService,
		PushHandler:  pushSyncManager.HandleEvent,
	})

	log.Info().Msg("Hub dependencies built successfully")

	return &HubDependencies{
		DsentrClient:     config.DsentrClient,
		Hub:              hub,
		ProviderSelector: providerSelector,
		PanelService:     panelService,
		NodeStore:        nodeStore,
		PushSyncManager:  pushSyncManager,
		RefreshScheduler: refreshScheduler,
		HubController:    hubController,
	}, nil
}

func buildNodeStore(ctx context.Context, runtime RuntimeConfig) (domain.NodeStore, error) {
	switch runtime.NodeStore {
	case NodeStore_Memory, "":
		return inmemorystore.NewNodeStore(), nil
	case NodeStore_MongoDB:
		return mongodbstore.New(ctx, mongodbstore.Opts{
			URI:          runtime.MongoDBURI,
			DatabaseName: runtime.MongoDBDatabase,
		})
	case NodeStore_PostgreSQL:
		return postgresstore.New(ctx, postgresstore.Opts{
			URI: runtime.PostgresURI,
		})
	default:
		return nil, fmt.Errorf("unknown node store backend %q", runtime.NodeStore)
	}
}
