package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dsentr/dsentr/internal/initialization"
	"github.com/dsentr/dsentr/internal/server"
	"github.com/dsentr/dsentr/internal/version"
	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewStartCommand(hubContainer *initialization.HubContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the hub, with guided setup on first launch",
		Long: `Run the connection hub service. A hub without a stored identity first
walks through platform registration, then starts serving.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL, _ := cmd.Flags().GetString("api-url")
			return runStart(hubContainer, apiURL)
		},
	}
}

func runStart(hubContainer *initialization.HubContainer, apiURLOverride string) error {
	ctx := context.Background()
	configManager := hubContainer.GetConfigManager()

	if !configManager.IsSetupComplete(ctx) {
		if err := runGuidedSetup(ctx, configManager); err != nil {
			return fmt.Errorf("setup did not complete: %w", err)
		}
	}

	return runHub(hubContainer, apiURLOverride)
}

// runGuidedSetup performs first-time registration while a probe server
// answers health checks, so the platform can verify the hub address during
// the handshake. The probe is torn down before the real server binds.
func runGuidedSetup(ctx context.Context, configManager domain.ConfigManager) error {
	probeCtx, stopProbe := context.WithCancel(ctx)

	probeDone := make(chan struct{})
	go func() {
		defer close(probeDone)
		serveSetupProbe(probeCtx)
	}()

	_, err := initialization.RunFirstTimeSetup(ctx, initialization.RunFirstTimeSetupParams{
		ConfigManager: configManager,
	})

	stopProbe()
	<-probeDone

	return err
}

func runHub(hubContainer *initialization.HubContainer, apiURLOverride string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configManager := hubContainer.GetConfigManager()
	config, err := configManager.GetConfig(ctx)
	if err != nil || config.HubID == "" || !config.SetupComplete {
		return fmt.Errorf("no hub identity stored, run 'start' again to set up")
	}

	runtime, err := initialization.LoadRuntimeConfig()
	if err != nil {
		return fmt.Errorf("failed to load runtime configuration: %w", err)
	}

	if apiURLOverride != "" {
		config.APIBaseURL = apiURLOverride
	}

	log.Info().
		Str("hub_id", config.HubID).
		Str("api_base_url", config.APIBaseURL).
		Msg("Starting hub service")

	dsentrClient := dsentr.NewClient(
		dsentr.WithBaseURL(config.APIBaseURL),
		dsentr.WithHubID(config.HubID),
		dsentr.WithEd25519PrivateKey(config.Ed25519PrivateKey),
	)

	deps, err := hubContainer.BuildHubDependencies(ctx, initialization.HubDependencyConfig{
		DsentrClient: dsentrClient,
		HubID:        config.HubID,
		Config:       config,
		Runtime:      runtime,
	})
	if err != nil {
		return fmt.Errorf("failed to build hub dependencies: %w", err)
	}

	if len(config.WorkspaceAssignments) == 0 {
		return fmt.Errorf("no workspace assignments in config, re-run setup")
	}

	if err := deps.RefreshScheduler.Start(); err != nil {
		return fmt.Errorf("failed to start refresh scheduler: %w", err)
	}
	defer deps.RefreshScheduler.Stop()

	if runtime.RedisAddr != "" {
		go func() {
			if err := deps.PushSyncManager.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Push sync stopped")
			}
		}()
		defer deps.PushSyncManager.Stop()
	}

	httpServer := server.NewHTTPServer(ctx, server.HTTPServerDeps{
		Config:        config,
		HubController: deps.HubController,
	})

	if err := httpServer.Listen(runtime.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	log.Info().Msg("Hub service stopped")
	return nil
}

// serveSetupProbe answers health checks on the hub address while setup is in
// flight. It serves nothing else.
func serveSetupProbe(ctx context.Context) {
	address := ":8090"
	if runtime, err := initialization.LoadRuntimeConfig(); err == nil {
		address = runtime.HTTPAddress
	}

	app := fiber.New(fiber.Config{AppName: "dsentr-hub-setup"})
	app.Use(cors.New())
	app.Use(logger.New())

	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":     "healthy",
			"service":    "dsentr-hub",
			"build":      version.Current(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"setup_mode": true,
		})
	})

	if err := app.Listen(address, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("Setup probe server failed")
	}
}
