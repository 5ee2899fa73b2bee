package server

import (
	"context"
	"time"

	"github.com/dsentr/dsentr/internal/auth"
	"github.com/dsentr/dsentr/internal/controllers"
	"github.com/dsentr/dsentr/internal/middlewares"
	"github.com/dsentr/dsentr/internal/version"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"
)

type HTTPServerDeps struct {
	Config        domain.HubConfig
	HubController *controllers.HubController
}

func NewHTTPServer(ctx context.Context, deps HTTPServerDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "dsentr-hub",
	})

	app.Use(cors.New())
	app.Use(logger.New())

	// Liveness probe, served unauthenticated.
	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "dsentr-hub",
			"build":     version.Current(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := app.Group("/api/v1")

	if deps.Config.EditorTokenSecret == "" {
		log.Fatal().Msg("Editor token secret is not configured, cannot authenticate editor requests")
	}

	workspaces := api.Group("/workspaces/:workspaceID")
	workspaces.Use(middlewares.EditorAuthMiddleware(deps.Config.EditorTokenSecret))

	workspaces.Get("/connections", deps.HubController.GetConnections)
	workspaces.Post("/connections/:connectionID/promote", deps.HubController.PromoteConnection)
	workspaces.Post("/connections/:connectionID/unshare", deps.HubController.UnshareConnection)
	workspaces.Post("/connections/:connectionID/disconnect", deps.HubController.DisconnectConnection)
	workspaces.Post("/connections/:connectionID/refresh", deps.HubController.RefreshConnection)

	workspaces.Get("/nodes/:nodeID/connection", deps.HubController.ResolveNode)
	workspaces.Put("/nodes/:nodeID/connection", deps.HubController.SetNodeSelection)
	workspaces.Delete("/nodes/:nodeID/connection", deps.HubController.ClearNodeSelection)
	workspaces.Post("/nodes/:nodeID/options", deps.HubController.LoadNodeOptions)

	verifier, err := auth.NewPlatformSignatureVerifier(deps.Config.PlatformPushPublicKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create push signature verifier")
	}

	push := api.Group("/push")
	push.Use(middlewares.PushSignatureMiddleware(verifier))
	push.Post("/connections", deps.HubController.HandleConnectionPush)

	return app
}
