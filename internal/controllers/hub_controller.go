package controllers

import (
	"encoding/json"
	"errors"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/connections"
	"github.com/dsentr/dsentr/pkg/domain"
	"github.com/dsentr/dsentr/pkg/panels"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// HubController exposes the connection hub to editor clients and receives
// push notifications from the platform.
type HubController struct {
	hub          *connections.Hub
	panelService *panels.Service
	pushHandler  domain.ConnectionEventHandler
}

type HubControllerDependencies struct {
	Hub          *connections.Hub
	PanelService *panels.Service
	PushHandler  domain.ConnectionEventHandler
}

func NewHubController(deps HubControllerDependencies) *HubController {
	return &HubController{
		hub:          deps.Hub,
		panelService: deps.PanelService,
		pushHandler:  deps.PushHandler,
	}
}

type ConnectionsResponse struct {
	WorkspaceID string                         `json:"workspace_id"`
	Version     uint64                         `json:"version"`
	TotalCount  int                            `json:"total_count"`
	Providers   []domain.ProviderConnectionSet `json:"providers"`
}

func connectionsResponseFromSnapshot(snapshot *domain.GroupedConnectionsSnapshot) ConnectionsResponse {
	providers := snapshot.Providers()
	sets := make([]domain.ProviderConnectionSet, 0, len(providers))
	for _, provider := range providers {
		sets = append(sets, snapshot.Provider(provider))
	}

	return ConnectionsResponse{
		WorkspaceID: snapshot.WorkspaceID(),
		Version:     snapshot.Version(),
		TotalCount:  snapshot.TotalCount(),
		Providers:   sets,
	}
}

// GetConnections returns the grouped connection inventory for a workspace,
// fetching it from the platform if the cache has nothing yet.
func (c *HubController) GetConnections(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")

	snapshot, err := c.hub.EnsureSnapshot(ctx.RequestCtx(), workspaceID)
	if err != nil {
		return mapHubError(err, "Failed to load connections")
	}

	return ctx.JSON(connectionsResponseFromSnapshot(snapshot))
}

func (c *HubController) PromoteConnection(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	connectionID := ctx.Params("connectionID")

	snapshot, err := c.hub.Promote(ctx.RequestCtx(), workspaceID, connectionID)
	if err != nil {
		return mapHubError(err, "Failed to promote connection")
	}

	return ctx.JSON(connectionsResponseFromSnapshot(snapshot))
}

func (c *HubController) UnshareConnection(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	connectionID := ctx.Params("connectionID")

	snapshot, err := c.hub.Unshare(ctx.RequestCtx(), workspaceID, connectionID)
	if err != nil {
		return mapHubError(err, "Failed to unshare connection")
	}

	return ctx.JSON(connectionsResponseFromSnapshot(snapshot))
}

type DisconnectConnectionRequest struct {
	Scope string `json:"scope"`
}

func (c *HubController) DisconnectConnection(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	connectionID := ctx.Params("connectionID")

	var req DisconnectConnectionRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	scope := domain.ConnectionScope(req.Scope)
	if !scope.IsValid() {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid connection scope")
	}

	snapshot, err := c.hub.Disconnect(ctx.RequestCtx(), workspaceID, scope, connectionID)
	if err != nil {
		return mapHubError(err, "Failed to disconnect connection")
	}

	return ctx.JSON(connectionsResponseFromSnapshot(snapshot))
}

func (c *HubController) RefreshConnection(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	connectionID := ctx.Params("connectionID")

	snapshot, err := c.hub.RefreshConnection(ctx.RequestCtx(), workspaceID, connectionID)
	if err != nil {
		return mapHubError(err, "Failed to refresh connection")
	}

	return ctx.JSON(connectionsResponseFromSnapshot(snapshot))
}

// ResolveNode reconciles a node's stored selection against the current
// inventory and returns the panel view.
func (c *HubController) ResolveNode(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	nodeID := ctx.Params("nodeID")

	view, err := c.panelService.ResolveNode(ctx.RequestCtx(), workspaceID, nodeID)
	if err != nil {
		return mapPanelError(err, "Failed to resolve node connection")
	}

	return ctx.JSON(view)
}

type SetNodeSelectionRequest struct {
	ConnectionScope string `json:"connection_scope"`
	ConnectionID    string `json:"connection_id"`
}

func (c *HubController) SetNodeSelection(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	nodeID := ctx.Params("nodeID")

	var req SetNodeSelectionRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	scope := domain.ConnectionScope(req.ConnectionScope)
	if !scope.IsValid() {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid connection scope")
	}
	if req.ConnectionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Connection ID is required")
	}

	view, err := c.panelService.SetSelection(ctx.RequestCtx(), workspaceID, nodeID, domain.ConnectionSelection{
		ConnectionScope: scope,
		ConnectionID:    req.ConnectionID,
	})
	if err != nil {
		return mapPanelError(err, "Failed to set node connection")
	}

	return ctx.JSON(view)
}

func (c *HubController) ClearNodeSelection(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	nodeID := ctx.Params("nodeID")

	view, err := c.panelService.ClearSelection(ctx.RequestCtx(), workspaceID, nodeID)
	if err != nil {
		return mapPanelError(err, "Failed to clear node connection")
	}

	return ctx.JSON(view)
}

type LoadNodeOptionsRequest struct {
	OptionType  string                  `json:"option_type"`
	PayloadJSON json.RawMessage         `json:"payload_json,omitempty"`
	Pagination  domain.PaginationParams `json:"pagination"`
}

type LoadNodeOptionsResponse struct {
	Options    []domain.ConnectionOption `json:"options"`
	Pagination domain.PaginationMetadata `json:"pagination"`
}

func (c *HubController) LoadNodeOptions(ctx fiber.Ctx) error {
	workspaceID := ctx.Params("workspaceID")
	nodeID := ctx.Params("nodeID")

	var req LoadNodeOptionsRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if req.OptionType == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Option type is required")
	}

	page, err := c.panelService.LoadOptions(ctx.RequestCtx(), workspaceID, nodeID, panels.OptionsRequest{
		OptionType:  req.OptionType,
		PayloadJSON: req.PayloadJSON,
		Pagination:  req.Pagination,
	})
	if err != nil {
		return mapPanelError(err, "Failed to load options")
	}

	return ctx.JSON(LoadNodeOptionsResponse{
		Options:    page.Options,
		Pagination: page.Pagination,
	})
}

type ConnectionPushResponse struct {
	Success bool `json:"success"`
}

// HandleConnectionPush applies a platform connection event. The signature
// middleware has already authenticated the caller.
func (c *HubController) HandleConnectionPush(ctx fiber.Ctx) error {
	var event domain.ConnectionEvent

	if err := ctx.Bind().Body(&event); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if event.WorkspaceID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Workspace ID is required")
	}

	if err := c.pushHandler(ctx.RequestCtx(), event); err != nil {
		log.Error().
			Err(err).
			Str("workspace_id", event.WorkspaceID).
			Str("event_type", string(event.Type)).
			Msg("Failed to handle connection push")

		return fiber.NewError(fiber.StatusInternalServerError, "Failed to handle connection event")
	}

	return ctx.JSON(ConnectionPushResponse{Success: true})
}

func mapHubError(err error, fallback string) error {
	var apiErr *dsentr.Error
	if errors.As(err, &apiErr) {
		return fiber.NewError(apiErr.StatusCode, apiErr.Message)
	}

	log.Error().Err(err).Msg(fallback)
	return fiber.NewError(fiber.StatusBadGateway, fallback)
}

func mapPanelError(err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Node not found")
	case errors.Is(err, panels.ErrNodeHasNoProvider):
		return fiber.NewError(fiber.StatusBadRequest, "Node has no provider")
	case errors.Is(err, panels.ErrConnectionNotAvailable):
		return fiber.NewError(fiber.StatusNotFound, "Connection is not available in this workspace")
	case errors.Is(err, panels.ErrConnectionNotSelectable):
		return fiber.NewError(fiber.StatusConflict, "Connection requires reconnect")
	case errors.Is(err, panels.ErrNoUsableConnection):
		return fiber.NewError(fiber.StatusConflict, "No usable connection for this node")
	case errors.Is(err, domain.ErrProviderNotFound):
		return fiber.NewError(fiber.StatusBadRequest, "Unknown provider")
	}

	return mapHubError(err, fallback)
}
