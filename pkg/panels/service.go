package panels

import (
	"context"
	"fmt"

	"github.com/dsentr/dsentr/pkg/connections"
	"github.com/dsentr/dsentr/pkg/domain"
)

// Service implements the configuration panel operations: rendering a node's
// connection state, applying explicit selections, and loading provider
// pick-list options through the connection the node resolved to.
type Service struct {
	hub      *connections.Hub
	nodes    domain.NodeStore
	selector domain.ProviderSelector
}

type ServiceDependencies struct {
	Hub       *connections.Hub
	NodeStore domain.NodeStore
	Selector  domain.ProviderSelector
}

func NewService(deps ServiceDependencies) *Service {
	return &Service{
		hub:      deps.Hub,
		nodes:    deps.NodeStore,
		selector: deps.Selector,
	}
}

// OptionsRequest asks for one pick-list of provider data, e.g. the channels
// a message step can post to.
type OptionsRequest struct {
	OptionType  string                  `json:"option_type"`
	PayloadJSON []byte                  `json:"payload_json,omitempty"`
	Pagination  domain.PaginationParams `json:"pagination"`
}

// ResolveNode reconciles a node against the current workspace inventory,
// persists whatever the reconciliation decided, and returns the rendered
// panel view. The inventory is fetched first if nothing is cached.
func (s *Service) ResolveNode(ctx context.Context, workspaceID, nodeID string) (PanelView, error) {
	node, err := s.loadProviderNode(ctx, workspaceID, nodeID)
	if err != nil {
		return PanelView{}, err
	}

	snapshot, err := s.hub.EnsureSnapshot(ctx, workspaceID)
	if err != nil {
		return PanelView{}, fmt.Errorf("failed to load connection inventory: %w", err)
	}

	return s.applySnapshot(ctx, node, snapshot)
}

// SetSelection binds a node to the connection the user picked. The choice
// must exist in the current inventory and be selectable; the stored email is
// taken from the connection, not from the caller.
func (s *Service) SetSelection(ctx context.Context, workspaceID, nodeID string, selection domain.ConnectionSelection) (PanelView, error) {
	node, err := s.loadProviderNode(ctx, workspaceID, nodeID)
	if err != nil {
		return PanelView{}, err
	}

	snapshot, err := s.hub.EnsureSnapshot(ctx, workspaceID)
	if err != nil {
		return PanelView{}, fmt.Errorf("failed to load connection inventory: %w", err)
	}

	set := connections.ProviderSet(snapshot, string(node.Provider))
	conn, ok := set.Find(selection.ConnectionScope, selection.ConnectionID)
	if !ok {
		return PanelView{}, fmt.Errorf("%w: %s", ErrConnectionNotAvailable, selection.ConnectionID)
	}
	if !conn.Selectable() {
		return PanelView{}, fmt.Errorf("%w: %s is %s", ErrConnectionNotSelectable, conn.ID, conn.Status)
	}

	node, err = s.nodes.ApplySelectionPatch(ctx, workspaceID, nodeID, domain.SetSelectionPatch(domain.SelectionOf(conn)))
	if err != nil {
		return PanelView{}, fmt.Errorf("failed to persist selection: %w", err)
	}

	return s.applySnapshot(ctx, node, snapshot)
}

// ClearSelection drops the node's selection and re-resolves. With a single
// obvious candidate left the resolution will bind it right back; an empty
// selection only sticks when there is genuinely nothing to choose.
func (s *Service) ClearSelection(ctx context.Context, workspaceID, nodeID string) (PanelView, error) {
	node, err := s.loadProviderNode(ctx, workspaceID, nodeID)
	if err != nil {
		return PanelView{}, err
	}

	snapshot, err := s.hub.EnsureSnapshot(ctx, workspaceID)
	if err != nil {
		return PanelView{}, fmt.Errorf("failed to load connection inventory: %w", err)
	}

	node, err = s.nodes.ApplySelectionPatch(ctx, workspaceID, nodeID, domain.ClearSelectionPatch())
	if err != nil {
		return PanelView{}, fmt.Errorf("failed to clear selection: %w", err)
	}

	return s.applySnapshot(ctx, node, snapshot)
}

// LoadOptions loads provider pick-list data through the connection the node
// is resolved to. Nothing is persisted on this path; resolution is only used
// to find the credential.
func (s *Service) LoadOptions(ctx context.Context, workspaceID, nodeID string, req OptionsRequest) (domain.OptionPage, error) {
	node, err := s.loadProviderNode(ctx, workspaceID, nodeID)
	if err != nil {
		return domain.OptionPage{}, err
	}

	snapshot, err := s.hub.EnsureSnapshot(ctx, workspaceID)
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to load connection inventory: %w", err)
	}

	set := connections.ProviderSet(snapshot, string(node.Provider))
	res := connections.Reconcile(node.Selection, set)
	if !res.Resolved() {
		return domain.OptionPage{}, fmt.Errorf("%w: %s", ErrNoUsableConnection, res.State)
	}

	creator, err := s.selector.SelectOptionLoaderCreator(ctx, domain.SelectProviderParams{ProviderType: node.Provider})
	if err != nil {
		return domain.OptionPage{}, err
	}

	loader, err := creator.CreateOptionLoader(ctx, domain.CreateOptionLoaderParams{
		CredentialID: res.Connection.CredentialID,
		WorkspaceID:  workspaceID,
	})
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to create option loader: %w", err)
	}

	page, err := loader.LoadOptions(ctx, domain.OptionQuery{
		OptionType:  req.OptionType,
		WorkspaceID: workspaceID,
		PayloadJSON: req.PayloadJSON,
		Pagination:  req.Pagination,
	})
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to load %s options: %w", req.OptionType, err)
	}

	return page, nil
}

func (s *Service) loadProviderNode(ctx context.Context, workspaceID, nodeID string) (domain.WorkflowNode, error) {
	node, err := s.nodes.GetNode(ctx, workspaceID, nodeID)
	if err != nil {
		return domain.WorkflowNode{}, err
	}
	if node.Provider == "" || node.Provider == domain.ProviderType_Empty {
		return domain.WorkflowNode{}, fmt.Errorf("%w: %s", ErrNodeHasNoProvider, nodeID)
	}
	return node, nil
}

// applySnapshot reconciles the node against one snapshot, persists the
// outcome, and renders the view.
func (s *Service) applySnapshot(ctx context.Context, node domain.WorkflowNode, snapshot *domain.GroupedConnectionsSnapshot) (PanelView, error) {
	set := connections.ProviderSet(snapshot, string(node.Provider))
	res := connections.Reconcile(node.Selection, set)

	if res.Patch != nil {
		updated, err := s.nodes.ApplySelectionPatch(ctx, node.WorkspaceID, node.ID, res.Patch)
		if err != nil {
			return PanelView{}, fmt.Errorf("failed to apply selection patch: %w", err)
		}
		node = updated
	}

	if err := s.syncValidationErrors(ctx, node, res.ValidationError); err != nil {
		return PanelView{}, err
	}

	return buildView(node, snapshot.Version(), set, res), nil
}

func (s *Service) syncValidationErrors(ctx context.Context, node domain.WorkflowNode, validationError *domain.NodeValidationError) error {
	var next []domain.NodeValidationError
	if validationError != nil {
		next = []domain.NodeValidationError{*validationError}
	}

	if validationErrorsEqual(node.ValidationErrors, next) {
		return nil
	}

	if err := s.nodes.SetValidationErrors(ctx, node.WorkspaceID, node.ID, next); err != nil {
		return fmt.Errorf("failed to update validation errors: %w", err)
	}
	return nil
}

func validationErrorsEqual(a, b []domain.NodeValidationError) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
