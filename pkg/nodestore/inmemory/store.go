package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dsentr/dsentr/pkg/domain"
)

// NodeStore keeps workflow nodes in process memory. It backs single-instance
// hubs and tests; durable deployments use the MongoDB or PostgreSQL store.
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[string]map[string]domain.WorkflowNode
}

func NewNodeStore() *NodeStore {
	return &NodeStore{
		nodes: make(map[string]map[string]domain.WorkflowNode),
	}
}

func (s *NodeStore) GetNode(ctx context.Context, workspaceID, nodeID string) (domain.WorkflowNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[workspaceID][nodeID]
	if !ok {
		return domain.WorkflowNode{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	return node, nil
}

func (s *NodeStore) SaveNode(ctx context.Context, node domain.WorkflowNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workspace, ok := s.nodes[node.WorkspaceID]
	if !ok {
		workspace = make(map[string]domain.WorkflowNode)
		s.nodes[node.WorkspaceID] = workspace
	}

	node.UpdatedAt = time.Now()
	workspace[node.ID] = node
	return nil
}

func (s *NodeStore) ListNodes(ctx context.Context, workspaceID string) ([]domain.WorkflowNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workspace := s.nodes[workspaceID]
	nodes := make([]domain.WorkflowNode, 0, len(workspace))
	for _, node := range workspace {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func (s *NodeStore) ApplySelectionPatch(ctx context.Context, workspaceID, nodeID string, patch *domain.SelectionPatch) (domain.WorkflowNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[workspaceID][nodeID]
	if !ok {
		return domain.WorkflowNode{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	// A patch that would not change the stored selection leaves the node
	// exactly as it is, dirty flag and update time included.
	if !patch.AppliesTo(node.Selection) {
		return node, nil
	}

	if patch.Selection == nil {
		node.Selection = domain.ConnectionSelection{}
	} else {
		node.Selection = *patch.Selection
	}
	node.Dirty = true
	node.UpdatedAt = time.Now()

	s.nodes[workspaceID][nodeID] = node
	return node, nil
}

func (s *NodeStore) SetValidationErrors(ctx context.Context, workspaceID, nodeID string, validationErrors []domain.NodeValidationError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[workspaceID][nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	if len(validationErrors) == 0 {
		node.ValidationErrors = nil
	} else {
		node.ValidationErrors = append([]domain.NodeValidationError(nil), validationErrors...)
	}

	s.nodes[workspaceID][nodeID] = node
	return nil
}
