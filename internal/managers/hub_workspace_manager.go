package managers

import (
	"context"
	"fmt"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"
)

type hubWorkspaceManager struct {
	client dsentr.ClientInterface
}

// NewHubWorkspaceManager wraps the platform client behind the workspace
// lookup interface the schedulers consume.
func NewHubWorkspaceManager(client dsentr.ClientInterface) domain.HubWorkspaceManager {
	return &hubWorkspaceManager{client: client}
}

func (m *hubWorkspaceManager) GetWorkspace(ctx context.Context, workspaceID string) (domain.Workspace, error) {
	workspace, err := m.client.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("fetch workspace %s: %w", workspaceID, err)
	}

	return toDomainWorkspace(*workspace), nil
}

func (m *hubWorkspaceManager) GetWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	records, err := m.client.GetWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch assigned workspaces: %w", err)
	}

	workspaces := make([]domain.Workspace, 0, len(records))
	for _, record := range records {
		workspaces = append(workspaces, toDomainWorkspace(record))
	}

	return workspaces, nil
}

func toDomainWorkspace(w dsentr.Workspace) domain.Workspace {
	return domain.Workspace{
		ID:   w.ID,
		Slug: w.Slug,
		Name: w.Name,
	}
}
