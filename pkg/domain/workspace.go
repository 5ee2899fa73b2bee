package domain

import (
	"context"
	"time"
)

// Workspace mirrors the platform's workspace record.
type Workspace struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// WorkspaceAssignment records that this hub serves a workspace.
type WorkspaceAssignment struct {
	WorkspaceID   string    `mapstructure:"workspace_id" json:"workspace_id"`
	WorkspaceName string    `mapstructure:"workspace_name" json:"workspace_name"`
	AssignedAt    time.Time `mapstructure:"assigned_at" json:"assigned_at"`
}

// HubWorkspaceManager resolves workspace metadata for the refresh scheduler
// and the CLI.
type HubWorkspaceManager interface {
	GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error)
	GetWorkspaces(ctx context.Context) ([]Workspace, error)
}
