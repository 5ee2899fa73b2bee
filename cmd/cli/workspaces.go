package cli

import (
	"fmt"

	"github.com/dsentr/dsentr/internal/initialization"
	"github.com/dsentr/dsentr/internal/managers"
	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/spf13/cobra"
)

func NewWorkspacesCommand(hubContainer *initialization.HubContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Inspect workspace assignments",
		Long:  `Inspect the workspaces this hub serves connection snapshots for.`,
	}

	cmd.AddCommand(NewWorkspacesListCommand(hubContainer))

	return cmd
}

func NewWorkspacesListCommand(hubContainer *initialization.HubContainer) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workspaces this hub serves",
		Long:  `List the workspaces assigned to this hub. By default the stored assignments are shown; --remote fetches live details from the platform.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkspacesList(cmd, hubContainer, remote)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "fetch live workspace details from the platform")

	return cmd
}

func runWorkspacesList(cmd *cobra.Command, hubContainer *initialization.HubContainer, remote bool) error {
	out := cmd.OutOrStdout()
	configManager := hubContainer.GetConfigManager()

	if !configManager.IsSetupComplete(cmd.Context()) {
		return fmt.Errorf("hub is not set up, run 'start' first")
	}

	config, err := configManager.GetConfig(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.WorkspaceAssignments) == 0 {
		fmt.Fprintln(out, "No workspaces assigned.")
		return nil
	}

	if !remote {
		fmt.Fprintf(out, "Assigned workspaces (%d):\n", len(config.WorkspaceAssignments))
		for i, assignment := range config.WorkspaceAssignments {
			fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, assignment.WorkspaceName, assignment.WorkspaceID)
		}
		return nil
	}

	dsentrClient := dsentr.NewClient(
		dsentr.WithBaseURL(config.APIBaseURL),
		dsentr.WithHubID(config.HubID),
		dsentr.WithEd25519PrivateKey(config.Ed25519PrivateKey),
	)
	workspaceManager := managers.NewHubWorkspaceManager(dsentrClient)

	workspaces, err := workspaceManager.GetWorkspaces(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch workspace details: %w", err)
	}

	fmt.Fprintf(out, "Assigned workspaces (%d):\n", len(workspaces))
	for i, workspace := range workspaces {
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, workspace.Name, workspace.Slug)
	}

	return nil
}
