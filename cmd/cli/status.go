package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dsentr/dsentr/internal/initialization"
	"github.com/dsentr/dsentr/internal/version"
	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/spf13/cobra"
)

func NewStatusCommand(hubContainer *initialization.HubContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current hub status",
		Long:  `Display the hub identity, its workspace assignments and whether the platform API is reachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, hubContainer)
		},
	}
}

func runStatus(cmd *cobra.Command, hubContainer *initialization.HubContainer) error {
	out := cmd.OutOrStdout()
	configManager := hubContainer.GetConfigManager()

	build := version.Current()
	fmt.Fprintf(out, "Dsentr Connection Hub %s (%s, %s)\n\n", version.Short(), build.GoVersion, build.Platform)

	if !configManager.IsSetupComplete(cmd.Context()) {
		fmt.Fprintln(out, "❌ Hub is not set up")
		fmt.Fprintf(out, "Run '%s start' to register this hub.\n", os.Args[0])
		return nil
	}

	config, err := configManager.GetConfig(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var workspaceNames []string
	for _, assignment := range config.WorkspaceAssignments {
		workspaceNames = append(workspaceNames, assignment.WorkspaceName)
	}

	row := func(label, value string) {
		fmt.Fprintf(out, "  %-16s %s\n", label, value)
	}

	fmt.Fprintln(out, "✅ Hub is set up and ready")
	row("Hub ID", config.HubID)
	row("Workspaces", fmt.Sprintf("(%d) %s", len(workspaceNames), strings.Join(workspaceNames, ", ")))
	row("API URL", config.APIBaseURL)
	if lastConnected := config.GetLastConnectedTime(); !lastConnected.IsZero() {
		row("Last connected", lastConnected.Format(time.DateTime))
	}

	dsentrClient := dsentr.NewClient(
		dsentr.WithBaseURL(config.APIBaseURL),
		dsentr.WithHubID(config.HubID),
		dsentr.WithEd25519PrivateKey(config.Ed25519PrivateKey),
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	if _, err := dsentrClient.GetWorkspaces(ctx); err != nil {
		fmt.Fprintf(out, "⚠️  Platform API unreachable: %v\n", err)
	} else {
		fmt.Fprintln(out, "🌐 Platform API reachable")
	}

	return nil
}
