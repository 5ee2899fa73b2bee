package cli

import (
	"fmt"
	"os"

	"github.com/dsentr/dsentr/internal/initialization"
	"github.com/dsentr/dsentr/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "dsentr-hub",
		Version: version.String(),
		Short:   "Dsentr Connection Hub CLI",
		Long: `Dsentr Connection Hub keeps workflow editors' views of OAuth connections
in sync. It caches per-workspace connection snapshots and resolves the
connection each workflow node should use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Verbose debug output")
	rootCmd.PersistentFlags().String("api-url", "", "Override the platform API URL")

	hubContainer, err := initialization.NewHubContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize hub container: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(NewStartCommand(hubContainer))
	rootCmd.AddCommand(NewResetCommand(hubContainer))
	rootCmd.AddCommand(NewStatusCommand(hubContainer))
	rootCmd.AddCommand(NewWorkspacesCommand(hubContainer))

	return rootCmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
