package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dsentr/dsentr/internal/initialization"
	"github.com/spf13/cobra"
)

func NewResetCommand(hubContainer *initialization.HubContainer) *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove the stored hub configuration",
		Long: `Remove the stored hub configuration, including the hub identity and its
signing keys. The next start runs registration from scratch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !skipConfirm && !confirmReset(cmd) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			if err := hubContainer.GetConfigManager().ResetConfig(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset configuration: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Configuration removed.")
			fmt.Fprintf(cmd.OutOrStdout(), "Run '%s start' to set the hub up again.\n", os.Args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func confirmReset(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "This deletes the hub identity and all stored keys. Continue? [y/N]: ")

	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
