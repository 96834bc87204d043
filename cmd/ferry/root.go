package main

import (
	"fmt"

	"ferry/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root ferry command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ferry",
		Short:         "Drive and verify an editor's AI-completion extension over a filesystem mailbox",
		Long:          "ferry supervises the editor process bound to a workspace, delivers\ncompletion requests through a directory mailbox, and judges whether\neach response is the real thing.",
		Version:       fmt.Sprintf("ferry %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newSubmitCmd(),
		newPingCmd(),
		newLogsCmd(),
		newCleanupCmd(),
	)

	return cmd
}
