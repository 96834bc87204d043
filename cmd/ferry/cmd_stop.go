package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newStopCmd creates the "ferry stop" subcommand.
func newStopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Gracefully stop the workspace's editor",
		Long:  "Sends the termination signal to the scanned editor process and waits\nfor it to exit. Never force-kills: on timeout the command fails and\nthe process is left for the operator.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.supervisor.Shutdown(cmd.Context(), timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "editor stopped for %s\n", a.cfg.Workspace)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "shutdown wait bound (default from config)")
	return cmd
}
