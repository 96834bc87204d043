package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStartCmd creates the "ferry start" subcommand.
func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Ensure the editor is running for the workspace",
		Long:  "Scans for a live editor bound to the workspace and launches one\nonly if none exists. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.supervisor.EnsureRunning(cmd.Context()); err != nil {
				return err
			}
			status, err := a.supervisor.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "editor running for %s (pid %d)\n", a.cfg.Workspace, status.PID)
			return nil
		},
	}
}
