package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newPingCmd creates the "ferry ping" subcommand: the reserved health-check
// round trip. Exit code reflects channel liveness.
func newPingCmd() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Round-trip a health check through the mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.supervisor.EnsureRunning(cmd.Context()); err != nil {
				return err
			}

			start := time.Now()
			if err := a.courier.Ping(cmd.Context(), window); err != nil {
				return fmt.Errorf("channel dead: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pong in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&window, "window", 10*time.Second, "how long to wait for the pong")
	return cmd
}
