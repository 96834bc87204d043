package main

import (
	"fmt"
	"os"
	"time"

	"ferry/pkg/protocol"

	"github.com/spf13/cobra"
)

// newCleanupCmd creates the "ferry cleanup" subcommand: prune archived
// units older than a retention window. Only terminal stages are touched.
func newCleanupCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune archived mailbox entries past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			cutoff := time.Now().Add(-olderThan)
			pruned := 0
			for _, stage := range []protocol.Stage{protocol.StageProcessed, protocol.StageFailed, protocol.StageTimedOut} {
				entries, err := a.box.List(stage)
				if err != nil {
					return err
				}
				for _, entry := range entries {
					if entry.ModTime.After(cutoff) {
						continue
					}
					if err := os.Remove(a.box.Path(stage, entry.ID)); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("prune %s from %s: %w", entry.ID, stage, err)
					}
					pruned++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d archived entries\n", pruned)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "retention window for terminal entries")
	return cmd
}
