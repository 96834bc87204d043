package main

import (
	"fmt"

	"ferry/pkg/eventlog"

	"github.com/spf13/cobra"
)

// newLogsCmd creates the "ferry logs" subcommand over the event log.
func newLogsCmd() *cobra.Command {
	var (
		requestID string
		eventType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the lifecycle event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			events, err := a.log.Query(cmd.Context(), eventlog.QueryOpts{
				RequestID: requestID,
				EventType: eventType,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, e := range events {
				fmt.Fprintf(w, "%s  %-10s %-10s %-36s %s %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.Stage, e.RequestID, e.Source, e.Payload)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "filter to one request id")
	cmd.Flags().StringVar(&eventType, "type", "", "filter to one event type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows (0 = all)")
	return cmd
}
