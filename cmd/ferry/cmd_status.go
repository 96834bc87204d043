package main

import (
	"encoding/json"
	"fmt"
	"os"

	"ferry/pkg/protocol"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Width(12)
)

// newStatusCmd creates the "ferry status" subcommand.
func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show editor liveness and mailbox stage counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.supervisor.Status(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := a.box.Counts()
			if err != nil {
				return err
			}

			if asJSON {
				out := struct {
					Workspace string                 `json:"workspace"`
					PID       int                    `json:"pid"`
					Running   bool                   `json:"running"`
					State     string                 `json:"state"`
					Mailbox   map[protocol.Stage]int `json:"mailbox"`
				}{a.cfg.Workspace, status.PID, status.Running, string(status.State), counts}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			styled := isatty.IsTerminal(os.Stdout.Fd())
			render := func(s lipgloss.Style, text string) string {
				if !styled {
					return text
				}
				return s.Render(text)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "workspace  %s\n", a.cfg.Workspace)
			if status.Running {
				fmt.Fprintf(w, "editor     %s (pid %d)\n", render(okStyle, "running"), status.PID)
			} else {
				fmt.Fprintf(w, "editor     %s\n", render(downStyle, string(status.State)))
			}
			fmt.Fprintln(w, "mailbox")
			for _, stage := range protocol.Stages {
				fmt.Fprintf(w, "  %s %d\n", render(stageStyle, string(stage)), counts[stage])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable output")
	return cmd
}
