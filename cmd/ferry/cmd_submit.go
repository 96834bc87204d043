package main

import (
	"errors"
	"fmt"
	"strings"

	"ferry/pkg/courier"
	"ferry/pkg/eventlog"
	"ferry/pkg/judge"
	"ferry/pkg/protocol"

	"github.com/spf13/cobra"
)

// newSubmitCmd creates the "ferry submit" subcommand: the full
// submit -> await -> judge round for one instruction.
func newSubmitCmd() *cobra.Command {
	var (
		id         string
		mode       string
		model      string
		timeout    int
		maxRetries int
	)

	cmd := &cobra.Command{
		Use:   "submit <instruction>",
		Short: "Submit an instruction and wait for a judged result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			// The editor handles one command context at a time; make sure it
			// is up before anything enters the mailbox.
			if err := a.supervisor.EnsureRunning(cmd.Context()); err != nil {
				return err
			}

			instruction := strings.Join(args, " ")
			req, accepted, err := a.courier.Submit(cmd.Context(), courier.SubmitOptions{
				ID:          id,
				Instruction: instruction,
				Mode:        protocol.Mode(mode),
				Model:       model,
				Timeout:     timeout,
				MaxRetries:  maxRetries,
			})
			if err != nil {
				return err
			}
			if !accepted {
				fmt.Fprintf(cmd.OutOrStdout(), "request %s already in flight, not resubmitted\n", req.RequestID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %s\n", req.RequestID)

			outcome, err := a.courier.Await(cmd.Context(), req.RequestID, 0)
			if err != nil {
				return err
			}

			j, err := a.newJudge()
			if err != nil {
				return err
			}
			judgment, err := j.Judge(cmd.Context(), judge.Unit{
				ID:          req.RequestID,
				Instruction: req.Instruction,
				Response:    outcome.Response,
				Reason:      outcome.Reason,
				Retries:     outcome.Retries,
			})
			if err != nil {
				if errors.Is(err, eventlog.ErrAlreadyJudged) {
					return fmt.Errorf("request %s was already judged; submit a new request instead", req.RequestID)
				}
				return err
			}

			if outcome.Status == courier.OutcomeCompleted {
				if err := a.courier.Archive(cmd.Context(), req.RequestID); err != nil {
					return err
				}
			}

			printJudgment(cmd, judgment, outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "explicit request id (duplicates are a no-op)")
	cmd.Flags().StringVar(&mode, "mode", string(protocol.ModeAgent), "execution mode: agent or chat")
	cmd.Flags().StringVar(&model, "model", "", "model override (default "+protocol.DefaultModel+")")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "per-attempt timeout in seconds (default from config)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry budget (default from config)")
	return cmd
}

func printJudgment(cmd *cobra.Command, j protocol.Judgment, outcome courier.Outcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "verdict    %s (confidence %.2f)\n", j.Verdict, j.Confidence)
	for _, line := range j.Reasoning {
		fmt.Fprintf(w, "  - %s\n", line)
	}
	if outcome.Response != nil && outcome.Response.Success {
		fmt.Fprintln(w, "response")
		fmt.Fprintln(w, outcome.Response.Response)
	}
}
