package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <interview-id>",
		Short: "Show an interview's pipeline status and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interviewID := strings.TrimSpace(args[0])

			job, err := ctx.fetchJob(cmd.Context(), interviewID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), job)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderJobStatus(job, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the raw ledger document as JSON")
	return cmd
}
