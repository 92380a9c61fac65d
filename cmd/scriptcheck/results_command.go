package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scriptcheck/internal/ledger"
	"scriptcheck/internal/verdict"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "results <interview-id>",
		Short: "Show the per-segment verdicts for a completed interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interviewID := strings.TrimSpace(args[0])

			job, err := ctx.fetchJob(cmd.Context(), interviewID)
			if err != nil {
				return err
			}
			if job.Results == nil {
				return fmt.Errorf("interview %s has no results yet (status %s)", interviewID, job.Status)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), job.Results)
			}

			fmt.Fprint(cmd.OutOrStdout(), renderResults(job))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the result document as JSON")
	return cmd
}

// renderResults formats a completed interview's verdict and segment table.
func renderResults(job *ledger.InterviewJob) string {
	results := job.Results
	var b strings.Builder

	fmt.Fprintf(&b, "Interview:   %s\n", job.ID)
	fmt.Fprintf(&b, "Verdict:     %s\n", results.FinalVerdict)
	fmt.Fprintf(&b, "Segments:    %d flagged of %d\n", results.CheatingSegments, results.TotalSegments)
	fmt.Fprintf(&b, "Analysis:    %.2fs\n", results.ProcessingTimeSeconds)
	if results.JSONFilePath != "" {
		fmt.Fprintf(&b, "Result doc:  %s\n", results.JSONFilePath)
	}
	if results.EmbeddingsFilePath != "" {
		fmt.Fprintf(&b, "Embeddings:  %s\n", results.EmbeddingsFilePath)
	}

	if len(results.SegmentsDetails) > 0 {
		b.WriteString("\n")
		b.WriteString(renderSegmentTable(results.SegmentsDetails))
		b.WriteString("\n")
	}

	return b.String()
}

// renderSegmentTable lays out the per-segment similarity scores with the
// numeric columns right-aligned.
func renderSegmentTable(segments []verdict.SegmentResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Segment", "Reading cos", "Natural cos", "Verdict"})
	for _, segment := range segments {
		tw.AppendRow(table.Row{
			segment.SegmentNo,
			formatCosine(segment.ReadingCosine),
			formatCosine(segment.NaturalCosine),
			segment.Verdict,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

func formatCosine(value float64) string {
	return strconv.FormatFloat(value, 'f', 4, 64)
}
