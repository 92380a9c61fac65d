package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"scriptcheck/internal/ledger"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusColor(status ledger.Status) string {
	switch status {
	case ledger.StatusCompleted:
		return ansiGreen
	case ledger.StatusFailed:
		return ansiRed
	case ledger.StatusProcessing:
		return ansiYellow
	default:
		return ""
	}
}

func colorize(value string, color string, enabled bool) string {
	if !enabled || color == "" {
		return value
	}
	return color + value + ansiReset
}

// renderJobStatus formats an interview's ledger document for the terminal.
func renderJobStatus(job *ledger.InterviewJob, useColor bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Interview:  %s\n", job.ID)
	fmt.Fprintf(&b, "Status:     %s\n", colorize(string(job.Status), statusColor(job.Status), useColor))
	if job.Stage != "" {
		fmt.Fprintf(&b, "Stage:      %s\n", job.Stage)
	}
	fmt.Fprintf(&b, "Attempts:   %d\n", job.ProcessingAttempts)
	fmt.Fprintf(&b, "Updated:    %s\n", job.LastUpdated.Local().Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed:  %s\n", job.CompletedAt.Local().Format(time.RFC3339))
	}
	if job.Results != nil {
		fmt.Fprintf(&b, "Verdict:    %s (%d of %d segments flagged)\n",
			job.Results.FinalVerdict, job.Results.CheatingSegments, job.Results.TotalSegments)
	}

	if len(job.History) > 0 {
		b.WriteString("\n")
		b.WriteString(renderHistoryTable(job.History))
		b.WriteString("\n")
	}

	return b.String()
}

// renderHistoryTable lays out the job's history events chronologically,
// folding any recorded error into the detail column.
func renderHistoryTable(events []ledger.HistoryEvent) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Time", "Status", "Actor", "Detail"})
	for _, event := range events {
		detail := event.Message
		if event.Error != "" {
			detail += " (" + event.Error + ")"
		}
		tw.AppendRow(table.Row{
			event.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(event.Status),
			event.Actor,
			detail,
		})
	}
	return tw.Render()
}
