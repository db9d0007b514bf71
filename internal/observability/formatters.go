// Package observability provides formatted output for the dashboard CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/parts-dashboard/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in short lists
	maxItemsToShow = 5
	// maxJobsToShow bounds job listings
	maxJobsToShow = 20
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// wrap breaks text into lines of at most width runes on word boundaries.
func wrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			switch {
			case line == "":
				line = word
			case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func statusIcon(status types.SyncStatus) string {
	switch status {
	case types.SyncStatusCompleted:
		return "✅"
	case types.SyncStatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

// PrintSyncRun outputs the stats of one sync run.
func (p *Printer) PrintSyncRun(run *types.SyncRun) {
	if run == nil {
		p.printBox("SYNC", "No sync has run yet")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s\n", run.RunUID))
	sb.WriteString(fmt.Sprintf("Status:    %s %s", statusIcon(run.Status), run.Status))
	if run.FetchOutcome != "" {
		sb.WriteString(fmt.Sprintf(" (fetch %s)", run.FetchOutcome))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Started:   %s\n", run.StartedAt.Format(types.TimestampLayout)))
	if run.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("Duration:  %.1fs\n", run.DurationSeconds))
	}
	sb.WriteString(fmt.Sprintf("Fetched:   %d\n", run.JobsFetched))
	sb.WriteString(fmt.Sprintf("Created:   %d\n", run.JobsCreated))
	sb.WriteString(fmt.Sprintf("Updated:   %d", run.JobsUpdated))

	if len(run.ErrorMessages) > 0 {
		sb.WriteString(fmt.Sprintf("\n\nErrors (%d):\n", len(run.ErrorMessages)))
		count := min(len(run.ErrorMessages), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", run.ErrorMessages[i]))
		}
		if len(run.ErrorMessages) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(run.ErrorMessages)-maxItemsToShow))
		}
	}

	p.printBox("SYNC RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSyncRuns outputs the sync log, one line per run.
func (p *Printer) PrintSyncRuns(runs []types.SyncRun) {
	if len(runs) == 0 {
		p.printBox("SYNC HISTORY", "No sync has run yet")
		return
	}

	var sb strings.Builder
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("%s %s  +%d ~%d  %d errors\n",
			statusIcon(run.Status),
			run.StartedAt.Format(types.TimestampLayout),
			run.JobsCreated, run.JobsUpdated, len(run.ErrorMessages)))
	}
	p.printBox("SYNC HISTORY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobStatistics outputs the dashboard totals and the status breakdown.
func (p *Printer) PrintJobStatistics(stats *types.JobStatistics, statusCounts []types.Count) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total jobs:         %d\n", stats.TotalJobs))
	sb.WriteString(fmt.Sprintf("Waiting for parts:  %d\n", stats.PartsPending))
	sb.WriteString(fmt.Sprintf("Parts delivered:    %d\n", stats.PartsDelivered))
	sb.WriteString(fmt.Sprintf("Statuses in use:    %d\n", stats.UniqueStatuses))
	if stats.EarliestScheduled != nil {
		sb.WriteString(fmt.Sprintf("First scheduled:    %s\n", *stats.EarliestScheduled))
	}
	if stats.LatestScheduled != nil {
		sb.WriteString(fmt.Sprintf("Last scheduled:     %s\n", *stats.LatestScheduled))
	}
	if stats.LastSyncTime != nil {
		sb.WriteString(fmt.Sprintf("Last synced:        %s\n", *stats.LastSyncTime))
	}

	if len(statusCounts) > 0 {
		sb.WriteString("\nBy status:\n")
		for _, c := range statusCounts {
			sb.WriteString(fmt.Sprintf("  %-20s %5d\n", truncate(c.Value, 20), c.Count))
		}
	}

	p.printBox("JOB STATISTICS", strings.TrimSuffix(sb.String(), "\n"))
}

func jobLine(job types.JobRecord) string {
	delivered := " "
	if job.PartsDelivered() {
		delivered = "✓"
	}
	return fmt.Sprintf("%s #%-8s %-16s %-7s %s",
		delivered, job.DisplayNumber, truncate(job.Status, 16), truncate(job.Priority, 7), job.Title)
}

// PrintJobs outputs one page of jobs. total is the number of matches overall.
func (p *Printer) PrintJobs(jobs []types.JobRecord, total int) {
	if len(jobs) == 0 {
		p.printBox("JOBS", "No jobs match")
		return
	}

	var sb strings.Builder
	count := min(len(jobs), maxJobsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(jobLine(jobs[i]) + "\n")
	}
	if total > count {
		sb.WriteString(fmt.Sprintf("\n... and %d more jobs", total-count))
	}

	p.printBox(fmt.Sprintf("JOBS (%d)", total), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJob outputs every field of one job worth reading.
func (p *Printer) PrintJob(job *types.JobRecord) {
	if job == nil {
		return
	}

	field := func(sb *strings.Builder, label, value string) {
		if value != "" {
			sb.WriteString(fmt.Sprintf("%-11s %s\n", label+":", value))
		}
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	var sb strings.Builder
	field(&sb, "Title", job.Title)
	field(&sb, "Status", job.Status)
	field(&sb, "Priority", job.Priority)
	field(&sb, "Customer", job.CustomerName)
	field(&sb, "Address", job.Address)
	field(&sb, "Technician", job.AssignedTechnician)
	field(&sb, "Scheduled", deref(job.ScheduledStart))
	field(&sb, "Created", deref(job.CreatedAt))
	field(&sb, "Parts", job.PartsStatus)
	if job.PartsDelivered() {
		field(&sb, "Delivered", *job.PartsDeliveredAt)
	} else {
		field(&sb, "Delivered", "no")
	}

	p.printBox("JOB #"+job.DisplayNumber, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintLookup outputs the result of a bulk lookup.
func (p *Printer) PrintLookup(jobs []types.JobRecord, notFound []string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d, not found %d\n", len(jobs), len(notFound)))
	if len(jobs) > 0 {
		sb.WriteString("\n")
		for _, job := range jobs {
			sb.WriteString(jobLine(job) + "\n")
		}
	}
	if len(notFound) > 0 {
		sb.WriteString("\nNot found:\n")
		sb.WriteString(wrap(strings.Join(notFound, ", "), boxWidth-6) + "\n")
	}

	p.printBox("BULK LOOKUP", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintWaitingForParts outputs jobs still waiting for parts, soonest scheduled
// first, with the scheduled start of each.
func (p *Printer) PrintWaitingForParts(jobs []types.JobRecord) {
	if len(jobs) == 0 {
		p.printBox("WAITING FOR PARTS", "No jobs waiting for parts")
		return
	}

	var sb strings.Builder
	count := min(len(jobs), maxJobsToShow)
	for _, job := range jobs[:count] {
		scheduled := "unscheduled"
		if job.ScheduledStart != nil {
			scheduled = *job.ScheduledStart
		}
		sb.WriteString(fmt.Sprintf("#%-8s %-19s %s\n", job.DisplayNumber, truncate(scheduled, 19), truncate(job.CustomerName, 24)))
	}
	if len(jobs) > count {
		sb.WriteString(fmt.Sprintf("\n... and %d more jobs", len(jobs)-count))
	}

	p.printBox(fmt.Sprintf("WAITING FOR PARTS (%d)", len(jobs)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDeliveries outputs the latest parts deliveries, newest first.
func (p *Printer) PrintDeliveries(jobs []types.JobRecord) {
	if len(jobs) == 0 {
		p.printBox("RECENT DELIVERIES", "No parts delivery data available")
		return
	}

	var sb strings.Builder
	for _, job := range jobs {
		delivered := ""
		if job.PartsDeliveredAt != nil {
			delivered = *job.PartsDeliveredAt
		}
		sb.WriteString(fmt.Sprintf("#%-8s %-19s %s\n", job.DisplayNumber, truncate(delivered, 19), truncate(job.Status, 20)))
	}

	p.printBox("RECENT DELIVERIES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnswer outputs free text from the assistant, wrapped to the box.
func (p *Printer) PrintAnswer(title, text string) {
	p.printBox(title, wrap(strings.TrimSpace(text), boxWidth-4))
}
