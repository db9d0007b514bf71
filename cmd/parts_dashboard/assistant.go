package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/parts-dashboard/internal/assistant"
	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/observability"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// maxChatHistory bounds the turns sent back to the model.
const maxChatHistory = 20

var (
	askLimit    int
	summaryKind string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Search jobs with a natural-language question",
	Example: `  parts_dashboard ask "urgent jobs still waiting for parts"
  parts_dashboard ask shipped jobs for Acme`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant about the dashboard",
	Long: `Starts an interactive chat. Each message is answered with the current job
statistics as context. When the assistant suggests a filter, the matching jobs
are listed and the filter becomes the context for the next message.

Type "reset" to clear the history and filters, "exit" to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Write a daily, weekly or status report over the in-scope jobs",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <job-number>",
	Short: "Analyze one job and suggest next steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", 0, "Page size (defaults to app.max_jobs_per_page)")
	summaryCmd.Flags().StringVarP(&summaryKind, "kind", "k", string(assistant.SummaryDaily), "Report kind: daily, weekly or status")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAssistant(); err != nil {
		return err
	}

	ctx := cmd.Context()
	customers, err := a.db.GetCustomerNames(ctx, 0)
	if err != nil {
		return err
	}
	result, err := a.assistant.ParseSearch(ctx, strings.Join(args, " "), types.JobStatuses, types.PriorityLevels, customers)
	if err != nil {
		return err
	}

	filter := result.Filters.JobFilter()
	filter.Limit = askLimit
	if filter.Limit == 0 {
		filter.Limit = a.cfg.App.MaxJobsPerPage
	}
	page, err := a.db.ListJobs(ctx, filter)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if result.Explanation != "" {
		printer.PrintAnswer("SEARCH", result.Explanation)
	}
	printer.PrintJobs(page.Jobs, page.Total)
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAssistant(); err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	scanner := bufio.NewScanner(cmd.InOrStdin())

	var (
		history []llm.Message
		filters assistant.Filters
	)
	fmt.Fprintln(out, `Ask about the jobs waiting for parts. Type "exit" to leave.`)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(message) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "reset":
			history, filters = nil, assistant.Filters{}
			fmt.Fprintln(out, "History and filters cleared.")
			continue
		}

		stats, err := a.db.GetJobStatistics(ctx)
		if err != nil {
			return err
		}
		counts, err := a.db.GetStatusCounts(ctx)
		if err != nil {
			return err
		}

		resp, err := a.assistant.Chat(ctx, message, assistant.DashboardContext{
			Stats:        stats,
			StatusCounts: counts,
			Filters:      filters,
		}, history)
		if err != nil {
			a.logger.Sugar().Warnw("chat message failed", "error", err)
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		printer.PrintAnswer("ASSISTANT", resp.Text)
		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: message},
			llm.Message{Role: llm.RoleAssistant, Content: resp.Text})
		if len(history) > maxChatHistory {
			history = history[len(history)-maxChatHistory:]
		}

		if resp.Action != nil && resp.Action.Action == "filter" {
			filters = resp.Action.Filters
			filter := filters.JobFilter()
			filter.Limit = a.cfg.App.MaxJobsPerPage
			page, err := a.db.ListJobs(ctx, filter)
			if err != nil {
				return err
			}
			printer.PrintJobs(page.Jobs, page.Total)
		}
	}
	return scanner.Err()
}

func runSummary(cmd *cobra.Command, _ []string) error {
	kind := assistant.SummaryKind(strings.ToLower(summaryKind))
	switch kind {
	case assistant.SummaryDaily, assistant.SummaryWeekly, assistant.SummaryStatus:
	default:
		return fmt.Errorf("invalid --kind %q: want daily, weekly or status", summaryKind)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAssistant(); err != nil {
		return err
	}

	jobs, err := a.db.GetAllInScopeJobs(cmd.Context())
	if err != nil {
		return err
	}
	summary, err := a.assistant.GenerateSummary(cmd.Context(), jobs, kind)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s SUMMARY (%d jobs)", strings.ToUpper(string(summary.Kind)), summary.TotalJobs)
	observability.NewPrinter(cmd.OutOrStdout()).PrintAnswer(title, summary.Text)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAssistant(); err != nil {
		return err
	}

	number := strings.TrimSpace(args[0])
	job, err := a.db.GetJobByDisplayNumber(cmd.Context(), number)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", number)
	}

	analysis, err := a.assistant.AnalyzeJob(cmd.Context(), job)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintJob(job)
	printer.PrintAnswer("ANALYSIS", analysis)
	return nil
}
