package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/jonathan/parts-dashboard/internal/db"
	"github.com/jonathan/parts-dashboard/internal/observability"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// maxLookupNumbers bounds one bulk lookup.
const maxLookupNumbers = 1000

var (
	jobsStatus   string
	jobsPriority string
	jobsSearch   string
	jobsCustomer string
	jobsLimit    int
	jobsOffset   int
	jobsParts    string
	lookupFile   string
	partsLimit   int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List in-scope jobs from the local store",
	Long: `Lists jobs in the tracked category inside the configured bounding box,
newest scheduled first. Status and priority take comma-separated values.`,
	Example: `  parts_dashboard jobs --status "Parts On Order,Shipped" --priority urgent
  parts_dashboard jobs --search compressor --limit 10`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

var showCmd = &cobra.Command{
	Use:   "show <job-number>",
	Short: "Show one job by its display number",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup [job-number...]",
	Short: "Look up many jobs by display number",
	Long: `Looks up job numbers given as arguments or read from --file ("-" reads stdin).
Numbers may be separated by commas, semicolons or whitespace, so a column
pasted from a spreadsheet works as is.`,
	RunE: runLookup,
}

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "Show jobs waiting for parts and the latest deliveries",
	Long: `Shows parts totals, the jobs still waiting for parts (soonest scheduled
first) and the most recent parts deliveries.`,
	Args: cobra.NoArgs,
	RunE: runParts,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job totals and the status breakdown",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	jobsCmd.Flags().StringVarP(&jobsStatus, "status", "s", "", "Comma-separated statuses to include")
	jobsCmd.Flags().StringVarP(&jobsPriority, "priority", "p", "", "Comma-separated priorities to include")
	jobsCmd.Flags().StringVar(&jobsSearch, "search", "", "Text to match in number, title, customer or address")
	jobsCmd.Flags().StringVar(&jobsCustomer, "customer", "", "Customer name to match")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 0, "Page size (defaults to app.max_jobs_per_page)")
	jobsCmd.Flags().IntVar(&jobsOffset, "offset", 0, "Number of jobs to skip")
	jobsCmd.Flags().StringVar(&jobsParts, "parts", "", "Only jobs whose parts are pending or delivered")

	lookupCmd.Flags().StringVarP(&lookupFile, "file", "f", "", "File with job numbers, or - for stdin")

	partsCmd.Flags().IntVarP(&partsLimit, "limit", "n", db.DefaultRecentDeliveries, "Number of recent deliveries to show")

	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(partsCmd)
	rootCmd.AddCommand(statsCmd)
}

// splitList splits a comma-separated flag value and canonicalizes each entry.
func splitList(value string, canonical func(string) string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, canonical(part))
		}
	}
	return out
}

// parsePartsState turns --parts into a delivered filter; empty means no filter.
func parsePartsState(value string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return nil, nil
	case "pending":
		delivered := false
		return &delivered, nil
	case "delivered":
		delivered := true
		return &delivered, nil
	default:
		return nil, fmt.Errorf("--parts must be pending or delivered, got %q", value)
	}
}

// parseJobNumbers splits pasted text on commas, semicolons and whitespace.
func parseJobNumbers(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

func runJobs(cmd *cobra.Command, _ []string) error {
	if jobsLimit < 0 || jobsOffset < 0 {
		return fmt.Errorf("--limit and --offset must not be negative")
	}
	partsDelivered, err := parsePartsState(jobsParts)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	limit := jobsLimit
	if limit == 0 {
		limit = a.cfg.App.MaxJobsPerPage
	}
	page, err := a.db.ListJobs(cmd.Context(), types.JobFilter{
		Statuses:       splitList(jobsStatus, types.CanonicalStatus),
		Priorities:     splitList(jobsPriority, types.CanonicalPriority),
		SearchText:     jobsSearch,
		Customer:       jobsCustomer,
		PartsDelivered: partsDelivered,
		Limit:          limit,
		Offset:         jobsOffset,
	})
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintJobs(page.Jobs, page.Total)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	number := strings.TrimSpace(args[0])
	job, err := a.db.GetJobByDisplayNumber(cmd.Context(), number)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", number)
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintJob(job)
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	numbers := parseJobNumbers(strings.Join(args, " "))
	if lookupFile != "" {
		text, err := readLookupFile(cmd, lookupFile)
		if err != nil {
			return err
		}
		numbers = append(numbers, parseJobNumbers(text)...)
	}
	if len(numbers) == 0 {
		return fmt.Errorf("no job numbers given")
	}
	if len(numbers) > maxLookupNumbers {
		return fmt.Errorf("too many job numbers: %d (max %d)", len(numbers), maxLookupNumbers)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.App.Features.BulkLookup {
		return fmt.Errorf("bulk lookup is disabled (app.features.bulk_lookup)")
	}

	result, err := a.db.GetJobsByDisplayNumbers(cmd.Context(), numbers)
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintLookup(result.Jobs, result.NotFound)
	return nil
}

func readLookupFile(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read job numbers: %w", err)
	}
	return string(data), nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.db.GetJobStatistics(cmd.Context())
	if err != nil {
		return err
	}
	counts, err := a.db.GetStatusCounts(cmd.Context())
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintJobStatistics(stats, counts)
	return nil
}

func runParts(cmd *cobra.Command, _ []string) error {
	if partsLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.db.GetJobStatistics(cmd.Context())
	if err != nil {
		return err
	}
	waiting, err := a.db.GetJobsWaitingForParts(cmd.Context())
	if err != nil {
		return err
	}
	recent, err := a.db.GetRecentDeliveries(cmd.Context(), partsLimit)
	if err != nil {
		return err
	}

	p := observability.NewPrinter(cmd.OutOrStdout())
	p.PrintJobStatistics(stats, nil)
	p.PrintWaitingForParts(waiting)
	p.PrintDeliveries(recent)
	return nil
}
