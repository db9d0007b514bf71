package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jonathan/parts-dashboard/internal/fetch"
	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/prompts"
	"github.com/jonathan/parts-dashboard/internal/schemas"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// SummaryKind selects the report GenerateSummary writes.
type SummaryKind string

// Summary kinds
const (
	SummaryDaily  SummaryKind = "daily"
	SummaryWeekly SummaryKind = "weekly"
	SummaryStatus SummaryKind = "status"
)

// Summary is a generated report plus the numbers it was written from.
type Summary struct {
	Kind           SummaryKind    `json:"kind"`
	Text           string         `json:"summary"`
	TotalJobs      int            `json:"total_jobs"`
	StatusCounts   map[string]int `json:"status_counts"`
	PriorityCounts map[string]int `json:"priority_counts"`
}

// PartsInfo is what ExtractPartsInfo found in a job description.
type PartsInfo struct {
	PartsMentioned    []string `json:"parts_mentioned"`
	PartNumbers       []string `json:"part_numbers"`
	Quantities        []string `json:"quantities"`
	UrgencyIndicators []string `json:"urgency_indicators"`
	Summary           string   `json:"summary"`
}

// AnalyzeJob writes a short analysis of one job with next steps.
func (a *Assistant) AnalyzeJob(ctx context.Context, job *types.JobRecord) (string, error) {
	if job == nil {
		return "", fmt.Errorf("failed to analyze job: no job given")
	}

	delivered := "no"
	if job.PartsDelivered() {
		delivered = "yes, " + *job.PartsDeliveredAt
	}

	prompt := prompts.Format(prompts.MustGet(prompts.AssistantFile, "analyze-job"), map[string]string{
		"Number":      job.DisplayNumber,
		"Title":       orNA(job.Title),
		"Description": orNA(fetch.HTMLToText(job.Description)),
		"Status":      orNA(job.Status),
		"Priority":    orNA(job.Priority),
		"Customer":    orNA(job.CustomerName),
		"Scheduled":   orNA(deref(job.ScheduledStart)),
		"Created":     orNA(deref(job.CreatedAt)),
		"PartsStatus": orNA(job.PartsStatus),
		"Delivered":   delivered,
	})

	text, err := a.client.GenerateContent(ctx, prompt, llm.TierStandard)
	if err != nil {
		return "", fmt.Errorf("failed to analyze job %s: %w", job.DisplayNumber, err)
	}
	return text, nil
}

// GenerateSummary aggregates jobs by status and priority and has the model
// write a report of the requested kind. An empty kind means daily.
func (a *Assistant) GenerateSummary(ctx context.Context, jobs []types.JobRecord, kind SummaryKind) (*Summary, error) {
	switch kind {
	case "":
		kind = SummaryDaily
	case SummaryDaily, SummaryWeekly, SummaryStatus:
	default:
		return nil, fmt.Errorf("unknown summary kind %q", kind)
	}

	summary := &Summary{
		Kind:           kind,
		TotalJobs:      len(jobs),
		StatusCounts:   make(map[string]int),
		PriorityCounts: make(map[string]int),
	}
	for _, job := range jobs {
		summary.StatusCounts[orUnknown(job.Status)]++
		summary.PriorityCounts[orUnknown(job.Priority)]++
	}

	statusJSON, _ := json.Marshal(summary.StatusCounts)
	priorityJSON, _ := json.Marshal(summary.PriorityCounts)
	prompt := prompts.Format(prompts.MustGet(prompts.AssistantFile, "generate-summary"), map[string]string{
		"Kind":           string(kind),
		"Total":          strconv.Itoa(summary.TotalJobs),
		"StatusCounts":   string(statusJSON),
		"PriorityCounts": string(priorityJSON),
	})

	text, err := a.client.GenerateContent(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}
	summary.Text = text
	return summary, nil
}

// ExtractPartsInfo pulls part names, numbers and urgency cues out of a job
// description. A blank description is answered without calling the model.
func (a *Assistant) ExtractPartsInfo(ctx context.Context, description string) (*PartsInfo, error) {
	text := fetch.HTMLToText(description)
	if text == "" {
		return &PartsInfo{
			PartsMentioned:    []string{},
			PartNumbers:       []string{},
			Quantities:        []string{},
			UrgencyIndicators: []string{},
		}, nil
	}

	raw, err := a.client.GenerateJSON(ctx, llm.BuildExtractionPrompt(llm.PartsInfoSchema(), text), llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("failed to extract parts info: %w", err)
	}
	raw = llm.CleanJSONBlock(raw)

	if err := schemas.Validate(schemas.PartsInfo, raw); err != nil {
		return nil, &ResponseError{Op: "extract parts info", Message: "model returned invalid parts info", Cause: err}
	}

	// Quantities may come back as numbers.
	var decoded struct {
		PartsInfo
		Quantities []any `json:"quantities"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, &ResponseError{Op: "extract parts info", Message: "failed to decode parts info", Cause: err}
	}

	info := decoded.PartsInfo
	info.Quantities = make([]string, 0, len(decoded.Quantities))
	for _, q := range decoded.Quantities {
		info.Quantities = append(info.Quantities, fmt.Sprint(q))
	}
	if info.UrgencyIndicators == nil {
		info.UrgencyIndicators = []string{}
	}
	return &info, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
