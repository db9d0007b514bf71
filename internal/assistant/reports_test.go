package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/types"
)

func strPtr(s string) *string { return &s }

func TestAnalyzeJob(t *testing.T) {
	a, fake := newTestAssistant("Summary: compressor swap. Next: check with Sam.")
	job := &types.JobRecord{
		DisplayNumber:  "1042",
		Title:          "Replace compressor",
		Description:    "<p>Unit 3 <b>down</b></p><script>x()</script>",
		Status:         "Parts On Order",
		Priority:       "High",
		ScheduledStart: strPtr("2024-03-01 09:30:00"),
	}

	text, err := a.AnalyzeJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "Summary: compressor swap. Next: check with Sam.", text)

	prompt := fake.prompts[0]
	assert.Contains(t, prompt, "- Job number: 1042")
	assert.Contains(t, prompt, "- Description: Unit 3 down")
	assert.NotContains(t, prompt, "<p>")
	assert.Contains(t, prompt, "- Customer: N/A")
	assert.Contains(t, prompt, "- Scheduled: 2024-03-01 09:30:00")
	assert.Contains(t, prompt, "- Parts delivered: no")
}

func TestAnalyzeJob_Delivered(t *testing.T) {
	a, fake := newTestAssistant("ok")
	_, err := a.AnalyzeJob(context.Background(), &types.JobRecord{DisplayNumber: "7", PartsDeliveredAt: strPtr("2024-03-02 10:00:00")})
	require.NoError(t, err)
	assert.Contains(t, fake.prompts[0], "- Parts delivered: yes, 2024-03-02 10:00:00")

	_, err = a.AnalyzeJob(context.Background(), nil)
	assert.Error(t, err)
}

func TestGenerateSummary(t *testing.T) {
	a, fake := newTestAssistant("Executive summary: backlog stable.")
	jobs := []types.JobRecord{
		{Status: "Parts On Order", Priority: "High"},
		{Status: "Parts On Order", Priority: "Normal"},
		{Status: "Shipped", Priority: "Normal"},
		{},
	}

	summary, err := a.GenerateSummary(context.Background(), jobs, "")
	require.NoError(t, err)

	assert.Equal(t, SummaryDaily, summary.Kind)
	assert.Equal(t, 4, summary.TotalJobs)
	assert.Equal(t, map[string]int{"Parts On Order": 2, "Shipped": 1, "Unknown": 1}, summary.StatusCounts)
	assert.Equal(t, map[string]int{"High": 1, "Normal": 2, "Unknown": 1}, summary.PriorityCounts)
	assert.Equal(t, "Executive summary: backlog stable.", summary.Text)
	assert.Contains(t, fake.prompts[0], "Generate a daily summary report")
	assert.Contains(t, fake.prompts[0], "- Total jobs: 4")
}

func TestGenerateSummary_Errors(t *testing.T) {
	a, _ := newTestAssistant("")
	_, err := a.GenerateSummary(context.Background(), nil, "monthly")
	assert.ErrorContains(t, err, "unknown summary kind")

	fake := &fakeLLM{err: errors.New("down")}
	_, err = New(fake, nil).GenerateSummary(context.Background(), nil, SummaryWeekly)
	assert.ErrorContains(t, err, "failed to generate summary")
}

func TestExtractPartsInfo(t *testing.T) {
	a, fake := newTestAssistant(`Here is the result:
{"parts_mentioned": ["serialized module"], "part_numbers": ["CR-SM-004112"], "quantities": [2, "one box"], "summary": "Two modules needed"}`)

	info, err := a.ExtractPartsInfo(context.Background(), "<p>Need 2x CR-SM-004112 ASAP</p>")
	require.NoError(t, err)

	assert.Equal(t, []string{"serialized module"}, info.PartsMentioned)
	assert.Equal(t, []string{"CR-SM-004112"}, info.PartNumbers)
	assert.Equal(t, []string{"2", "one box"}, info.Quantities)
	assert.Equal(t, []string{}, info.UrgencyIndicators)
	assert.Equal(t, "Two modules needed", info.Summary)

	assert.Contains(t, fake.prompts[0], "Need 2x CR-SM-004112 ASAP")
	assert.Equal(t, llm.TierLite, fake.tiers[0])
}

func TestExtractPartsInfo_BlankDescriptionSkipsModel(t *testing.T) {
	a, fake := newTestAssistant("")
	info, err := a.ExtractPartsInfo(context.Background(), "<p> </p>")
	require.NoError(t, err)
	assert.Empty(t, info.PartNumbers)
	assert.Empty(t, fake.prompts)
}

func TestExtractPartsInfo_InvalidResponse(t *testing.T) {
	a, _ := newTestAssistant(`{"parts_mentioned": "module"}`)
	_, err := a.ExtractPartsInfo(context.Background(), "need a module")

	var re *ResponseError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "extract parts info", re.Op)
}
