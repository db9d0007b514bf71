package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// fakeLLM records prompts and replies with canned text.
type fakeLLM struct {
	reply   string
	err     error
	prompts []string
	system  string
	history []llm.Message
	tiers   []llm.ModelTier
}

func (f *fakeLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	return f.reply, f.err
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.GenerateContent(ctx, prompt, tier)
}

func (f *fakeLLM) Chat(ctx context.Context, system string, history []llm.Message, message string, tier llm.ModelTier) (string, error) {
	f.system = system
	f.history = history
	return f.GenerateContent(ctx, message, tier)
}

func (f *fakeLLM) GetModel(tier llm.ModelTier) string { return "fake-" + string(tier) }
func (f *fakeLLM) Close() error                       { return nil }

func newTestAssistant(reply string) (*Assistant, *fakeLLM) {
	fake := &fakeLLM{reply: reply}
	return New(fake, zap.NewNop()), fake
}

func TestParseSearch(t *testing.T) {
	a, fake := newTestAssistant("```json\n" + `{
		"filters": {"status": ["parts on order", "Teleported"], "priority": ["URGENT", "High"], "search_text": " CR-SM-004112 "},
		"explanation": "Urgent tickets waiting on CR-SM-004112"
	}` + "\n```")

	result, err := a.ParseSearch(context.Background(), "urgent jobs waiting on CR-SM-004112",
		types.JobStatuses, types.PriorityLevels, []string{"Acme BV"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Parts On Order"}, result.Filters.Status, "unknown statuses dropped, case canonicalized")
	assert.Equal(t, []string{"Urgent", "High"}, result.Filters.Priority)
	assert.Equal(t, "CR-SM-004112", result.Filters.SearchText)
	assert.Equal(t, "Urgent tickets waiting on CR-SM-004112", result.Explanation)

	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], `Query: "urgent jobs waiting on CR-SM-004112"`)
	assert.Contains(t, fake.prompts[0], `"Acme BV"`)
	assert.Equal(t, llm.TierLite, fake.tiers[0])
}

func TestParseSearch_CapsCustomerList(t *testing.T) {
	a, fake := newTestAssistant(`{"filters": {}}`)
	customers := make([]string, 30)
	for i := range customers {
		customers[i] = "C" + string(rune('A'+i))
	}

	_, err := a.ParseSearch(context.Background(), "anything", nil, nil, customers)
	require.NoError(t, err)
	assert.Contains(t, fake.prompts[0], `"CT"`)
	assert.NotContains(t, fake.prompts[0], `"CU"`)
}

func TestParseSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		reply  string
		llmErr error
		check  func(t *testing.T, err error)
	}{
		{
			name:  "empty query",
			query: "  ",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyQuery) },
		},
		{
			name:   "llm failure",
			query:  "urgent",
			llmErr: errors.New("quota exceeded"),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "quota exceeded")
			},
		},
		{
			name:  "schema violation",
			query: "urgent",
			reply: `{"filters": {"status": "Urgent"}}`,
			check: func(t *testing.T, err error) {
				var re *ResponseError
				require.True(t, errors.As(err, &re))
				assert.Equal(t, "parse search", re.Op)
			},
		},
		{
			name:  "not json",
			query: "urgent",
			reply: "I could not understand that.",
			check: func(t *testing.T, err error) {
				var re *ResponseError
				assert.True(t, errors.As(err, &re))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLLM{reply: tt.reply, err: tt.llmErr}
			_, err := New(fake, nil).ParseSearch(context.Background(), tt.query, types.JobStatuses, types.PriorityLevels, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFilters_JobFilterRoundTrip(t *testing.T) {
	f := Filters{Status: []string{"Shipped"}, Priority: []string{"Low"}, SearchText: "pump", Customer: "Acme"}
	jf := f.JobFilter()
	assert.Equal(t, []string{"Shipped"}, jf.Statuses)
	assert.Equal(t, "Acme", jf.Customer)
	assert.Equal(t, f, FiltersFrom(jf))
	assert.True(t, Filters{}.IsEmpty())
}
