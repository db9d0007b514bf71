// Package assistant turns free-text questions about the parts dashboard into
// filters, chat answers and short reports using an LLM.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/logging"
	"github.com/jonathan/parts-dashboard/internal/prompts"
	"github.com/jonathan/parts-dashboard/internal/schemas"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// maxPromptCustomers caps how many customer names are offered to the model.
const maxPromptCustomers = 20

// ErrEmptyQuery is returned for blank search queries and chat messages.
var ErrEmptyQuery = errors.New("query is empty")

// ResponseError is returned when the model answers with something that
// cannot be used.
type ResponseError struct {
	Op      string
	Message string
	Cause   error
}

func (e *ResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("assistant error: %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("assistant error: %s: %s", e.Op, e.Message)
}

func (e *ResponseError) Unwrap() error {
	return e.Cause
}

// Filters is the structured filter set the assistant produces.
type Filters struct {
	Status     []string `json:"status,omitempty"`
	Priority   []string `json:"priority,omitempty"`
	SearchText string   `json:"search_text,omitempty"`
	Customer   string   `json:"customer,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return len(f.Status) == 0 && len(f.Priority) == 0 && f.SearchText == "" && f.Customer == ""
}

// JobFilter converts f into a query-layer filter.
func (f Filters) JobFilter() types.JobFilter {
	return types.JobFilter{
		Statuses:   f.Status,
		Priorities: f.Priority,
		SearchText: f.SearchText,
		Customer:   f.Customer,
	}
}

// FiltersFrom converts a query-layer filter into assistant filters.
func FiltersFrom(f types.JobFilter) Filters {
	return Filters{Status: f.Statuses, Priority: f.Priorities, SearchText: f.SearchText, Customer: f.Customer}
}

// SearchResult is the answer to ParseSearch.
type SearchResult struct {
	Filters     Filters `json:"filters"`
	Explanation string  `json:"explanation"`
}

// Assistant answers dashboard questions through an llm.Client.
type Assistant struct {
	client llm.Client
	logger *zap.Logger
}

// New creates an Assistant.
func New(client llm.Client, logger *zap.Logger) *Assistant {
	return &Assistant{client: client, logger: logging.OrNop(logger).Named("assistant")}
}

// ParseSearch turns a natural-language query into filters. Status and priority
// values are restricted to the given vocabularies; anything else is dropped.
func (a *Assistant) ParseSearch(ctx context.Context, query string, statuses, priorities, customers []string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(customers) > maxPromptCustomers {
		customers = customers[:maxPromptCustomers]
	}

	prompt := prompts.Format(prompts.MustGet(prompts.AssistantFile, "parse-search"), map[string]string{
		"Query":      query,
		"Statuses":   jsonList(statuses),
		"Priorities": jsonList(priorities),
		"Customers":  jsonList(customers),
	})

	raw, err := a.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search query: %w", err)
	}
	raw = llm.CleanJSONBlock(raw)

	if err := schemas.Validate(schemas.SearchFilters, raw); err != nil {
		return nil, &ResponseError{Op: "parse search", Message: "model returned invalid filters", Cause: err}
	}

	var result SearchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &ResponseError{Op: "parse search", Message: "failed to decode filters", Cause: err}
	}

	result.Filters = restrict(result.Filters, statuses, priorities)
	a.logger.Debug("parsed search", zap.String("query", query), zap.Any("filters", result.Filters))
	return &result, nil
}

// restrict keeps only vocabulary values, mapped onto their canonical spelling.
func restrict(f Filters, statuses, priorities []string) Filters {
	return Filters{
		Status:     inVocabulary(f.Status, statuses),
		Priority:   inVocabulary(f.Priority, priorities),
		SearchText: strings.TrimSpace(f.SearchText),
		Customer:   strings.TrimSpace(f.Customer),
	}
}

func inVocabulary(values, vocabulary []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		v = strings.TrimSpace(v)
		for _, known := range vocabulary {
			if strings.EqualFold(v, known) && !seen[known] {
				seen[known] = true
				out = append(out, known)
				break
			}
		}
	}
	return out
}

func jsonList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
