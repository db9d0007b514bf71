package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/prompts"
	"github.com/jonathan/parts-dashboard/internal/schemas"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// DashboardContext is what the dashboard currently shows.
type DashboardContext struct {
	Stats        *types.JobStatistics `json:"stats,omitempty"`
	StatusCounts []types.Count        `json:"status_counts,omitempty"`
	Filters      Filters              `json:"filters"`
}

// ChatAction is a structured instruction embedded in a chat answer.
type ChatAction struct {
	Action      string  `json:"action"`
	Filters     Filters `json:"filters"`
	Explanation string  `json:"explanation,omitempty"`
}

// ChatResponse is the assistant's reply. Action is nil when the reply is plain text.
type ChatResponse struct {
	Text   string      `json:"response"`
	Action *ChatAction `json:"action,omitempty"`
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Chat answers message in the context of the dashboard and the earlier turns.
func (a *Assistant) Chat(ctx context.Context, message string, dc DashboardContext, history []llm.Message) (*ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyQuery
	}

	text, err := a.client.Chat(ctx, systemPrompt(dc), history, message, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat response: %w", err)
	}

	resp := &ChatResponse{Text: text, Action: parseAction(text)}
	if resp.Action != nil {
		resp.Action.Filters = restrict(resp.Action.Filters, types.JobStatuses, types.PriorityLevels)
		a.logger.Debug("chat returned action", zap.String("action", resp.Action.Action))
	}
	return resp, nil
}

func systemPrompt(dc DashboardContext) string {
	system := prompts.Format(prompts.MustGet(prompts.AssistantFile, "system"), map[string]string{
		"Statuses":   jsonList(types.JobStatuses),
		"Priorities": jsonList(types.PriorityLevels),
	})

	if dc.Stats == nil && len(dc.StatusCounts) == 0 && dc.Filters.IsEmpty() {
		return system
	}

	data := map[string]string{
		"TotalJobs":      "unknown",
		"PartsPending":   "unknown",
		"PartsDelivered": "unknown",
		"StatusCounts":   "{}",
		"Filters":        "none",
	}
	if dc.Stats != nil {
		data["TotalJobs"] = strconv.Itoa(dc.Stats.TotalJobs)
		data["PartsPending"] = strconv.Itoa(dc.Stats.PartsPending)
		data["PartsDelivered"] = strconv.Itoa(dc.Stats.PartsDelivered)
	}
	if len(dc.StatusCounts) > 0 {
		counts := make(map[string]int, len(dc.StatusCounts))
		for _, c := range dc.StatusCounts {
			counts[c.Value] = c.Count
		}
		if encoded, err := json.Marshal(counts); err == nil {
			data["StatusCounts"] = string(encoded)
		}
	}
	if !dc.Filters.IsEmpty() {
		if encoded, err := json.Marshal(dc.Filters); err == nil {
			data["Filters"] = string(encoded)
		}
	}
	return system + prompts.Format(prompts.MustGet(prompts.AssistantFile, "dashboard-context"), data)
}

// parseAction finds a filter action in a chat answer: a fenced json block
// first, then the first inline object. Anything that does not validate is ignored.
func parseAction(text string) *ChatAction {
	var candidate string
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	} else if obj := llm.FindJSONObject(text); strings.Contains(obj, `"action"`) {
		candidate = obj
	}
	if candidate == "" {
		return nil
	}
	if err := schemas.Validate(schemas.ChatAction, candidate); err != nil {
		return nil
	}

	var action ChatAction
	if err := json.Unmarshal([]byte(candidate), &action); err != nil {
		return nil
	}
	return &action
}
