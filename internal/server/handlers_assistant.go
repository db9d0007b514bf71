package server

import (
	"net/http"

	"github.com/jonathan/parts-dashboard/internal/assistant"
	"github.com/jonathan/parts-dashboard/internal/db"
	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// SearchRequest is the body of POST /assistant/search.
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=500"`
	Limit int    `json:"limit" validate:"gte=0"`
}

// SearchResponse carries the parsed filters and the first page of matches.
type SearchResponse struct {
	Filters     assistant.Filters `json:"filters"`
	Explanation string            `json:"explanation"`
	Results     *db.JobPage       `json:"results"`
}

// ChatRequest is the body of POST /assistant/chat. Filters are the ones the
// dashboard currently has applied.
type ChatRequest struct {
	Message string            `json:"message" validate:"required,max=2000"`
	History []llm.Message     `json:"history" validate:"max=50,dive"`
	Filters assistant.Filters `json:"filters"`
}

// SummaryRequest is the body of POST /assistant/summary. An empty body asks
// for a daily summary of every in-scope job.
type SummaryRequest struct {
	Kind    assistant.SummaryKind `json:"kind" validate:"omitempty,oneof=daily weekly status"`
	Filters assistant.Filters     `json:"filters"`
}

// handleAssistantSearch turns a natural-language query into filters and applies them
func (s *Server) handleAssistantSearch(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAssistant(); err != nil {
		s.handleError(w, r, err)
		return
	}

	var req SearchRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	customers, err := s.db.GetCustomerNames(r.Context(), 0)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	result, err := s.assistant.ParseSearch(r.Context(), req.Query, types.JobStatuses, types.PriorityLevels, customers)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	filter := result.Filters.JobFilter()
	filter.Limit = req.Limit
	page, err := s.db.ListJobs(r.Context(), filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, SearchResponse{
		Filters:     result.Filters,
		Explanation: result.Explanation,
		Results:     page,
	})
}

// handleAssistantChat answers a chat message with the dashboard state as context
func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAssistant(); err != nil {
		s.handleError(w, r, err)
		return
	}

	var req ChatRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	stats, err := s.db.GetJobStatistics(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	counts, err := s.db.GetStatusCounts(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp, err := s.assistant.Chat(r.Context(), req.Message, assistant.DashboardContext{
		Stats:        stats,
		StatusCounts: counts,
		Filters:      req.Filters,
	}, req.History)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleAssistantSummary writes a report over the jobs matching the filters
func (s *Server) handleAssistantSummary(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAssistant(); err != nil {
		s.handleError(w, r, err)
		return
	}

	var req SummaryRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	filter := req.Filters.JobFilter()
	filter.Limit = -1
	page, err := s.db.ListJobs(r.Context(), filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	summary, err := s.assistant.GenerateSummary(r.Context(), page.Jobs, req.Kind)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}
