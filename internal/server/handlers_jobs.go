package server

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/jonathan/parts-dashboard/internal/assistant"
	"github.com/jonathan/parts-dashboard/internal/geo"
	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// maxLookupNumbers bounds a single bulk lookup.
const maxLookupNumbers = 1000

// LookupRequest is the body of POST /jobs/lookup. Numbers and Text are merged;
// Text may hold a pasted list separated by commas, semicolons or whitespace.
type LookupRequest struct {
	Numbers []string `json:"numbers" validate:"max=1000,dive,max=64"`
	Text    string   `json:"text" validate:"max=20000"`
}

// LookupResponse is the answer to a bulk lookup.
type LookupResponse struct {
	Requested int               `json:"requested"`
	Jobs      []types.JobRecord `json:"jobs"`
	NotFound  []string          `json:"not_found"`
}

// AnalysisResponse is the answer to GET /jobs/{number}/analysis.
type AnalysisResponse struct {
	DisplayNumber string               `json:"display_number"`
	Analysis      string               `json:"analysis"`
	PartsInfo     *assistant.PartsInfo `json:"parts_info,omitempty"`
}

// MapMarker is one job pin on the map.
type MapMarker struct {
	DisplayNumber  string  `json:"display_number"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	Priority       string  `json:"priority"`
	CustomerName   string  `json:"customer_name"`
	Address        string  `json:"address"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Country        string  `json:"country"`
	PartsDelivered bool    `json:"parts_delivered"`
}

// MapResponse is the answer to GET /map.
type MapResponse struct {
	Markers []MapMarker `json:"markers"`
	Center  geo.Point   `json:"center"`
	Zoom    int         `json:"zoom"`
}

// parseJobFilter reads status, priority, search, customer, parts, limit and
// offset from the query string. status and priority may repeat or be
// comma-separated; parts is pending or delivered.
func parseJobFilter(r *http.Request) (types.JobFilter, error) {
	q := r.URL.Query()
	filter := types.JobFilter{
		SearchText: strings.TrimSpace(q.Get("search")),
		Customer:   strings.TrimSpace(q.Get("customer")),
	}

	for _, v := range splitValues(q["status"]) {
		filter.Statuses = append(filter.Statuses, types.CanonicalStatus(v))
	}
	for _, v := range splitValues(q["priority"]) {
		filter.Priorities = append(filter.Priorities, types.CanonicalPriority(v))
	}

	switch strings.ToLower(strings.TrimSpace(q.Get("parts"))) {
	case "":
	case "pending":
		filter.PartsDelivered = new(bool)
	case "delivered":
		delivered := true
		filter.PartsDelivered = &delivered
	default:
		return filter, &RequestError{Field: "parts", Message: "must be pending or delivered"}
	}

	var err error
	if filter.Limit, err = nonNegativeInt(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = nonNegativeInt(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func splitValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func nonNegativeInt(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &RequestError{Field: field, Message: "must be a non-negative integer"}
	}
	return n, nil
}

// parseNumberList splits pasted job numbers on commas, semicolons and whitespace.
func parseNumberList(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// handleListJobs returns one page of in-scope jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	page, err := s.db.ListJobs(r.Context(), filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, page)
}

// handleGetJob returns one in-scope job by its display number
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(r.PathValue("number"))
	job, err := s.db.GetJobByDisplayNumber(r.Context(), number)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if job == nil {
		s.handleError(w, r, &NotFoundError{Resource: "job", ID: number})
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleLookupJobs looks up many job numbers at once
func (s *Server) handleLookupJobs(w http.ResponseWriter, r *http.Request) {
	if !s.features.BulkLookup {
		s.handleError(w, r, &FeatureDisabledError{Feature: "bulk_lookup"})
		return
	}

	var req LookupRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	numbers := append(req.Numbers, parseNumberList(req.Text)...)
	if len(numbers) == 0 {
		s.handleError(w, r, &RequestError{Field: "numbers", Message: "at least one job number is required"})
		return
	}
	if len(numbers) > maxLookupNumbers {
		s.handleError(w, r, &RequestError{Field: "numbers", Message: "too many job numbers"})
		return
	}

	result, err := s.db.GetJobsByDisplayNumbers(r.Context(), numbers)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, LookupResponse{
		Requested: result.Requested,
		Jobs:      result.Jobs,
		NotFound:  result.NotFound,
	})
}

// handleAnalyzeJob asks the assistant for a short analysis of one job.
// ?include=parts also extracts the parts mentioned in the description.
func (s *Server) handleAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAssistant(); err != nil {
		s.handleError(w, r, err)
		return
	}

	number := strings.TrimSpace(r.PathValue("number"))
	job, err := s.db.GetJobByDisplayNumber(r.Context(), number)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if job == nil {
		s.handleError(w, r, &NotFoundError{Resource: "job", ID: number})
		return
	}

	analysis, err := s.assistant.AnalyzeJob(r.Context(), job)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := AnalysisResponse{DisplayNumber: job.DisplayNumber, Analysis: analysis}
	if r.URL.Query().Get("include") == "parts" {
		info, err := s.assistant.ExtractPartsInfo(r.Context(), job.Description)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		resp.PartsInfo = info
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleMap returns map markers for every in-scope job matching the filters
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	filter.Limit = -1

	page, err := s.db.ListJobs(r.Context(), filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := MapResponse{Markers: make([]MapMarker, 0, len(page.Jobs))}
	points := make([]geo.Point, 0, len(page.Jobs))
	for _, job := range page.Jobs {
		if !job.HasCoordinates() {
			continue
		}
		lat, lon := *job.Latitude, *job.Longitude
		resp.Markers = append(resp.Markers, MapMarker{
			DisplayNumber:  job.DisplayNumber,
			Title:          job.Title,
			Status:         job.Status,
			Priority:       job.Priority,
			CustomerName:   job.CustomerName,
			Address:        job.Address,
			Lat:            lat,
			Lon:            lon,
			Country:        geo.ApproxCountry(lat, lon),
			PartsDelivered: job.PartsDelivered(),
		})
		points = append(points, geo.Point{Lat: lat, Lon: lon})
	}
	resp.Center = geo.Center(points)
	resp.Zoom = geo.ZoomLevel(len(resp.Markers))
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleStats returns aggregate statistics over in-scope jobs
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetJobStatistics(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// handleStatusCounts returns job counts grouped by status and by priority
func (s *Server) handleStatusCounts(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.db.GetStatusCounts(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	priorities, err := s.db.GetPriorityCounts(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string][]types.Count{
		"status":   statuses,
		"priority": priorities,
	})
}

// requireAssistant reports why assistant endpoints cannot be served, if they cannot.
func (s *Server) requireAssistant() error {
	if !s.features.AIAssistant {
		return &FeatureDisabledError{Feature: "ai_assistant"}
	}
	if s.assistant == nil {
		return llm.ErrNotConfigured
	}
	return nil
}
