package server

import (
	"net/http"

	"github.com/jonathan/parts-dashboard/internal/types"
)

// PartsOverview is the answer to GET /parts.
type PartsOverview struct {
	TotalJobs        int               `json:"total_jobs"`
	PartsDelivered   int               `json:"parts_delivered_count"`
	PartsPending     int               `json:"parts_pending_count"`
	DeliveryRate     *float64          `json:"delivery_rate"`
	Waiting          []types.JobRecord `json:"waiting"`
	RecentDeliveries []types.JobRecord `json:"recent_deliveries"`
}

// handlePartsOverview returns parts counts, the jobs still waiting for parts
// (soonest scheduled first) and the latest deliveries. ?limit= bounds the
// delivery list.
func (s *Server) handlePartsOverview(w http.ResponseWriter, r *http.Request) {
	limit, err := nonNegativeInt(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	stats, err := s.db.GetJobStatistics(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	waiting, err := s.db.GetJobsWaitingForParts(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	recent, err := s.db.GetRecentDeliveries(r.Context(), limit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := PartsOverview{
		TotalJobs:        stats.TotalJobs,
		PartsDelivered:   stats.PartsDelivered,
		PartsPending:     stats.PartsPending,
		Waiting:          waiting,
		RecentDeliveries: recent,
	}
	if stats.TotalJobs > 0 {
		rate := float64(stats.PartsDelivered) / float64(stats.TotalJobs) * 100
		resp.DeliveryRate = &rate
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
