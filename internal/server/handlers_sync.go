package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/types"
)

const (
	defaultSyncRunsLimit = 20
	maxSyncRunsLimit     = 200
)

// SyncResponse is the answer to POST /sync.
type SyncResponse struct {
	Run   *types.SyncRun `json:"run"`
	Error string         `json:"error,omitempty"`
}

// handleSync runs one sync to completion and returns its stats. A run that
// finished with status failed is still a 200; its error messages say why.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.features.ManualSync {
		s.handleError(w, r, &FeatureDisabledError{Feature: "manual_sync"})
		return
	}

	// A client disconnect must not cut the run short.
	run, err := s.syncer.RunSync(context.WithoutCancel(r.Context()))
	if err != nil {
		if run == nil {
			s.handleError(w, r, err)
			return
		}
		// The run happened but its completion could not be recorded.
		s.logger.Error("sync completed without a log entry", zap.Error(err))
		s.jsonResponse(w, http.StatusInternalServerError, SyncResponse{Run: run, Error: "failed to record sync completion"})
		return
	}
	s.jsonResponse(w, http.StatusOK, SyncResponse{Run: run})
}

// handleLastSync returns the most recent sync run, or null before the first one
func (s *Server) handleLastSync(w http.ResponseWriter, r *http.Request) {
	run, err := s.syncer.GetLastSyncInfo(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]*types.SyncRun{"last_sync": run})
}

// handleListSyncRuns returns the sync log, newest first
func (s *Server) handleListSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := nonNegativeInt(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if limit == 0 {
		limit = defaultSyncRunsLimit
	}
	limit = min(limit, maxSyncRunsLimit)

	runs, err := s.db.ListSyncRuns(r.Context(), limit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}
