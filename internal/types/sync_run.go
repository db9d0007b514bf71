package types

import "time"

// SyncStatus is the lifecycle state of a sync run.
type SyncStatus string

// Sync run states. A run moves from running to exactly one terminal state.
const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// FetchOutcome tags how much of the remote data set a fetch managed to read.
type FetchOutcome string

// Fetch outcomes
const (
	// FetchComplete means every page was read.
	FetchComplete FetchOutcome = "complete"
	// FetchPartial means the fetch stopped on an error after reading some records.
	FetchPartial FetchOutcome = "partial"
	// FetchFailed means the fetch stopped on an error before reading any record.
	FetchFailed FetchOutcome = "failed"
)

// SyncRun is one row of the append-only sync log and doubles as the stats
// object returned by a sync.
type SyncRun struct {
	ID              int64        `json:"id"`
	RunUID          string       `json:"run_uid"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	Status          SyncStatus   `json:"status"`
	FetchOutcome    FetchOutcome `json:"fetch_outcome,omitempty"`
	JobsFetched     int          `json:"jobs_fetched"`
	JobsCreated     int          `json:"jobs_created"`
	JobsUpdated     int          `json:"jobs_updated"`
	ErrorMessages   []string     `json:"error_messages"`
	DurationSeconds float64      `json:"duration_seconds"`
}

// Finish moves the run to a terminal state and derives its duration.
func (r *SyncRun) Finish(status SyncStatus, completedAt time.Time) {
	r.Status = status
	r.CompletedAt = &completedAt
	r.DurationSeconds = completedAt.Sub(r.StartedAt).Seconds()
}

// AddError appends a message to the run's error list.
func (r *SyncRun) AddError(msg string) {
	r.ErrorMessages = append(r.ErrorMessages, msg)
}

// JobStatistics is the aggregate view over all in-scope jobs.
type JobStatistics struct {
	TotalJobs         int     `json:"total_jobs"`
	UniqueStatuses    int     `json:"unique_statuses"`
	PartsDelivered    int     `json:"parts_delivered_count"`
	PartsPending      int     `json:"parts_pending_count"`
	EarliestScheduled *string `json:"earliest_scheduled"`
	LatestScheduled   *string `json:"latest_scheduled"`
	LastSyncTime      *string `json:"last_sync_time"`
}

// Count is one bucket of a grouped count (status or priority).
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// JobFilter narrows the in-scope job list. Empty fields do not filter.
// PartsDelivered, when set, keeps only jobs whose parts have (true) or have
// not (false) been delivered.
type JobFilter struct {
	Statuses       []string `json:"status,omitempty"`
	Priorities     []string `json:"priority,omitempty"`
	SearchText     string   `json:"search_text,omitempty"`
	Customer       string   `json:"customer,omitempty"`
	PartsDelivered *bool    `json:"parts_delivered,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Offset         int      `json:"offset,omitempty"`
}

// IsEmpty reports whether the filter carries no criteria (pagination aside).
func (f JobFilter) IsEmpty() bool {
	return len(f.Statuses) == 0 && len(f.Priorities) == 0 && f.SearchText == "" && f.Customer == "" &&
		f.PartsDelivered == nil
}
