package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/types"
)

// Pagination defaults for ListJobs.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// lookupChunkSize keeps IN lists below engine parameter limits.
const lookupChunkSize = 500

// UpsertOutcome reports whether an upsert inserted or replaced a row.
type UpsertOutcome string

// Upsert outcomes
const (
	UpsertCreated UpsertOutcome = "created"
	UpsertUpdated UpsertOutcome = "updated"
)

// LookupResult is the answer to a bulk display-number lookup. Requested
// counts the distinct non-blank numbers asked for.
type LookupResult struct {
	Requested int               `json:"requested"`
	Jobs      []types.JobRecord `json:"jobs"`
	NotFound  []string          `json:"not_found"`
}

// DefaultRecentDeliveries is how many deliveries GetRecentDeliveries returns
// when no limit is given.
const DefaultRecentDeliveries = 10

// JobPage is one page of a filtered job listing.
type JobPage struct {
	Jobs   []types.JobRecord `json:"jobs"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

var jobColumns = []string{
	"external_id",
	"display_number",
	"title",
	"description",
	"status",
	"category",
	"priority",
	"customer_name",
	"customer_id",
	"address",
	"latitude",
	"longitude",
	"assigned_technician",
	"technician_id",
	"scheduled_start",
	"scheduled_end",
	"actual_start",
	"actual_end",
	"created_at",
	"updated_at",
	"parts_status",
	"parts_delivered_at",
	"custom_fields",
	"tags",
	"last_synced_at",
}

var (
	selectJobsSQL = "SELECT " + strings.Join(jobColumns, ", ") + " FROM jobs"
	upsertJobSQL  = buildUpsertSQL()
)

// jobOrder sorts newest scheduled first; unscheduled jobs go last.
const jobOrder = " ORDER BY scheduled_start DESC NULLS LAST, display_number, external_id"

// buildUpsertSQL writes every column on conflict except the key. last_synced_at
// only ever moves forward.
func buildUpsertSQL() string {
	var sets []string
	for _, col := range jobColumns {
		switch col {
		case "external_id":
		case "last_synced_at":
			sets = append(sets, "last_synced_at = CASE WHEN excluded.last_synced_at > jobs.last_synced_at "+
				"THEN excluded.last_synced_at ELSE jobs.last_synced_at END")
		default:
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	return fmt.Sprintf("INSERT INTO jobs (%s) VALUES (%s) ON CONFLICT (external_id) DO UPDATE SET %s",
		strings.Join(jobColumns, ", "), placeholders(len(jobColumns)), strings.Join(sets, ", "))
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func jobArgs(job *types.JobRecord) []any {
	return []any{
		job.ExternalID,
		job.DisplayNumber,
		job.Title,
		job.Description,
		job.Status,
		job.Category,
		job.Priority,
		job.CustomerName,
		job.CustomerID,
		job.Address,
		nullFloat(job.Latitude),
		nullFloat(job.Longitude),
		job.AssignedTechnician,
		job.TechnicianID,
		nullString(job.ScheduledStart),
		nullString(job.ScheduledEnd),
		nullString(job.ActualStart),
		nullString(job.ActualEnd),
		nullString(job.CreatedAt),
		nullString(job.UpdatedAt),
		job.PartsStatus,
		nullString(job.PartsDeliveredAt),
		job.CustomFields,
		job.Tags,
		nullString(job.LastSyncedAt),
	}
}

func scanJobs(result *Result) []types.JobRecord {
	jobs := make([]types.JobRecord, 0, result.Len())
	for _, r := range rowsOf(result) {
		jobs = append(jobs, types.JobRecord{
			ExternalID:         r.str("external_id"),
			DisplayNumber:      r.str("display_number"),
			Title:              r.str("title"),
			Description:        r.str("description"),
			Status:             r.str("status"),
			Category:           r.str("category"),
			Priority:           r.str("priority"),
			CustomerName:       r.str("customer_name"),
			CustomerID:         r.str("customer_id"),
			Address:            r.str("address"),
			Latitude:           r.floatPtr("latitude"),
			Longitude:          r.floatPtr("longitude"),
			AssignedTechnician: r.str("assigned_technician"),
			TechnicianID:       r.str("technician_id"),
			ScheduledStart:     r.strPtr("scheduled_start"),
			ScheduledEnd:       r.strPtr("scheduled_end"),
			ActualStart:        r.strPtr("actual_start"),
			ActualEnd:          r.strPtr("actual_end"),
			CreatedAt:          r.strPtr("created_at"),
			UpdatedAt:          r.strPtr("updated_at"),
			PartsStatus:        r.str("parts_status"),
			PartsDeliveredAt:   r.strPtr("parts_delivered_at"),
			CustomFields:       r.str("custom_fields"),
			Tags:               r.str("tags"),
			LastSyncedAt:       r.strPtr("last_synced_at"),
		})
	}
	return jobs
}

// scopeClause returns the in-scope predicate and its arguments.
func (db *DB) scopeClause() (string, []any) {
	b := db.scope.Bounds
	return "category = ? AND latitude IS NOT NULL AND longitude IS NOT NULL " +
			"AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
		[]any{db.scope.Category, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon}
}

func (db *DB) queryJobs(ctx context.Context, where string, args []any, suffix string) ([]types.JobRecord, error) {
	stmt := selectJobsSQL
	if where != "" {
		stmt += " WHERE " + where
	}
	result, err := db.gw.Execute(ctx, stmt+suffix, args, true)
	if err != nil {
		return nil, err
	}
	return scanJobs(result), nil
}

// JobExists reports whether a job with externalID is stored.
func (db *DB) JobExists(ctx context.Context, externalID string) (bool, error) {
	result, err := db.gw.Execute(ctx, "SELECT 1 FROM jobs WHERE external_id = ?", []any{externalID}, true)
	if err != nil {
		return false, fmt.Errorf("failed to check job %s: %w", externalID, err)
	}
	return result.Len() > 0, nil
}

// UpsertJob writes job keyed on its external id and stamps last_synced_at with
// syncedAt. The existence check and the write each run in their own transaction.
func (db *DB) UpsertJob(ctx context.Context, job *types.JobRecord, syncedAt time.Time) (UpsertOutcome, error) {
	if job.ExternalID == "" {
		return "", fmt.Errorf("failed to upsert job: empty external id")
	}

	exists, err := db.JobExists(ctx, job.ExternalID)
	if err != nil {
		return "", err
	}

	stamp := syncedAt.UTC().Format(types.SyncTimestampLayout)
	job.LastSyncedAt = &stamp

	if _, err := db.gw.Execute(ctx, upsertJobSQL, jobArgs(job), false); err != nil {
		return "", fmt.Errorf("failed to upsert job %s: %w", job.ExternalID, err)
	}

	if exists {
		return UpsertUpdated, nil
	}
	return UpsertCreated, nil
}

// GetJobByExternalID returns the stored job regardless of scope, or nil.
func (db *DB) GetJobByExternalID(ctx context.Context, externalID string) (*types.JobRecord, error) {
	jobs, err := db.queryJobs(ctx, "external_id = ?", []any{externalID}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", externalID, err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// GetAllInScopeJobs returns every in-scope job, newest scheduled first.
func (db *DB) GetAllInScopeJobs(ctx context.Context) ([]types.JobRecord, error) {
	where, args := db.scopeClause()
	jobs, err := db.queryJobs(ctx, where, args, jobOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to get in-scope jobs: %w", err)
	}
	return jobs, nil
}

// GetJobByDisplayNumber returns the in-scope job with the given number, or nil.
func (db *DB) GetJobByDisplayNumber(ctx context.Context, number string) (*types.JobRecord, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, nil
	}
	where, args := db.scopeClause()
	jobs, err := db.queryJobs(ctx, "display_number = ? AND "+where, append([]any{number}, args...), jobOrder+" LIMIT 1")
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", number, err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// GetJobsByDisplayNumbers looks up many in-scope jobs at once. Numbers with
// no match are returned in NotFound, in input order.
func (db *DB) GetJobsByDisplayNumbers(ctx context.Context, numbers []string) (*LookupResult, error) {
	wanted := uniqueTrimmed(numbers)
	result := &LookupResult{Requested: len(wanted), Jobs: []types.JobRecord{}, NotFound: []string{}}
	if len(wanted) == 0 {
		return result, nil
	}

	scope, scopeArgs := db.scopeClause()
	for start := 0; start < len(wanted); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(wanted))
		chunk := wanted[start:end]

		args := make([]any, 0, len(chunk)+len(scopeArgs))
		for _, n := range chunk {
			args = append(args, n)
		}
		args = append(args, scopeArgs...)

		where := fmt.Sprintf("display_number IN (%s) AND %s", placeholders(len(chunk)), scope)
		jobs, err := db.queryJobs(ctx, where, args, "")
		if err != nil {
			return nil, fmt.Errorf("failed to look up jobs: %w", err)
		}
		result.Jobs = append(result.Jobs, jobs...)
	}

	found := make(map[string]bool, len(result.Jobs))
	for _, j := range result.Jobs {
		found[j.DisplayNumber] = true
	}
	for _, n := range wanted {
		if !found[n] {
			result.NotFound = append(result.NotFound, n)
		}
	}
	sortJobs(result.Jobs)
	return result, nil
}

// GetJobStatistics aggregates over all in-scope jobs. Delivered and pending
// always add up to the total.
func (db *DB) GetJobStatistics(ctx context.Context) (*types.JobStatistics, error) {
	where, args := db.scopeClause()
	stmt := `SELECT
		COUNT(*) AS total_jobs,
		COUNT(DISTINCT status) AS unique_statuses,
		COUNT(CASE WHEN parts_delivered_at IS NOT NULL THEN 1 END) AS parts_delivered_count,
		COUNT(CASE WHEN parts_delivered_at IS NULL THEN 1 END) AS parts_pending_count,
		MIN(scheduled_start) AS earliest_scheduled,
		MAX(scheduled_start) AS latest_scheduled,
		MAX(last_synced_at) AS last_sync_time
	FROM jobs WHERE ` + where

	result, err := db.gw.Execute(ctx, stmt, args, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get job statistics: %w", err)
	}
	stats := &types.JobStatistics{}
	rows := rowsOf(result)
	if len(rows) == 0 {
		return stats, nil
	}
	r := rows[0]
	stats.TotalJobs = r.int("total_jobs")
	stats.UniqueStatuses = r.int("unique_statuses")
	stats.PartsDelivered = r.int("parts_delivered_count")
	stats.PartsPending = r.int("parts_pending_count")
	stats.EarliestScheduled = r.strPtr("earliest_scheduled")
	stats.LatestScheduled = r.strPtr("latest_scheduled")
	stats.LastSyncTime = r.strPtr("last_sync_time")
	return stats, nil
}

// GetStatusCounts returns in-scope job counts per status, largest first.
func (db *DB) GetStatusCounts(ctx context.Context) ([]types.Count, error) {
	return db.groupCounts(ctx, "status")
}

// GetPriorityCounts returns in-scope job counts per priority, largest first.
func (db *DB) GetPriorityCounts(ctx context.Context) ([]types.Count, error) {
	return db.groupCounts(ctx, "priority")
}

func (db *DB) groupCounts(ctx context.Context, column string) ([]types.Count, error) {
	where, args := db.scopeClause()
	stmt := fmt.Sprintf("SELECT %[1]s AS value, COUNT(*) AS count FROM jobs WHERE %[2]s GROUP BY %[1]s ORDER BY count DESC, value",
		column, where)
	result, err := db.gw.Execute(ctx, stmt, args, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by %s: %w", column, err)
	}
	counts := make([]types.Count, 0, result.Len())
	for _, r := range rowsOf(result) {
		counts = append(counts, types.Count{Value: r.str("value"), Count: r.int("count")})
	}
	return counts, nil
}

// GetJobsByStatus returns in-scope jobs whose status is one of statuses.
func (db *DB) GetJobsByStatus(ctx context.Context, statuses []string) ([]types.JobRecord, error) {
	if len(statuses) == 0 {
		return []types.JobRecord{}, nil
	}
	page, err := db.ListJobs(ctx, types.JobFilter{Statuses: statuses, Limit: -1})
	if err != nil {
		return nil, err
	}
	return page.Jobs, nil
}

// SearchJobs matches term case-insensitively against number, title,
// customer and address of in-scope jobs.
func (db *DB) SearchJobs(ctx context.Context, term string) ([]types.JobRecord, error) {
	if strings.TrimSpace(term) == "" {
		return []types.JobRecord{}, nil
	}
	page, err := db.ListJobs(ctx, types.JobFilter{SearchText: term, Limit: -1})
	if err != nil {
		return nil, err
	}
	return page.Jobs, nil
}

// ListJobs returns one page of in-scope jobs matching filter. A zero Limit
// means DefaultPageSize; a negative Limit returns every match and ignores Offset.
func (db *DB) ListJobs(ctx context.Context, filter types.JobFilter) (*JobPage, error) {
	scope, args := db.scopeClause()
	clauses := []string{scope}

	if len(filter.Statuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", placeholders(len(filter.Statuses))))
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", placeholders(len(filter.Priorities))))
		for _, p := range filter.Priorities {
			args = append(args, p)
		}
	}
	if text := strings.TrimSpace(filter.SearchText); text != "" {
		pattern := likePattern(text)
		var ors []string
		for _, col := range []string{"display_number", "title", "customer_name", "address", "description"} {
			ors = append(ors, fmt.Sprintf(`LOWER(COALESCE(%s, '')) LIKE LOWER(?) ESCAPE '\'`, col))
			args = append(args, pattern)
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if customer := strings.TrimSpace(filter.Customer); customer != "" {
		clauses = append(clauses, `LOWER(COALESCE(customer_name, '')) LIKE LOWER(?) ESCAPE '\'`)
		args = append(args, likePattern(customer))
	}
	if filter.PartsDelivered != nil {
		if *filter.PartsDelivered {
			clauses = append(clauses, "parts_delivered_at IS NOT NULL")
		} else {
			clauses = append(clauses, "parts_delivered_at IS NULL")
		}
	}
	where := strings.Join(clauses, " AND ")

	countResult, err := db.gw.Execute(ctx, "SELECT COUNT(*) AS total FROM jobs WHERE "+where, args, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	total := 0
	if rows := rowsOf(countResult); len(rows) > 0 {
		total = rows[0].int("total")
	}

	limit, offset := filter.Limit, max(filter.Offset, 0)
	suffix := jobOrder
	if limit < 0 {
		limit, offset = total, 0
	} else {
		if limit == 0 {
			limit = DefaultPageSize
		}
		limit = min(limit, MaxPageSize)
		suffix += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	jobs, err := db.queryJobs(ctx, where, args, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	db.logger.Debug("listed jobs", zap.Int("total", total), zap.Int("returned", len(jobs)))
	return &JobPage{Jobs: jobs, Total: total, Limit: limit, Offset: offset}, nil
}

// GetJobsWaitingForParts returns in-scope jobs with no parts delivery date,
// soonest scheduled first. Unscheduled jobs go last.
func (db *DB) GetJobsWaitingForParts(ctx context.Context) ([]types.JobRecord, error) {
	scope, args := db.scopeClause()
	jobs, err := db.queryJobs(ctx, "parts_delivered_at IS NULL AND "+scope, args,
		" ORDER BY scheduled_start ASC NULLS LAST, display_number, external_id")
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs waiting for parts: %w", err)
	}
	return jobs, nil
}

// GetRecentDeliveries returns the in-scope jobs whose parts arrived most
// recently, newest first. limit <= 0 means DefaultRecentDeliveries.
func (db *DB) GetRecentDeliveries(ctx context.Context, limit int) ([]types.JobRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentDeliveries
	}
	scope, args := db.scopeClause()
	args = append(args, limit)
	jobs, err := db.queryJobs(ctx, "parts_delivered_at IS NOT NULL AND "+scope, args,
		" ORDER BY parts_delivered_at DESC, display_number, external_id LIMIT ?")
	if err != nil {
		return nil, fmt.Errorf("failed to get recent deliveries: %w", err)
	}
	return jobs, nil
}

// GetCustomerNames returns distinct customer names of in-scope jobs, alphabetically.
func (db *DB) GetCustomerNames(ctx context.Context, limit int) ([]string, error) {
	where, args := db.scopeClause()
	stmt := "SELECT DISTINCT customer_name FROM jobs WHERE customer_name IS NOT NULL AND customer_name <> '' AND " +
		where + " ORDER BY customer_name"
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}
	result, err := db.gw.Execute(ctx, stmt, args, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer names: %w", err)
	}
	names := make([]string, 0, result.Len())
	for _, r := range rowsOf(result) {
		names = append(names, r.str("customer_name"))
	}
	return names, nil
}

// CountJobs returns the number of stored jobs, in scope or not.
func (db *DB) CountJobs(ctx context.Context) (int, error) {
	result, err := db.gw.Execute(ctx, "SELECT COUNT(*) AS total FROM jobs", nil, true)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	rows := rowsOf(result)
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].int("total"), nil
}

// likePattern wraps term in % after escaping LIKE wildcards.
func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}

func uniqueTrimmed(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// sortJobs applies jobOrder in memory, for results merged from several queries.
func sortJobs(jobs []types.JobRecord) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i].ScheduledStart, jobs[j].ScheduledStart
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		}
		if jobs[i].DisplayNumber != jobs[j].DisplayNumber {
			return jobs[i].DisplayNumber < jobs[j].DisplayNumber
		}
		return jobs[i].ExternalID < jobs[j].ExternalID
	})
}
