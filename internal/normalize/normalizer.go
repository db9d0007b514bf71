// Package normalize converts raw Zuper job objects of any observed shape into
// canonical job records.
package normalize

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/types"
)

// ErrMissingID is returned for records without any recognizable identifier.
var ErrMissingID = errors.New("record has no job identifier")

// DisplayNumberPrefix prefixes display numbers synthesized from the external id.
const DisplayNumberPrefix = "JOB-"

// synthesizedSuffixLen is how many trailing id characters a synthesized number keeps.
const synthesizedSuffixLen = 8

// IDRules lists the identifier keys in priority order.
var IDRules = Rules{
	{"job_uid", text},
	{"jobUid", text},
	{"uid", text},
	{"id", text},
}

// Field tables. Each canonical field resolves through its candidates in order.
var (
	displayNumberRules = Rules{
		{"job_number", text},
		{"jobNumber", text},
		{"work_order_number", text},
		{"workOrderNumber", text},
		{"prefix_number", text},
	}
	titleRules = Rules{
		{"job_title", text},
		{"title", text},
		{"jobTitle", text},
		{"name", text},
	}
	descriptionRules = Rules{
		{"job_description", text},
		{"description", text},
		{"jobDescription", text},
	}
	statusRules = Rules{
		{"current_job_status", named("status_name", "name")},
		{"job_status", firstOf(named("status_name", "name"))},
		{"jobStatus", named("status_name", "name")},
		{"status", named("status_name", "name")},
	}
	categoryRules = Rules{
		{"job_category", named("category_name", "name")},
		{"jobCategory", named("category_name", "name")},
		{"category", named("category_name", "name")},
	}
	priorityRules = Rules{
		{"job_priority", named("priority_name", "name")},
		{"priority", named("priority_name", "name")},
		{"jobPriority", named("priority_name", "name")},
	}
	customerNameRules = Rules{
		{"customer_name", text},
		{"customerName", text},
		{"customer", person("customer_first_name", "customer_last_name", "customer_company_name", "company_name", "name")},
	}
	customerIDRules = Rules{
		{"customer_uid", text},
		{"customerUid", text},
		{"customer.customer_uid", text},
		{"customer.uid", text},
		{"customer_id", text},
	}
	addressRules = Rules{
		{"job_address", addressLine},
		{"jobAddress", addressLine},
		{"customer_address", addressLine},
		{"address", addressLine},
		{"location.address", addressLine},
	}
	technicianRules = Rules{
		{"assigned_technician", person("first_name", "last_name", "name", "full_name")},
		{"assignedTechnician", person("first_name", "last_name", "name", "full_name")},
		{"assigned_to", person("first_name", "last_name", "name", "full_name")},
		{"assignedTo", person("first_name", "last_name", "name", "full_name")},
		{"technician", person("first_name", "last_name", "name", "full_name")},
	}
	technicianIDRules = Rules{
		{"technician_uid", text},
		{"technicianUid", text},
		{"assigned_to", personID("user_uid", "uid", "id")},
		{"assignedTo", personID("user_uid", "uid", "id")},
		{"assigned_technician", personID("user_uid", "uid", "id")},
		{"technician", personID("user_uid", "uid", "id")},
	}
	partsStatusRules = Rules{
		{"parts_status", named("status_name", "name")},
		{"partsStatus", named("status_name", "name")},
	}
	customFieldRules = Rules{
		{"custom_fields", customFields},
		{"customFields", customFields},
	}
	tagRules = Rules{
		{"job_tags", tagList},
		{"tags", tagList},
		{"jobTags", tagList},
	}
)

// timestampField names a canonical timestamp column and its source keys in priority order.
type timestampField struct {
	name string
	keys []string
	set  func(*types.JobRecord, *string)
}

var timestampFields = []timestampField{
	{"scheduled_start", []string{"scheduled_start_time", "scheduledStartTime", "scheduled_start"},
		func(j *types.JobRecord, v *string) { j.ScheduledStart = v }},
	{"scheduled_end", []string{"scheduled_end_time", "scheduledEndTime", "scheduled_end"},
		func(j *types.JobRecord, v *string) { j.ScheduledEnd = v }},
	{"actual_start", []string{"actual_start_time", "actualStartTime", "actual_start"},
		func(j *types.JobRecord, v *string) { j.ActualStart = v }},
	{"actual_end", []string{"actual_end_time", "actualEndTime", "actual_end"},
		func(j *types.JobRecord, v *string) { j.ActualEnd = v }},
	{"created_at", []string{"created_at", "createdAt", "created_time", "createdTime"},
		func(j *types.JobRecord, v *string) { j.CreatedAt = v }},
	{"updated_at", []string{"updated_at", "updatedAt", "modified_time", "modifiedTime"},
		func(j *types.JobRecord, v *string) { j.UpdatedAt = v }},
	{"parts_delivered_at", []string{"parts_delivered_date", "partsDeliveredDate", "parts_delivered_at", "partsDeliveredAt"},
		func(j *types.JobRecord, v *string) { j.PartsDeliveredAt = v }},
}

// Normalizer maps raw records onto types.JobRecord. It performs no I/O;
// unparseable timestamps are logged as warnings and stored as null.
type Normalizer struct {
	logger *zap.Logger
}

// New creates a Normalizer. A nil logger discards warnings.
func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger.Named("normalize")}
}

// Normalize converts one raw record. Only the identifier is required.
func (n *Normalizer) Normalize(raw types.RawRecord) (*types.JobRecord, error) {
	id := IDRules.ResolveString(raw)
	if id == "" {
		return nil, ErrMissingID
	}

	job := &types.JobRecord{
		ExternalID:         id,
		DisplayNumber:      displayNumberRules.ResolveString(raw),
		Title:              titleRules.ResolveString(raw),
		Description:        descriptionRules.ResolveString(raw),
		Status:             types.CanonicalStatus(statusRules.ResolveString(raw)),
		Category:           categoryRules.ResolveString(raw),
		Priority:           types.CanonicalPriority(priorityRules.ResolveString(raw)),
		CustomerName:       customerNameRules.ResolveString(raw),
		CustomerID:         customerIDRules.ResolveString(raw),
		Address:            addressRules.ResolveString(raw),
		AssignedTechnician: technicianRules.ResolveString(raw),
		TechnicianID:       technicianIDRules.ResolveString(raw),
		PartsStatus:        partsStatusRules.ResolveString(raw),
		CustomFields:       customFieldRules.ResolveString(raw),
		Tags:               tagRules.ResolveString(raw),
	}

	if job.DisplayNumber == "" {
		job.DisplayNumber = SynthesizeDisplayNumber(id)
	}
	if job.CustomFields == "" {
		job.CustomFields = "{}"
	}
	if job.Tags == "" {
		job.Tags = "[]"
	}

	job.Latitude, job.Longitude = resolveCoordinates(raw)

	for _, field := range timestampFields {
		field.set(job, n.resolveTimestamp(raw, id, field))
	}

	return job, nil
}

// resolveTimestamp returns the first present value among the field's keys in
// canonical form. An unparseable value is logged and yields nil.
func (n *Normalizer) resolveTimestamp(raw types.RawRecord, id string, field timestampField) *string {
	for _, key := range field.keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		out, err := timestamp(v)
		if err != nil {
			n.logger.Warn("failed to parse timestamp",
				zap.String("job", id),
				zap.String("field", field.name),
				zap.String("source_key", key),
				zap.Any("value", v),
				zap.Error(err))
			return nil
		}
		if out == nil {
			continue
		}
		s := out.(string)
		return &s
	}
	return nil
}

// SynthesizeDisplayNumber builds a display number from the trailing
// characters of an external id.
func SynthesizeDisplayNumber(externalID string) string {
	suffix := externalID
	if len(suffix) > synthesizedSuffixLen {
		suffix = suffix[len(suffix)-synthesizedSuffixLen:]
	}
	return DisplayNumberPrefix + strings.ToUpper(suffix)
}

// Label returns a best-effort identifying label for error messages about raw.
func Label(raw types.RawRecord) string {
	if number := displayNumberRules.ResolveString(raw); number != "" {
		return number
	}
	if id := IDRules.ResolveString(raw); id != "" {
		return id
	}
	return "unknown"
}
