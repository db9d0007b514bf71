// Package types provides type definitions for structured data used throughout the parts dashboard.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// RawRecord is one job object exactly as decoded from the Zuper API.
type RawRecord map[string]any

// TimestampLayout is the canonical string form of every stored timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// SyncTimestampLayout keeps sub-second precision for values that are compared for ordering
// (last_synced_at, sync_log.started_at).
const SyncTimestampLayout = "2006-01-02 15:04:05.000000"

// DefaultPriority is assigned when the source omits a priority.
const DefaultPriority = "Normal"

// JobStatuses is the status vocabulary used by the Zuper workflow.
// "Parts delivered" intentionally uses a lowercase d.
var JobStatuses = []string{
	"New Ticket",
	"Received Request",
	"Parts On Order",
	"Shop Pick UP",
	"Shipped",
	"Parts delivered",
	"Done",
	"Canceled",
}

// PriorityLevels is the priority vocabulary, most urgent first.
var PriorityLevels = []string{
	"Urgent",
	"High",
	"Medium",
	"Normal",
	"Low",
}

// JobRecord is the canonical, storage-ready representation of a Zuper job.
type JobRecord struct {
	ExternalID         string   `json:"external_id"`
	DisplayNumber      string   `json:"display_number"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Status             string   `json:"status"`
	Category           string   `json:"category"`
	Priority           string   `json:"priority"`
	CustomerName       string   `json:"customer_name"`
	CustomerID         string   `json:"customer_id"`
	Address            string   `json:"address"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	AssignedTechnician string   `json:"assigned_technician_name"`
	TechnicianID       string   `json:"technician_id"`
	ScheduledStart     *string  `json:"scheduled_start"`
	ScheduledEnd       *string  `json:"scheduled_end"`
	ActualStart        *string  `json:"actual_start"`
	ActualEnd          *string  `json:"actual_end"`
	CreatedAt          *string  `json:"created_at"`
	UpdatedAt          *string  `json:"updated_at"`
	PartsStatus        string   `json:"parts_status"`
	PartsDeliveredAt   *string  `json:"parts_delivered_at"`
	CustomFields       string   `json:"custom_fields"` // JSON object text
	Tags               string   `json:"tags"`          // JSON array text
	LastSyncedAt       *string  `json:"last_synced_at"`
}

// PartsDelivered reports whether the parts for this job have arrived.
// The delivery timestamp is the only source of truth for this.
func (j *JobRecord) PartsDelivered() bool {
	return j.PartsDeliveredAt != nil
}

// HasCoordinates reports whether both coordinates are present.
func (j *JobRecord) HasCoordinates() bool {
	return j.Latitude != nil && j.Longitude != nil
}

// CanonicalPriority maps case variants onto the priority vocabulary.
// Empty input yields DefaultPriority; unknown values are returned trimmed.
func CanonicalPriority(priority string) string {
	p := strings.TrimSpace(priority)
	if p == "" {
		return DefaultPriority
	}
	for _, level := range PriorityLevels {
		if strings.EqualFold(level, p) {
			return level
		}
	}
	return p
}

// CanonicalStatus maps case variants onto the status vocabulary.
func CanonicalStatus(status string) string {
	s := strings.TrimSpace(status)
	for _, known := range JobStatuses {
		if strings.EqualFold(known, s) {
			return known
		}
	}
	return s
}

// IsKnownStatus reports whether status is part of the vocabulary (exact match).
func IsKnownStatus(status string) bool {
	for _, known := range JobStatuses {
		if known == status {
			return true
		}
	}
	return false
}

// IsKnownPriority reports whether priority is part of the vocabulary (exact match).
func IsKnownPriority(priority string) bool {
	for _, level := range PriorityLevels {
		if level == priority {
			return true
		}
	}
	return false
}
