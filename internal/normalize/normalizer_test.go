package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/parts-dashboard/internal/types"
)

func decode(t *testing.T, payload string) types.RawRecord {
	t.Helper()
	var raw types.RawRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	return raw
}

func TestNormalize_SnakeCaseZuperShape(t *testing.T) {
	raw := decode(t, `{
		"job_uid": "5f1c7e2a-9b3d-4c1e-8a7f-0d2e4b6c8a10",
		"work_order_number": "WO-1042",
		"job_title": "Replace compressor",
		"job_description": "<p>Unit 3</p>",
		"current_job_status": {"status_name": "parts on order", "status_color": "#fff"},
		"job_category": {"category_uid": "c1", "category_name": "Field Requires Parts"},
		"job_priority": "HIGH",
		"customer": {"customer_uid": "cust-9", "customer_first_name": "Anna", "customer_last_name": "de Vries"},
		"customer_address": {"street": "Damrak 1", "city": "Amsterdam", "country": "NL", "geo_cordinates": [52.3676, 4.9041]},
		"assigned_to": [{"user": {"user_uid": "u-7", "first_name": "Piet", "last_name": "Jansen"}}],
		"scheduled_start_time": "2024-03-01T09:30:00.000Z",
		"scheduled_end_time": "2024-03-01T11:00:00+01:00",
		"created_at": "2024-02-20 08:00:00",
		"custom_fields": [{"label": "Parts Order", "value": "PO-77"}, {"label": "Qty", "value": 2}],
		"job_tags": ["urgent", "compressor"]
	}`)

	job, err := New(zap.NewNop()).Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "5f1c7e2a-9b3d-4c1e-8a7f-0d2e4b6c8a10", job.ExternalID)
	assert.Equal(t, "WO-1042", job.DisplayNumber)
	assert.Equal(t, "Replace compressor", job.Title)
	assert.Equal(t, "Parts On Order", job.Status)
	assert.Equal(t, "Field Requires Parts", job.Category)
	assert.Equal(t, "High", job.Priority)
	assert.Equal(t, "Anna de Vries", job.CustomerName)
	assert.Equal(t, "cust-9", job.CustomerID)
	assert.Equal(t, "Damrak 1, Amsterdam, NL", job.Address)
	assert.Equal(t, "Piet Jansen", job.AssignedTechnician)
	assert.Equal(t, "u-7", job.TechnicianID)
	require.NotNil(t, job.Latitude)
	require.NotNil(t, job.Longitude)
	assert.InDelta(t, 52.3676, *job.Latitude, 1e-9)
	assert.InDelta(t, 4.9041, *job.Longitude, 1e-9)
	require.NotNil(t, job.ScheduledStart)
	assert.Equal(t, "2024-03-01 09:30:00", *job.ScheduledStart)
	assert.Equal(t, "2024-03-01 10:00:00", *job.ScheduledEnd)
	assert.Equal(t, "2024-02-20 08:00:00", *job.CreatedAt)
	assert.Nil(t, job.PartsDeliveredAt)
	assert.JSONEq(t, `{"Parts Order": "PO-77", "Qty": 2}`, job.CustomFields)
	assert.Equal(t, `["urgent","compressor"]`, job.Tags)
}

func TestNormalize_CamelCaseShape(t *testing.T) {
	raw := decode(t, `{
		"jobUid": "abc-123",
		"jobNumber": "1001",
		"title": "Swap valve",
		"jobStatus": "Parts delivered",
		"jobCategory": "Field Requires Parts",
		"customerName": "Bakkerij Smit",
		"customerUid": "c-1",
		"jobAddress": "Hoofdstraat 5, Utrecht",
		"latitude": 52.09,
		"longitude": 5.12,
		"assignedTechnician": "Jan Visser",
		"technicianUid": "t-1",
		"partsStatus": "Delivered to site",
		"partsDeliveredDate": "2024-03-02T14:00:00Z",
		"customFields": {"po": "PO-1"},
		"tags": ["a"]
	}`)

	job, err := New(nil).Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "abc-123", job.ExternalID)
	assert.Equal(t, "1001", job.DisplayNumber)
	assert.Equal(t, "Parts delivered", job.Status)
	assert.Equal(t, "Normal", job.Priority, "missing priority defaults to Normal")
	assert.Equal(t, "Bakkerij Smit", job.CustomerName)
	assert.Equal(t, "Hoofdstraat 5, Utrecht", job.Address)
	assert.Equal(t, "Jan Visser", job.AssignedTechnician)
	assert.Equal(t, "t-1", job.TechnicianID)
	assert.Equal(t, "Delivered to site", job.PartsStatus)
	require.NotNil(t, job.PartsDeliveredAt)
	assert.Equal(t, "2024-03-02 14:00:00", *job.PartsDeliveredAt)
	assert.True(t, job.PartsDelivered())
	assert.JSONEq(t, `{"po":"PO-1"}`, job.CustomFields)
}

func TestNormalize_CoordinateShapesAgree(t *testing.T) {
	shapes := map[string]string{
		"flat pair":        `{"id": "j1", "latitude": 48.8566, "longitude": 2.3522}`,
		"lat/lng":          `{"id": "j1", "lat": "48.8566", "lng": "2.3522"}`,
		"array":            `{"id": "j1", "geo_coordinates": [48.8566, 2.3522]}`,
		"misspelled array": `{"id": "j1", "geo_cordinates": ["48.8566", "2.3522"]}`,
		"nested location":  `{"id": "j1", "location": {"lat": 48.8566, "lon": 2.3522}}`,
		"nested array":     `{"id": "j1", "job_address": {"geo_cordinates": [48.8566, 2.3522]}}`,
	}

	n := New(nil)
	for name, payload := range shapes {
		t.Run(name, func(t *testing.T) {
			job, err := n.Normalize(decode(t, payload))
			require.NoError(t, err)
			require.True(t, job.HasCoordinates())
			assert.InDelta(t, 48.8566, *job.Latitude, 1e-9)
			assert.InDelta(t, 2.3522, *job.Longitude, 1e-9)
		})
	}
}

func TestNormalize_CoordinatesMissingOrPartial(t *testing.T) {
	n := New(nil)

	job, err := n.Normalize(decode(t, `{"id": "j1", "geo_cordinates": [0, 0]}`))
	require.NoError(t, err)
	assert.False(t, job.HasCoordinates())
	assert.Nil(t, job.Latitude)

	job, err = n.Normalize(decode(t, `{"id": "j2", "latitude": 51.5}`))
	require.NoError(t, err)
	require.NotNil(t, job.Latitude)
	assert.Nil(t, job.Longitude)
	assert.False(t, job.HasCoordinates())

	job, err = n.Normalize(decode(t, `{"id": "j3", "lat": "48.2", "lng": null, "lon": 16.37}`))
	require.NoError(t, err)
	require.NotNil(t, job.Latitude)
	require.NotNil(t, job.Longitude)
	assert.InDelta(t, 48.2, *job.Latitude, 1e-9)
	assert.InDelta(t, 16.37, *job.Longitude, 1e-9)
}

func TestNormalize_MissingIDIsAnError(t *testing.T) {
	_, err := New(nil).Normalize(decode(t, `{"job_title": "orphan", "job_number": "77"}`))
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = New(nil).Normalize(decode(t, `{"job_uid": "   "}`))
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestNormalize_IDPriority(t *testing.T) {
	job, err := New(nil).Normalize(decode(t, `{"id": 42, "uid": "u", "jobUid": "camel", "job_uid": "snake"}`))
	require.NoError(t, err)
	assert.Equal(t, "snake", job.ExternalID)

	job, err = New(nil).Normalize(decode(t, `{"id": 42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", job.ExternalID)
}

func TestNormalize_SynthesizedDisplayNumber(t *testing.T) {
	job, err := New(nil).Normalize(decode(t, `{"job_uid": "5f1c7e2a-9b3d-4c1e-8a7f-0d2e4b6c8a10"}`))
	require.NoError(t, err)
	assert.Equal(t, "JOB-4B6C8A10", job.DisplayNumber)

	assert.Equal(t, "JOB-AB12", SynthesizeDisplayNumber("ab12"))
}

func TestNormalize_DefaultsForOptionalFields(t *testing.T) {
	job, err := New(nil).Normalize(decode(t, `{"job_uid": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, "{}", job.CustomFields)
	assert.Equal(t, "[]", job.Tags)
	assert.Equal(t, types.DefaultPriority, job.Priority)
	assert.Nil(t, job.ScheduledStart)
	assert.Empty(t, job.Status)
}

func TestNormalize_BadTimestampLoggedAndNulled(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := New(zap.New(core))

	job, err := n.Normalize(decode(t, `{"job_uid": "x", "scheduled_start_time": "next tuesday", "created_at": "2024-01-01T00:00:00Z"}`))
	require.NoError(t, err)

	assert.Nil(t, job.ScheduledStart)
	require.NotNil(t, job.CreatedAt)
	assert.Equal(t, 1, logs.FilterMessage("failed to parse timestamp").Len())
}

func TestNormalize_TechnicianVariants(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantName string
		wantID   string
	}{
		{"object", `{"id":"1","assigned_to":{"first_name":"Eva","last_name":"Berg","user_uid":"u1"}}`, "Eva Berg", "u1"},
		{"list takes first", `{"id":"1","assigned_to":[{"first_name":"Eva","uid":"u1"},{"first_name":"Tom","uid":"u2"}]}`, "Eva", "u1"},
		{"nested user", `{"id":"1","assignedTo":[{"user":{"first_name":"Lars","last_name":"Ek","user_uid":"u3"}}]}`, "Lars Ek", "u3"},
		{"plain string", `{"id":"1","technician":"Mia Roth"}`, "Mia Roth", ""},
		{"empty list", `{"id":"1","assigned_to":[]}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := New(nil).Normalize(decode(t, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, job.AssignedTechnician)
			assert.Equal(t, tt.wantID, job.TechnicianID)
		})
	}
}

func TestNormalize_TagsPreserveOrder(t *testing.T) {
	job, err := New(nil).Normalize(decode(t, `{"id":"1","tags":["z","a",{"tag_name":"m"}]}`))
	require.NoError(t, err)
	assert.Equal(t, `["z","a","m"]`, job.Tags)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "WO-1", Label(types.RawRecord{"job_number": "WO-1", "job_uid": "x"}))
	assert.Equal(t, "x", Label(types.RawRecord{"job_uid": "x"}))
	assert.Equal(t, "unknown", Label(types.RawRecord{"title": "t"}))
}
