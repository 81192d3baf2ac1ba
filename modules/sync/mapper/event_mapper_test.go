package mapper

import (
	"strings"
	"testing"

	"calendar-sync/modules/sync/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultOpts = Options{DefaultTimezone: "America/New_York"}

func hospitalVisit() *entity.Assignment {
	return &entity.Assignment{
		ID:              "a1",
		Title:           "Hospital visit",
		Date:            "2025-03-10",
		Time:            "14:00:00",
		Timezone:        "America/Chicago",
		DurationMinutes: 60,
		Type:            "Medical",
	}
}

func TestMap_HospitalVisit(t *testing.T) {
	ev, err := Map(hospitalVisit(), defaultOpts)
	require.NoError(t, err)

	assert.Equal(t, "Hospital visit", ev.Summary)
	assert.Equal(t, "11", ev.ColorId)
	assert.Equal(t, "2025-03-10T14:00:00", ev.Start.DateTime)
	assert.Equal(t, "America/Chicago", ev.Start.TimeZone)
	assert.Equal(t, "2025-03-10T15:00:00", ev.End.DateTime)
	assert.Equal(t, "America/Chicago", ev.End.TimeZone)
	assert.Contains(t, ev.Description, "Type: Medical")

	assert.Equal(t, "a1", ev.ExtendedProperties.Private["assignment_id"])
	assert.Equal(t, "Medical", ev.ExtendedProperties.Private["category"])
	assert.Equal(t, "calendar-sync", ev.ExtendedProperties.Private["source"])

	require.Len(t, ev.Reminders.Overrides, 1)
	assert.Equal(t, int64(60), ev.Reminders.Overrides[0].Minutes)
	assert.False(t, ev.Reminders.UseDefault)
}

func TestMap_Deterministic(t *testing.T) {
	a := hospitalVisit()
	a.Description = "Bring <b>badge</b>\nCheck in at desk"

	first, err := Map(a, defaultOpts)
	require.NoError(t, err)
	second, err := Map(a, defaultOpts)
	require.NoError(t, err)

	firstJSON, err := first.MarshalJSON()
	require.NoError(t, err)
	secondJSON, err := second.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestMap_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *entity.Assignment)
		field  string
	}{
		{"missing id", func(a *entity.Assignment) { a.ID = " " }, "id"},
		{"missing title", func(a *entity.Assignment) { a.Title = "" }, "title"},
		{"title only tags", func(a *entity.Assignment) { a.Title = "<br/>" }, "title"},
		{"missing date", func(a *entity.Assignment) { a.Date = "" }, "date"},
		{"bad date grammar", func(a *entity.Assignment) { a.Date = "03/10/2025" }, "date"},
		{"impossible date", func(a *entity.Assignment) { a.Date = "2025-02-30" }, "date"},
		{"bad time", func(a *entity.Assignment) { a.Time = "2pm" }, "time"},
		{"out of range time", func(a *entity.Assignment) { a.Time = "25:00" }, "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := hospitalVisit()
			tt.mutate(a)

			ev, err := Map(a, defaultOpts)
			assert.Nil(t, ev)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := Map(nil, defaultOpts)
	assert.Error(t, err)
}

func TestMap_Sanitization(t *testing.T) {
	a := hospitalVisit()
	a.Title = "<script>alert('x')</script>Hospital\x00 visit"
	a.Type = ""
	a.Description = strings.Repeat("a", 3000)
	a.LocationDetails = strings.Repeat("L", 250)

	ev, err := Map(a, defaultOpts)
	require.NoError(t, err)

	assert.NotContains(t, ev.Summary, "<script>")
	assert.NotContains(t, ev.Summary, "</script>")
	assert.Equal(t, "alert('x')Hospital visit", ev.Summary)
	assert.Len(t, []rune(ev.Description), 2000)
	assert.Len(t, []rune(ev.Location), 200)
}

func TestMap_TitleCappedAt100(t *testing.T) {
	a := hospitalVisit()
	a.Title = strings.Repeat("é", 150)

	ev, err := Map(a, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, 100, len([]rune(ev.Summary)))
}

func TestMap_Defaults(t *testing.T) {
	a := hospitalVisit()
	a.Time = ""
	a.Timezone = ""
	a.DurationMinutes = 0
	a.Type = "Unknown category"

	ev, err := Map(a, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T09:00:00", ev.Start.DateTime)
	assert.Equal(t, "2025-03-10T10:00:00", ev.End.DateTime)
	assert.Equal(t, "America/New_York", ev.Start.TimeZone)
	assert.Equal(t, DefaultColorID, ev.ColorId)

	a.Timezone = "Mars/Olympus_Mons"
	ev, err = Map(a, Options{})
	require.NoError(t, err)
	assert.Equal(t, "UTC", ev.Start.TimeZone)
}

func TestMap_DurationClamp(t *testing.T) {
	a := hospitalVisit()
	a.Time = "08:30"

	a.DurationMinutes = 5
	ev, err := Map(a, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T08:30:00", ev.Start.DateTime)
	assert.Equal(t, "2025-03-10T08:45:00", ev.End.DateTime)

	a.DurationMinutes = 24 * 60
	ev, err = Map(a, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T16:30:00", ev.End.DateTime)
}

func TestMap_DescriptionLayout(t *testing.T) {
	a := hospitalVisit()
	a.Setting = "In-person"
	a.LocationType = "On-site"
	a.LocationDetails = "St. Mary's, 4th floor"
	a.PrepStatus = "ready"
	a.Description = "Cardiology follow-up\r\nPatient prefers Spanish"

	ev, err := Map(a, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t,
		"Type: Medical\nSetting: In-person\nLocation: On-site\nPrep status: ready\n\nCardiology follow-up\nPatient prefers Spanish",
		ev.Description)
	assert.Equal(t, "St. Mary's, 4th floor", ev.Location)
	assert.Equal(t, "ready", ev.ExtendedProperties.Private["prep_status"])
}

func TestMap_ReminderPreferences(t *testing.T) {
	ev, err := Map(hospitalVisit(), Options{DefaultTimezone: "UTC", ReminderMinutes: []int{0, 1440}})
	require.NoError(t, err)
	require.Len(t, ev.Reminders.Overrides, 2)
	assert.Equal(t, int64(0), ev.Reminders.Overrides[0].Minutes)
	assert.Equal(t, int64(1440), ev.Reminders.Overrides[1].Minutes)
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, "11", ColorFor("medical"))
	assert.Equal(t, "9", ColorFor(" Legal "))
	assert.Equal(t, "8", ColorFor("VRS/VRI"))
	assert.Equal(t, DefaultColorID, ColorFor(""))
}
