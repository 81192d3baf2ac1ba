// Package mapper turns assignments into Google Calendar event payloads.
// Map performs no I/O and is deterministic: the same assignment and options
// always produce the same event.
package mapper

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"calendar-sync/modules/calendar/provider"
	"calendar-sync/modules/sync/entity"

	"google.golang.org/api/calendar/v3"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 2000
	MaxLocationLength    = 200

	MinDurationMinutes     = 15
	MaxDurationMinutes     = 480
	DefaultDurationMinutes = 60
	DefaultReminderMinutes = 60
	DefaultStartTime       = "09:00:00"
	DefaultColorID         = "1"

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// Category display colors (Google Calendar event color ids).
var categoryColors = map[string]string{
	"medical":       "11",
	"legal":         "9",
	"educational":   "10",
	"business":      "5",
	"community":     "6",
	"conference":    "3",
	"mental health": "7",
	"vrs/vri":       "8",
}

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^(\d{2}):(\d{2})(?::(\d{2}))?$`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

// ValidationError reports an assignment that cannot be mapped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid assignment: %s %s", e.Field, e.Reason)
}

type Options struct {
	// DefaultTimezone applies when the assignment has none or an unknown one.
	DefaultTimezone string
	// ReminderMinutes are popup reminders; empty means a single default reminder.
	ReminderMinutes []int
}

// ColorFor returns the display color for a category.
func ColorFor(category string) string {
	if id, ok := categoryColors[strings.ToLower(strings.TrimSpace(category))]; ok {
		return id
	}
	return DefaultColorID
}

// Validate checks the fields required to place the assignment on a calendar.
func Validate(a *entity.Assignment) error {
	if a == nil {
		return &ValidationError{Field: "assignment", Reason: "is required"}
	}
	if strings.TrimSpace(a.ID) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if sanitizeLine(a.Title, MaxTitleLength) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(a.Date) == "" {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if _, err := parseDate(a.Date); err != nil {
		return &ValidationError{Field: "date", Reason: "must be a valid YYYY-MM-DD date"}
	}
	if _, err := normalizeTime(a.Time); err != nil {
		return &ValidationError{Field: "time", Reason: "must be HH:MM or HH:MM:SS"}
	}
	return nil
}

func Map(a *entity.Assignment, opts Options) (*calendar.Event, error) {
	if err := Validate(a); err != nil {
		return nil, err
	}

	clock, _ := normalizeTime(a.Time)
	loc, tzName := resolveLocation(a.Timezone, opts.DefaultTimezone)

	start, err := time.ParseInLocation(dateTimeLayout, strings.TrimSpace(a.Date)+"T"+clock, loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be a valid YYYY-MM-DD date"}
	}
	end := start.Add(time.Duration(clampDuration(a.DurationMinutes)) * time.Minute)

	event := &calendar.Event{
		Summary:     sanitizeLine(a.Title, MaxTitleLength),
		Description: buildDescription(a),
		Location:    buildLocation(a),
		ColorId:     ColorFor(a.Type),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(dateTimeLayout),
			TimeZone: tzName,
		},
		End: &calendar.EventDateTime{
			DateTime: end.In(loc).Format(dateTimeLayout),
			TimeZone: tzName,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				provider.PropAssignmentID: strings.TrimSpace(a.ID),
				provider.PropCategory:     sanitizeLine(a.Type, MaxLocationLength),
				provider.PropPrepStatus:   sanitizeLine(a.PrepStatus, MaxLocationLength),
				provider.PropSource:       provider.SourceValue,
			},
		},
		Reminders: buildReminders(opts.ReminderMinutes),
	}
	return event, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("date %q does not match YYYY-MM-DD", s)
	}
	return time.Parse(dateLayout, s)
}

// normalizeTime returns HH:MM:SS, defaulting an empty value to DefaultStartTime.
func normalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultStartTime, nil
	}
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("time %q does not match HH:MM[:SS]", s)
	}
	sec := m[3]
	if sec == "" {
		sec = "00"
	}
	clock := m[1] + ":" + m[2] + ":" + sec
	if _, err := time.Parse("15:04:05", clock); err != nil {
		return "", err
	}
	return clock, nil
}

func clampDuration(minutes int) int {
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	return min(max(minutes, MinDurationMinutes), MaxDurationMinutes)
}

func resolveLocation(tz, fallback string) (*time.Location, string) {
	for _, name := range []string{strings.TrimSpace(tz), strings.TrimSpace(fallback)} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, name
		}
	}
	return time.UTC, "UTC"
}

func buildDescription(a *entity.Assignment) string {
	var lines []string
	for _, f := range []struct{ label, value string }{
		{"Type", a.Type},
		{"Setting", a.Setting},
		{"Location", a.LocationType},
		{"Prep status", a.PrepStatus},
	} {
		if v := sanitizeLine(f.value, MaxLocationLength); v != "" {
			lines = append(lines, f.label+": "+v)
		}
	}

	notes := sanitizeText(a.Description)
	if notes != "" {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, notes)
	}
	return truncate(strings.Join(lines, "\n"), MaxDescriptionLength)
}

func buildLocation(a *entity.Assignment) string {
	if details := sanitizeLine(a.LocationDetails, MaxLocationLength); details != "" {
		return details
	}
	return sanitizeLine(a.LocationType, MaxLocationLength)
}

func buildReminders(minutes []int) *calendar.EventReminders {
	if len(minutes) == 0 {
		minutes = []int{DefaultReminderMinutes}
	}
	overrides := make([]*calendar.EventReminder, 0, len(minutes))
	for _, m := range minutes {
		overrides = append(overrides, &calendar.EventReminder{
			Method:          "popup",
			Minutes:         int64(m),
			ForceSendFields: []string{"Minutes"},
		})
	}
	return &calendar.EventReminders{
		UseDefault:      false,
		Overrides:       overrides,
		ForceSendFields: []string{"UseDefault"},
	}
}

// sanitizeLine strips tags and control characters, collapses whitespace and caps the length.
func sanitizeLine(s string, limit int) string {
	s = stripControl(tagPattern.ReplaceAllString(s, ""), false)
	return truncate(strings.Join(strings.Fields(s), " "), limit)
}

// sanitizeText is sanitizeLine for multi-line text: newlines and tabs survive.
func sanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = stripControl(tagPattern.ReplaceAllString(s, ""), true)
	return strings.TrimSpace(s)
}

func stripControl(s string, keepLayout bool) string {
	return strings.Map(func(r rune) rune {
		if keepLayout && (r == '\n' || r == '\t') {
			return r
		}
		if r == utf8.RuneError || unicode.IsControl(r) {
			if unicode.IsSpace(r) {
				return ' '
			}
			return -1
		}
		return r
	}, s)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
