package provider

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Event metadata keys stored in extendedProperties.private.
const (
	PropAssignmentID = "assignment_id"
	PropCategory     = "category"
	PropPrepStatus   = "prep_status"
	PropSource       = "source"
	SourceValue      = "calendar-sync"
)

type Calendar struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	TimeZone    string `json:"time_zone,omitempty"`
	AccessRole  string `json:"access_role"`
	Primary     bool   `json:"primary"`
}

// Client is the subset of calendar operations the sync engine consumes.
type Client interface {
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	// FindEventByAssignment returns nil, nil when no event carries the assignment back-reference.
	FindEventByAssignment(ctx context.Context, calendarID, assignmentID string) (*calendar.Event, error)
	ListCalendars(ctx context.Context) ([]Calendar, error)
}

type googleClient struct {
	svc *calendar.Service
}

// NewGoogleClient builds a Client over the given authenticated HTTP client.
func NewGoogleClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &googleClient{svc: svc}, nil
}

func (g *googleClient) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := g.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, Classify(err)
	}
	return created, nil
}

func (g *googleClient) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := g.svc.Events.Update(calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, Classify(err)
	}
	// A cancelled event is what the user sees as deleted; treat it as drift.
	if updated.Status == "cancelled" {
		return nil, &Error{Kind: KindNotFound, Status: http.StatusGone, Err: fmt.Errorf("event %s is cancelled", eventID)}
	}
	return updated, nil
}

func (g *googleClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return Classify(err)
	}
	return nil
}

func (g *googleClient) FindEventByAssignment(ctx context.Context, calendarID, assignmentID string) (*calendar.Event, error) {
	events, err := g.svc.Events.List(calendarID).
		PrivateExtendedProperty(PropAssignmentID + "=" + assignmentID).
		ShowDeleted(false).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, Classify(err)
	}
	if len(events.Items) == 0 {
		return nil, nil
	}
	return events.Items[0], nil
}

func (g *googleClient) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var result []Calendar
	err := g.svc.CalendarList.List().Context(ctx).Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			result = append(result, Calendar{
				ID:          item.Id,
				Summary:     item.Summary,
				Description: item.Description,
				TimeZone:    item.TimeZone,
				AccessRole:  item.AccessRole,
				Primary:     item.Primary,
			})
		}
		return nil
	})
	if err != nil {
		return nil, Classify(err)
	}
	return result, nil
}
