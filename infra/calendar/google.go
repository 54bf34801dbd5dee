package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	corecal "github.com/chronoplan/chronoplan/core/calendar"
	"github.com/chronoplan/chronoplan/core/model"
	"github.com/chronoplan/chronoplan/infra/logger"
)

// Config defines the Google Calendar connection parameters.
type Config struct {
	Enabled         bool   `json:"enabled"`
	CalendarID      string `json:"calendar_id"`
	CredentialsFile string `json:"credentials_file"`
	TokenFile       string `json:"token_file"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = "credentials.json"
	}
	if c.TokenFile == "" {
		c.TokenFile = "token.json"
	}
}

// GoogleClient reads busy intervals from and pushes schedule events to a
// Google Calendar. It implements calendar.BusySource and
// calendar.EventWriter.
type GoogleClient struct {
	srv        *gcal.Service
	calendarID string
	log        logger.Logger
}

// NewGoogleClient wraps an authorized calendar service.
func NewGoogleClient(srv *gcal.Service, calendarID string) *GoogleClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleClient{srv: srv, calendarID: calendarID, log: logger.New("gcal")}
}

// BusyIntervals lists event time ranges in the window. Errors surface to the
// caller, which degrades them to an empty interval list.
func (c *GoogleClient) BusyIntervals(ctx context.Context, from, to time.Time) ([]corecal.Interval, error) {
	events, err := c.srv.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var intervals []corecal.Interval
	for _, ev := range events.Items {
		start, ok1 := eventTime(ev.Start)
		end, ok2 := eventTime(ev.End)
		if !ok1 || !ok2 {
			continue
		}
		intervals = append(intervals, corecal.Interval{Start: start, End: end})
	}
	return intervals, nil
}

// CreateEvent inserts one calendar event for a scheduled task, with the task
// title as summary and absolute UTC start/end times.
func (c *GoogleClient) CreateEvent(ctx context.Context, task model.Task, entry model.ScheduledTask) error {
	event := &gcal.Event{
		Summary:     task.Title,
		Description: task.Description,
		Start:       &gcal.EventDateTime{DateTime: entry.StartTime.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: entry.EndTime.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	if _, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert event for task %s: %w", task.ID, err)
	}
	c.log.Debugf("created event for task %s", task.ID)
	return nil
}

// eventTime resolves an event boundary, accepting timed and all-day events.
func eventTime(edt *gcal.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		return t, err == nil
	}
	if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		return t, err == nil
	}
	return time.Time{}, false
}
