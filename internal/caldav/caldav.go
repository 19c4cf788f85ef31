// Package caldav reads meetings from a CalDAV calendar, as an alternative
// calendar source to Google for vaults fed from iCloud or self-hosted
// servers.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"meetsync/internal/models"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "meetsync/1.0")
	return t.Transport.RoundTrip(req)
}

// Client is a read-only client for a single CalDAV calendar.
type Client struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	calendarPath string
}

// NewClient discovers the named calendar on the server and returns a client
// scoped to it.
func NewClient(logger *slog.Logger, endpoint, username, password, calendarName string) (*Client, error) {
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &Client{caldavClient: caldavClient, logger: logger}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(context.Background(), calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// GetEvents queries the server for events overlapping [start, end). The
// server performs the time-range expansion; each returned VEVENT becomes
// one internal event.
func (c *Client) GetEvents(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{
				{Name: ical.CompEvent, AllProps: true},
			},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{
				{Name: ical.CompEvent, Start: start, End: end},
			},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("calendar query failed: %w", err)
	}

	var events []*models.Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			if ev := c.toInternalEvent(comp); ev != nil {
				events = append(events, ev)
			}
		}
	}

	c.logger.Info("Successfully fetched events from CalDAV", "count", len(events))
	return events, nil
}

// toInternalEvent converts one VEVENT component to the internal model.
// Instances of a recurring meeting share their UID, so a VEVENT carrying an
// RRULE or RECURRENCE-ID uses the UID as the series id.
func (c *Client) toInternalEvent(comp *ical.Component) *models.Event {
	uid := propValue(comp, ical.PropUID)
	if uid == "" {
		return nil
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	endProp := comp.Props.Get(ical.PropDateTimeEnd)
	if startProp == nil || endProp == nil {
		return nil
	}
	startTime, err := startProp.DateTime(time.Local)
	if err != nil {
		c.logger.Warn("Skipping event with unparseable start time.", "uid", uid, "error", err)
		return nil
	}
	endTime, err := endProp.DateTime(time.Local)
	if err != nil {
		endTime = startTime
	}

	id := uid
	seriesID := ""
	if comp.Props.Get(ical.PropRecurrenceRule) != nil || comp.Props.Get(ical.PropRecurrenceID) != nil {
		seriesID = uid
		id = uid + "/" + startTime.UTC().Format("20060102T150405Z")
	}

	var attendeeList []models.Attendee
	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		attendeeList = append(attendeeList, models.Attendee{
			Email:       strings.TrimPrefix(prop.Value, "mailto:"),
			DisplayName: prop.Params.Get(ical.ParamCommonName),
			Response:    toResponseStatus(prop.Params.Get(ical.ParamParticipationStatus)),
		})
	}

	organizer := ""
	if prop := comp.Props.Get(ical.PropOrganizer); prop != nil {
		organizer = strings.TrimPrefix(prop.Value, "mailto:")
	}

	return &models.Event{
		ID:        id,
		SeriesID:  seriesID,
		Title:     propValue(comp, ical.PropSummary),
		StartTime: startTime,
		EndTime:   endTime,
		Organizer: organizer,
		Attendees: attendeeList,
		Source:    "caldav",
	}
}

func propValue(comp *ical.Component, name string) string {
	if prop := comp.Props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}

func toResponseStatus(partstat string) models.ResponseStatus {
	switch strings.ToUpper(partstat) {
	case "ACCEPTED":
		return models.ResponseAccepted
	case "DECLINED":
		return models.ResponseDeclined
	case "TENTATIVE":
		return models.ResponseTentative
	default:
		return models.ResponseUnknown
	}
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
