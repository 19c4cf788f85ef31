package models

import "time"

// ResponseStatus is an attendee's reply to a meeting invitation.
type ResponseStatus string

const (
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseDeclined  ResponseStatus = "declined"
	ResponseTentative ResponseStatus = "tentative"
	ResponseUnknown   ResponseStatus = "unknown"
)

// Attendee is a single invitee on a calendar event. Email may be empty for
// room or equipment resources.
type Attendee struct {
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name,omitempty"`
	Response    ResponseStatus `json:"response,omitempty"`
	Resource    bool           `json:"resource,omitempty"`
}

// Event represents a calendar meeting instance.
// This is an internal representation, independent of any specific calendar provider.
type Event struct {
	ID        string     // Unique identifier for this event instance
	SeriesID  string     // Identifier shared by all instances of a recurring meeting; empty for one-offs
	Title     string     // Summary or title of the event
	StartTime time.Time  // Start time of the event
	EndTime   time.Time  // End time of the event
	Organizer string     // Organizer's email
	Attendees []Attendee // Invitees, including resources
	Source    string     // The source of the event (e.g., "google")
}

// Recurring reports whether the event belongs to a recurring series.
func (e *Event) Recurring() bool {
	return e.SeriesID != "" && e.SeriesID != e.ID
}
