package models

import "time"

// EnrichmentTask is a meeting queued for asynchronous note enrichment.
// Created by a scan cycle, consumed exactly once by the dispatcher, and
// discarded after completion or a logged failure. Never retried.
type EnrichmentTask struct {
	Event      *Event // The meeting to enrich
	SeriesID   string // Resolved join key, also embedded in NotePath
	NotePath   string // Vault path of the canonical note
	Transcript string // Optional transcript text available at enqueue time
}

// TranscriptPayload is the body of an incoming transcript webhook. The
// delivering service knows the meeting only by its calendar event id; the
// title and attendee details are recovered from the calendar when possible.
type TranscriptPayload struct {
	EventID     string     `json:"event_id"`
	SeriesID    string     `json:"series_id,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Transcript  string     `json:"transcript,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	RecordingID string     `json:"recording_id,omitempty"`
}
