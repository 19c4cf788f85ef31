package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meetsync/internal/attendees"
	"meetsync/internal/dispatch"
	"meetsync/internal/frontmatter"
	"meetsync/internal/models"
	"meetsync/internal/routing"
	"meetsync/internal/vault"
)

// Section headings the syncer owns inside a note body. Their presence is
// how a merge knows the work was already done.
const (
	notesHeading      = "## Notes"
	transcriptHeading = "## Transcript"
)

// CalendarSource returns events overlapping a time range.
type CalendarSource interface {
	GetEvents(ctx context.Context, start, end time.Time) ([]*models.Event, error)
}

// IdentityResolver resolves the durable series id for an event, and the
// matching calendar event when one was found.
type IdentityResolver interface {
	Resolve(ctx context.Context, ev *models.Event) (string, *models.Event)
}

// Enricher generates the notes section for a meeting. An empty result with
// a nil error means there was nothing useful to write.
type Enricher interface {
	GenerateNotes(ctx context.Context, task *models.EnrichmentTask) (string, error)
}

// Config carries the scan-path settings, passed by value at construction.
type Config struct {
	ScanWindowDays   int
	Concurrency      int
	MinBatchInterval time.Duration
	WorkerTimeout    time.Duration
	FilterRules      attendees.FilterRules
	DryRun           bool
}

// Syncer orchestrates one scan cycle: fetch events, converge each onto its
// canonical note, then dispatch enrichment in rate-limited batches. It also
// carries the synchronous webhook merge path so both producers share the
// same identity, routing, and merge logic.
type Syncer struct {
	logger     *slog.Logger
	sources    []CalendarSource
	identity   IdentityResolver
	routing    *routing.Resolver
	repo       *vault.Repository
	enricher   Enricher
	dispatcher *dispatch.Dispatcher
	cfg        Config
}

// New creates a Syncer.
func New(logger *slog.Logger, sources []CalendarSource, identity IdentityResolver, router *routing.Resolver, repo *vault.Repository, enricher Enricher, dispatcher *dispatch.Dispatcher, cfg Config) *Syncer {
	if cfg.ScanWindowDays < 1 {
		cfg.ScanWindowDays = 1
	}
	return &Syncer{
		logger:     logger,
		sources:    sources,
		identity:   identity,
		routing:    router,
		repo:       repo,
		enricher:   enricher,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Scan performs a full scan cycle.
func (s *Syncer) Scan(ctx context.Context) error {
	s.logger.Info("Starting scan cycle.")

	if err := s.repo.Refresh(); err != nil {
		return fmt.Errorf("failed to refresh vault index: %w", err)
	}

	events := s.fetchAllEvents(ctx)
	s.logger.Info("Fetched events.", "count", len(events))

	var tasks []*models.EnrichmentTask
	for _, event := range events {
		task, err := s.processEvent(ctx, event)
		if err != nil {
			s.logger.Error("Failed to process event", "title", event.Title, "error", err)
			// Continue with the next event even if one fails.
			continue
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}

	if len(tasks) > 0 && s.enricher != nil && !s.cfg.DryRun {
		s.logger.Info("Dispatching enrichment tasks.", "count", len(tasks))
		if err := s.dispatcher.Run(ctx, tasks, s.cfg.Concurrency, s.cfg.MinBatchInterval, s.enrichWorker); err != nil {
			return err
		}
	}

	s.logger.Info("Scan cycle finished.")
	return nil
}

// fetchAllEvents retrieves the scan window's events from every source.
// A failing source degrades to an empty contribution, never a crash.
func (s *Syncer) fetchAllEvents(ctx context.Context) []*models.Event {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, s.cfg.ScanWindowDays)

	var all []*models.Event
	for _, source := range s.sources {
		events, err := source.GetEvents(ctx, start, end)
		if err != nil {
			s.logger.Error("Could not fetch events from a calendar source", "error", err)
			continue
		}
		all = append(all, events...)
	}
	return all
}

// processEvent converges one event onto its canonical note and returns an
// enrichment task when the meeting still needs one.
func (s *Syncer) processEvent(ctx context.Context, ev *models.Event) (*models.EnrichmentTask, error) {
	seriesID, _ := s.identity.Resolve(ctx, ev)
	dest := s.routing.Resolve(ev)
	cleaned := attendees.Filter(ev.Attendees, s.cfg.FilterRules)

	if s.cfg.DryRun {
		s.logger.Info("[DRY RUN] Would converge note", "title", dest.Title, "folder", dest.Folder, "id", seriesID)
		return nil, nil
	}

	fields, arrays := s.eventMetadata(ev, seriesID, dest, cleaned)
	notePath, created, err := s.repo.CreateOrUpdate(seriesID, dest.Folder, dest.Title, func(existing string) string {
		return frontmatter.Merge(existing, fields, arrays)
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("New meeting found.", "title", dest.Title, "id", seriesID)
	}

	if !s.needsEnrichment(ev, notePath) {
		return nil, nil
	}
	return &models.EnrichmentTask{Event: ev, SeriesID: seriesID, NotePath: notePath}, nil
}

// eventMetadata builds the frontmatter merge inputs for an event. The
// attendees array is always present; whether it carries names depends on
// the routing cap (0 means never list, and a crowd above the cap is left
// unlisted rather than flooding the note).
func (s *Syncer) eventMetadata(ev *models.Event, seriesID string, dest routing.Destination, cleaned []models.Attendee) ([]frontmatter.Field, []frontmatter.ArrayField) {
	fields := []frontmatter.Field{
		{Key: "event_id", Value: ev.ID},
		{Key: "series_id", Value: seriesID},
	}
	// A webhook stub may carry no title; never clobber one a scan wrote.
	if strings.TrimSpace(ev.Title) != "" {
		fields = append(fields, frontmatter.Field{Key: "title", Value: dest.Title})
	}
	// A payload may carry no timestamps at all; zero values must never
	// replace the scan-written ones.
	if !ev.StartTime.IsZero() {
		fields = append(fields,
			frontmatter.Field{Key: "date", Value: ev.StartTime.Format("2006-01-02")},
			frontmatter.Field{Key: "start_time", Value: ev.StartTime.Format(time.RFC3339)},
		)
	}
	if !ev.EndTime.IsZero() {
		fields = append(fields, frontmatter.Field{Key: "end_time", Value: ev.EndTime.Format(time.RFC3339)})
	}
	if ev.Organizer != "" {
		fields = append(fields, frontmatter.Field{Key: "organizer", Value: ev.Organizer})
	}

	var names []string
	if dest.MaxAttendees > 0 && len(cleaned) <= dest.MaxAttendees {
		for _, a := range cleaned {
			names = append(names, attendees.DeriveName(a))
		}
	}
	return fields, []frontmatter.ArrayField{{Key: "attendees", Items: names}}
}

// needsEnrichment reports whether a meeting has ended and its note still
// lacks a notes section.
func (s *Syncer) needsEnrichment(ev *models.Event, notePath string) bool {
	if s.enricher == nil || ev.EndTime.After(time.Now()) {
		return false
	}
	text, err := s.repo.Read(notePath)
	if err != nil {
		return false
	}
	return !strings.Contains(text, notesHeading)
}

// enrichWorker is the dispatcher worker: generate the notes section and
// append it to the note, under the per-id critical section and a timeout so
// a stalled call cannot keep a batch from settling.
func (s *Syncer) enrichWorker(ctx context.Context, task *models.EnrichmentTask) error {
	workerCtx := ctx
	if s.cfg.WorkerTimeout > 0 {
		var cancel context.CancelFunc
		workerCtx, cancel = context.WithTimeout(ctx, s.cfg.WorkerTimeout)
		defer cancel()
	}

	notes, err := s.enricher.GenerateNotes(workerCtx, task)
	if err != nil {
		return err
	}
	if notes == "" {
		return nil
	}

	_, err = s.repo.Update(task.SeriesID, func(existing string) string {
		if strings.Contains(existing, notesHeading) {
			return existing
		}
		return appendSection(existing, notesHeading, notes)
	})
	return err
}

// ProcessTranscript is the synchronous webhook path. It resolves identity
// exactly as the scan path does, recovers the meeting title from the
// calendar when possible, and merges the transcript into the canonical
// note: recording id updated, transcript appended once, a populated
// attendees list never overwritten.
func (s *Syncer) ProcessTranscript(ctx context.Context, p *models.TranscriptPayload) error {
	stub := &models.Event{
		ID:        p.EventID,
		SeriesID:  p.SeriesID,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Attendees: p.Attendees,
	}

	seriesID, matched := s.identity.Resolve(ctx, stub)
	if matched != nil {
		stub.Title = matched.Title
		stub.Organizer = matched.Organizer
		if len(stub.Attendees) == 0 {
			stub.Attendees = matched.Attendees
		}
		if stub.StartTime.IsZero() {
			stub.StartTime = matched.StartTime
		}
		if stub.EndTime.IsZero() {
			stub.EndTime = matched.EndTime
		}
	}

	dest := s.routing.Resolve(stub)
	cleaned := attendees.Filter(stub.Attendees, s.cfg.FilterRules)
	fields, arrays := s.eventMetadata(stub, seriesID, dest, cleaned)
	if p.RecordingID != "" {
		fields = append(fields, frontmatter.Field{Key: "recording_id", Value: p.RecordingID})
	}

	_, _, err := s.repo.CreateOrUpdate(seriesID, dest.Folder, dest.Title, func(existing string) string {
		merged := frontmatter.Merge(existing, fields, arrays)
		return s.appendTranscript(merged, p)
	})
	if err != nil {
		return fmt.Errorf("failed to merge transcript for %s: %w", p.EventID, err)
	}

	s.logger.Info("Merged webhook transcript.", "eventID", p.EventID, "id", seriesID)
	return nil
}

// appendTranscript adds the transcript (and summary) section to a note
// body, once. A webhook redelivery finds the heading already present and
// leaves the note untouched.
func (s *Syncer) appendTranscript(text string, p *models.TranscriptPayload) string {
	if p.Transcript == "" && p.Summary == "" {
		return text
	}
	if strings.Contains(text, transcriptHeading) {
		return text
	}

	var section strings.Builder
	if p.Summary != "" {
		section.WriteString(p.Summary)
		section.WriteString("\n")
	}
	if p.Transcript != "" {
		if p.Summary != "" {
			section.WriteString("\n")
		}
		section.WriteString(p.Transcript)
		section.WriteString("\n")
	}
	return appendSection(text, transcriptHeading, strings.TrimRight(section.String(), "\n"))
}

// appendSection appends a "## Heading" section to a note, keeping exactly
// one blank line between the previous content and the new heading.
func appendSection(text, heading, content string) string {
	trimmed := strings.TrimRight(text, "\n")
	return trimmed + "\n\n" + heading + "\n\n" + content + "\n"
}
