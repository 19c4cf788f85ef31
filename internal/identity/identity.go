// Package identity resolves the durable series id that joins every
// instance of a recurring meeting, across both the scan and webhook paths.
package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"meetsync/internal/models"
)

// CalendarSource returns events overlapping a time range. Implementations
// are expected to degrade to an error rather than block indefinitely.
type CalendarSource interface {
	GetEvents(ctx context.Context, start, end time.Time) ([]*models.Event, error)
}

const (
	// lookupWindow spans one day either side of the target event.
	lookupWindow = 24 * time.Hour

	windowCacheTTL     = 5 * time.Minute
	windowCacheCleanup = 10 * time.Minute
)

// Resolver discovers series ids by consulting the calendar. Lookups for
// the same day are cached so a scan over dozens of meetings hits the
// calendar once.
type Resolver struct {
	source CalendarSource
	logger *slog.Logger
	window *cache.Cache
}

// NewResolver creates a Resolver backed by the given calendar source.
func NewResolver(source CalendarSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger,
		window: cache.New(windowCacheTTL, windowCacheCleanup),
	}
}

// ResolveSeriesID returns the stable identifier for the event's meeting:
// the recurring-series id when the calendar knows one, else the event's own
// id. Lookup failure is the designed fallback, not an error; it is logged
// at most as a warning.
func (r *Resolver) ResolveSeriesID(ctx context.Context, ev *models.Event) string {
	id, _ := r.Resolve(ctx, ev)
	return id
}

// Resolve is ResolveSeriesID plus the matched calendar event, when one was
// found. The webhook path uses the match to recover the meeting title the
// payload does not carry.
func (r *Resolver) Resolve(ctx context.Context, ev *models.Event) (string, *models.Event) {
	if ev.SeriesID != "" {
		return ev.SeriesID, nil
	}

	events, err := r.windowEvents(ctx, ev.StartTime)
	if err != nil {
		r.logger.Warn("Calendar lookup failed, falling back to raw event id.", "eventID", ev.ID, "error", err)
		return ev.ID, nil
	}

	for _, candidate := range events {
		if candidate.ID != ev.ID {
			continue
		}
		if candidate.SeriesID != "" {
			return candidate.SeriesID, candidate
		}
		return ev.ID, candidate
	}

	r.logger.Warn("Event not found in calendar window, falling back to raw event id.", "eventID", ev.ID)
	return ev.ID, nil
}

// windowEvents fetches (or re-uses) the events in the day window around t.
func (r *Resolver) windowEvents(ctx context.Context, t time.Time) ([]*models.Event, error) {
	key := t.UTC().Format("2006-01-02")
	if cached, ok := r.window.Get(key); ok {
		return cached.([]*models.Event), nil
	}

	events, err := r.source.GetEvents(ctx, t.Add(-lookupWindow), t.Add(lookupWindow))
	if err != nil {
		return nil, err
	}
	r.window.Set(key, events, cache.DefaultExpiration)
	return events, nil
}
