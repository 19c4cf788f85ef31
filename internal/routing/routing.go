// Package routing decides where a meeting's note lives, what it is called,
// and how many participants are worth listing, from an ordered rule table.
package routing

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"meetsync/internal/models"
)

// UntitledMeeting is the display title used when an event has none.
const UntitledMeeting = "Untitled Meeting"

// Rule is one entry of the ordered routing table. Rules are evaluated in
// declared order; the first whose Match is contained in the event's trimmed
// title (case-insensitive) wins.
type Rule struct {
	// Match is the case-insensitive substring the event title must contain.
	Match string `yaml:"match"`
	// Folder is the destination, relative to the meetings root. It may
	// contain the tokens {yyyy-mm}, {date} and {title}.
	Folder string `yaml:"folder"`
	// Title optionally rewrites the note title using the same tokens.
	// Empty keeps the event's raw title.
	Title string `yaml:"title,omitempty"`
	// MaxAttendees overrides the global participant cap. Zero means the
	// note never lists participants. Nil keeps the global default.
	MaxAttendees *int `yaml:"max_attendees,omitempty"`
}

// Config holds the resolver's inputs. It is passed by value; the resolver
// never reads mutable shared state.
type Config struct {
	RootFolder          string
	DefaultMaxAttendees int
	Rules               []Rule
}

// Destination is the resolved routing result for one event.
type Destination struct {
	Folder       string
	Title        string
	MaxAttendees int
}

// Resolver routes events. It is a pure function of its Config: two events
// with the same title and series id always resolve identically, which is
// what lets every instance of a recurring meeting converge on one note.
type Resolver struct {
	cfg Config
}

// NewResolver creates a Resolver for the given configuration.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve applies the rule table to an event. No rule matching falls back
// to the root folder for recurring meetings and a year-month subfolder for
// one-offs.
func (r *Resolver) Resolve(ev *models.Event) Destination {
	title := strings.TrimSpace(ev.Title)

	for _, rule := range r.cfg.Rules {
		if rule.Match == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(title), strings.ToLower(rule.Match)) {
			continue
		}

		dest := Destination{
			Folder:       path.Join(r.cfg.RootFolder, expandTokens(rule.Folder, ev)),
			Title:        title,
			MaxAttendees: r.cfg.DefaultMaxAttendees,
		}
		if rule.Title != "" {
			dest.Title = expandTokens(rule.Title, ev)
		}
		if dest.Title == "" {
			dest.Title = UntitledMeeting
		}
		if rule.MaxAttendees != nil {
			dest.MaxAttendees = *rule.MaxAttendees
		}
		return dest
	}

	folder := r.cfg.RootFolder
	if !ev.Recurring() {
		folder = path.Join(folder, ev.StartTime.Format("2006-01"))
	}
	if title == "" {
		title = UntitledMeeting
	}
	return Destination{
		Folder:       folder,
		Title:        title,
		MaxAttendees: r.cfg.DefaultMaxAttendees,
	}
}

// expandTokens substitutes the event-derived tokens a rule may reference.
func expandTokens(s string, ev *models.Event) string {
	s = strings.ReplaceAll(s, "{yyyy-mm}", ev.StartTime.Format("2006-01"))
	s = strings.ReplaceAll(s, "{date}", ev.StartTime.Format("2006-01-02"))
	s = strings.ReplaceAll(s, "{title}", strings.TrimSpace(ev.Title))
	return s
}

// rulesFile is the on-disk shape of the rule table.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads the ordered rule table from a YAML file. A missing file
// is not an error; it yields an empty table so everything routes to the
// defaults.
func LoadRules(file string) ([]Rule, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", file, err)
	}
	return rf.Rules, nil
}
