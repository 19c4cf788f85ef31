package routing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/models"
)

func intPtr(n int) *int { return &n }

func testEvent(title string) *models.Event {
	return &models.Event{
		ID:        "ev-1",
		Title:     title,
		StartTime: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestResolveFirstMatchingRuleWins(t *testing.T) {
	r := NewResolver(Config{
		RootFolder:          "Meetings",
		DefaultMaxAttendees: 20,
		Rules: []Rule{
			{Match: "1-1", Folder: "O3s"},
			{Match: "alex", Folder: "People/Alex"},
		},
	})

	dest := r.Resolve(testEvent("Weekly 1-1 with Alex"))

	assert.Equal(t, "Meetings/O3s", dest.Folder)
	assert.Equal(t, "Weekly 1-1 with Alex", dest.Title)
	assert.Equal(t, 20, dest.MaxAttendees)
}

func TestResolveMatchIsCaseInsensitive(t *testing.T) {
	r := NewResolver(Config{
		RootFolder: "Meetings",
		Rules:      []Rule{{Match: "Standup", Folder: "Standups"}},
	})

	dest := r.Resolve(testEvent("daily STANDUP"))
	assert.Equal(t, "Meetings/Standups", dest.Folder)
}

func TestResolveExpandsTokens(t *testing.T) {
	r := NewResolver(Config{
		RootFolder: "Meetings",
		Rules: []Rule{{
			Match:  "all hands",
			Folder: "AllHands/{yyyy-mm}",
			Title:  "All Hands {date}",
		}},
	})

	dest := r.Resolve(testEvent("Q1 All Hands"))

	assert.Equal(t, "Meetings/AllHands/2026-03", dest.Folder)
	assert.Equal(t, "All Hands 2026-03-02", dest.Title)
}

func TestResolveRuleCapOverride(t *testing.T) {
	r := NewResolver(Config{
		RootFolder:          "Meetings",
		DefaultMaxAttendees: 20,
		Rules:               []Rule{{Match: "town hall", Folder: "TownHalls", MaxAttendees: intPtr(0)}},
	})

	dest := r.Resolve(testEvent("Monthly Town Hall"))
	assert.Equal(t, 0, dest.MaxAttendees)
}

func TestResolveNoMatchRecurring(t *testing.T) {
	r := NewResolver(Config{RootFolder: "Meetings", DefaultMaxAttendees: 20})

	ev := testEvent("Planning")
	ev.SeriesID = "series-1"
	dest := r.Resolve(ev)

	assert.Equal(t, "Meetings", dest.Folder)
}

func TestResolveNoMatchOneOffGoesToMonthFolder(t *testing.T) {
	r := NewResolver(Config{RootFolder: "Meetings", DefaultMaxAttendees: 20})

	dest := r.Resolve(testEvent("Vendor call"))
	assert.Equal(t, "Meetings/2026-03", dest.Folder)
}

func TestResolveBlankTitle(t *testing.T) {
	r := NewResolver(Config{RootFolder: "Meetings"})

	dest := r.Resolve(testEvent("   "))
	assert.Equal(t, UntitledMeeting, dest.Title)
}

func TestResolveEmptyMatchNeverFires(t *testing.T) {
	r := NewResolver(Config{
		RootFolder: "Meetings",
		Rules:      []Rule{{Match: "", Folder: "Trap"}},
	})

	ev := testEvent("Anything")
	ev.SeriesID = "series-1"
	assert.Equal(t, "Meetings", r.Resolve(ev).Folder)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rules.yaml")
	data := `rules:
  - match: "1-1"
    folder: O3s
    max_attendees: 5
  - match: all hands
    folder: AllHands/{yyyy-mm}
    title: All Hands {date}
`
	require.NoError(t, os.WriteFile(file, []byte(data), 0o644))

	rules, err := LoadRules(file)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "1-1", rules[0].Match)
	require.NotNil(t, rules[0].MaxAttendees)
	assert.Equal(t, 5, *rules[0].MaxAttendees)
	assert.Equal(t, "AllHands/{yyyy-mm}", rules[1].Folder)
}

func TestLoadRulesMissingFile(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestLoadRulesMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(file, []byte("rules: [unclosed"), 0o644))

	_, err := LoadRules(file)
	assert.Error(t, err)
}
