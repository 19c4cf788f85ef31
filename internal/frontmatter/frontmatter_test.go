package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSynthesizesFreshBlock(t *testing.T) {
	out := Merge("",
		[]Field{
			{Key: "title", Value: "Weekly 1-1 with Alex"},
			{Key: "event_id", Value: "ev-9"},
			{Key: "date", Value: "2026-03-02"},
		},
		[]ArrayField{{Key: "attendees", Items: nil}},
	)

	// Canonical order puts event_id before title and date, and the empty
	// attendees array after, regardless of the order fields were supplied.
	assert.Equal(t, "---\nevent_id: ev-9\ntitle: Weekly 1-1 with Alex\ndate: 2026-03-02\nattendees:\n---\n", out)
}

func TestMergeIsIdempotent(t *testing.T) {
	existing := "---\ntitle: Standup\nattendees:\n  - Alice\n---\n\nSome body.\n"
	fields := []Field{
		{Key: "title", Value: "Daily Standup"},
		{Key: "recording_id", Value: "rec-1"},
	}
	arrays := []ArrayField{{Key: "tags", Items: []string{"meeting", "daily"}}}

	once := Merge(existing, fields, arrays)
	twice := Merge(once, fields, arrays)
	assert.Equal(t, once, twice)
}

func TestMergeNeverOverwritesPopulatedArray(t *testing.T) {
	existing := "---\ntitle: Standup\nattendees:\n  - Alice\n  - Bob\n---\n"

	out := Merge(existing, nil, []ArrayField{{Key: "attendees", Items: []string{"Mallory"}}})

	items, ok := mustParse(t, out).Array("attendees")
	require.True(t, ok)
	assert.Equal(t, []string{"Alice", "Bob"}, items)
	assert.Equal(t, existing, out)
}

func TestMergeFillsEmptyArray(t *testing.T) {
	existing := "---\ntitle: Standup\nattendees:\n---\n"

	out := Merge(existing, nil, []ArrayField{{Key: "attendees", Items: []string{"Alice"}}})

	items, ok := mustParse(t, out).Array("attendees")
	require.True(t, ok)
	assert.Equal(t, []string{"Alice"}, items)
}

func TestMergePreservesUnknownFields(t *testing.T) {
	existing := "---\ntitle: Planning\nmood: optimistic\n# user comment\nstatus: reviewed\n---\nBody text.\n"

	out := Merge(existing, []Field{{Key: "date", Value: "2026-03-02"}}, nil)

	// Unknown fields and raw lines keep their text and relative order,
	// after the canonical fields.
	assert.Equal(t, "---\ntitle: Planning\ndate: 2026-03-02\nmood: optimistic\n# user comment\nstatus: reviewed\n---\nBody text.\n", out)
}

func TestMergeScalarOverwrite(t *testing.T) {
	existing := "---\ntitle: Old Title\n---\n"

	out := Merge(existing, []Field{{Key: "title", Value: "New Title"}}, nil)

	title, ok := mustParse(t, out).Scalar("title")
	require.True(t, ok)
	assert.Equal(t, "New Title", title)
}

func TestMergeSkipsMalformedBlock(t *testing.T) {
	for _, existing := range []string{
		"---\ntitle: never closed\n",
		"No delimiters at all.\n",
	} {
		out := Merge(existing, []Field{{Key: "title", Value: "x"}}, nil)
		assert.Equal(t, existing, out)
	}
}

func TestMergeLeavesBodyUntouched(t *testing.T) {
	existing := "---\ntitle: Standup\n---\n\n## Notes\n\n- a note with: punctuation\n"

	out := Merge(existing, []Field{{Key: "recording_id", Value: "rec-2"}}, nil)

	_, body, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "\n\n## Notes\n\n- a note with: punctuation\n", body)
}

func TestQuotingRoundTrips(t *testing.T) {
	values := []string{
		`He said "ship it"`,
		`clock: in at 9`,
		`back\slash and "quote"`,
		"  padded  ",
		"- looks like a list item",
	}
	for _, v := range values {
		out := Merge("", []Field{{Key: "title", Value: v}}, nil)
		got, ok := mustParse(t, out).Scalar("title")
		require.True(t, ok, "value %q", v)
		assert.Equal(t, v, got, "value %q", v)
	}
}

func TestParseRejectsMissingDelimiters(t *testing.T) {
	_, _, err := Parse("title: no block\n")
	assert.ErrorIs(t, err, ErrNoBlock)
}

func TestArrayUpgradeFromEmptyScalar(t *testing.T) {
	// "attendees:" written as an empty array reparses as an empty scalar;
	// a later array merge must still be able to fill it in place.
	existing := "---\nattendees:\n---\n"

	out := Merge(existing, nil, []ArrayField{{Key: "attendees", Items: []string{"Alice"}}})
	assert.Equal(t, "---\nattendees:\n  - Alice\n---\n", out)
}

func mustParse(t *testing.T, text string) *Block {
	t.Helper()
	b, _, err := Parse(text)
	require.NoError(t, err)
	return b
}
