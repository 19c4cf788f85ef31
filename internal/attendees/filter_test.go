package attendees

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meetsync/internal/models"
)

func TestFilterDeduplicatesByEmailCaseInsensitively(t *testing.T) {
	in := []models.Attendee{
		{Email: "a@co.com"},
		{Email: "A@CO.com", DisplayName: "A"},
	}

	out := Filter(in, FilterRules{})

	// First occurrence wins.
	assert.Len(t, out, 1)
	assert.Equal(t, "a@co.com", out[0].Email)
	assert.Equal(t, "A", out[0].DisplayName)
}

func TestFilterDeduplicatesByDerivedName(t *testing.T) {
	in := []models.Attendee{
		{DisplayName: "Jane Doe"},
		{DisplayName: "jane doe"},
	}

	out := Filter(in, FilterRules{})
	assert.Len(t, out, 1)
}

func TestFilterDropsResources(t *testing.T) {
	in := []models.Attendee{
		{Email: "room-a@resource.calendar.google.com", DisplayName: "Big Room"},
		{Email: "projector@co.com", Resource: true},
		{DisplayName: "SF-3-Horizon"},
		{Email: "alice@co.com"},
	}

	out := Filter(in, FilterRules{})

	assert.Len(t, out, 1)
	assert.Equal(t, "alice@co.com", out[0].Email)
}

func TestFilterAppliesExclusionSubstrings(t *testing.T) {
	in := []models.Attendee{
		{Email: "noreply@scheduler.io"},
		{Email: "bob@co.com", DisplayName: "Bob"},
	}

	out := Filter(in, FilterRules{ExcludeSubstrings: []string{"NoReply"}})

	assert.Len(t, out, 1)
	assert.Equal(t, "Bob", out[0].DisplayName)
}

func TestFilterDerivesDisplayNames(t *testing.T) {
	out := Filter([]models.Attendee{{Email: "john.doe@co.com"}}, FilterRules{})

	assert.Len(t, out, 1)
	assert.Equal(t, "John Doe", out[0].DisplayName)
}

func TestDeriveName(t *testing.T) {
	cases := map[string]models.Attendee{
		"John Doe":     {Email: "john.doe@co.com"},
		"Mary Jane":    {Email: "mary_jane@co.com"},
		"Given":        {Email: "given@co.com", DisplayName: ""},
		"Kept Name":    {Email: "x@co.com", DisplayName: "Kept Name"},
		"Émile Dupont": {Email: "émile.dupont@co.com"},
	}
	for want, a := range cases {
		assert.Equal(t, want, DeriveName(a))
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	in := []models.Attendee{
		{Email: "a@co.com"},
		{Email: "b@co.com", DisplayName: "Bee"},
		{Email: "A@co.com"},
	}
	rules := FilterRules{ExcludeSubstrings: []string{"spam"}}

	once := Filter(in, rules)
	twice := Filter(once, rules)
	assert.Equal(t, once, twice)
}

func TestFilterEmptyInput(t *testing.T) {
	assert.Empty(t, Filter(nil, FilterRules{}))
	assert.Empty(t, Filter([]models.Attendee{}, FilterRules{}))
}
