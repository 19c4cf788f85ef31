// Package attendees cleans raw calendar attendee lists: it drops resource
// calendars and excluded people, derives display names, and deduplicates.
package attendees

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"meetsync/internal/models"
)

// resourceDomain is the email domain Google assigns to room and equipment
// resource calendars.
const resourceDomain = "resource.calendar.google.com"

// roomNameRe matches building-floor-room codes like "SF-3-Horizon" or
// "NYC 12 Boardroom" that show up as attendee names for booked rooms.
var roomNameRe = regexp.MustCompile(`(?i)^[a-z]{2,5}[-_ ]\d+[-_ ]\S`)

// FilterRules are the user-configured exclusion rules.
type FilterRules struct {
	// ExcludeSubstrings drops any attendee whose email or derived name
	// contains one of these, case-insensitively.
	ExcludeSubstrings []string
	// ResourceDomains are email domains treated as resource calendars.
	// The Google resource domain is always applied.
	ResourceDomains []string
}

// Filter returns the cleaned, deduplicated attendee list. It is pure and
// order-stable: the first occurrence of a duplicate wins. An empty input
// yields an empty output.
func Filter(list []models.Attendee, rules FilterRules) []models.Attendee {
	out := make([]models.Attendee, 0, len(list))
	seen := make(map[string]bool, len(list))

	for _, a := range list {
		if excluded(a, rules) {
			continue
		}
		key := dedupKey(a)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		a.DisplayName = DeriveName(a)
		out = append(out, a)
	}
	return out
}

// DeriveName returns the attendee's display name, falling back to the local
// part of the email with separators replaced by spaces and each word
// capitalized ("john.doe" becomes "John Doe").
func DeriveName(a models.Attendee) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	local := a.Email
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + w[size:]
	}
	return strings.Join(words, " ")
}

func excluded(a models.Attendee, rules FilterRules) bool {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	name := strings.ToLower(DeriveName(a))

	if a.Resource {
		return true
	}
	for _, domain := range append([]string{resourceDomain}, rules.ResourceDomains...) {
		if domain != "" && strings.HasSuffix(email, strings.ToLower(domain)) {
			return true
		}
	}
	if roomNameRe.MatchString(strings.TrimSpace(DeriveName(a))) {
		return true
	}
	for _, sub := range rules.ExcludeSubstrings {
		sub = strings.ToLower(strings.TrimSpace(sub))
		if sub == "" {
			continue
		}
		if strings.Contains(email, sub) || strings.Contains(name, sub) {
			return true
		}
	}
	return false
}

// dedupKey is the lower-cased trimmed email when present, else the
// normalized derived name.
func dedupKey(a models.Attendee) string {
	if email := strings.ToLower(strings.TrimSpace(a.Email)); email != "" {
		return email
	}
	return strings.ToLower(strings.TrimSpace(DeriveName(a)))
}
