package frontmatter

import (
	"errors"
	"strings"
)

// Delimiter is the fixed marker line that opens and closes a metadata block.
const Delimiter = "---"

// ErrNoBlock is returned when a note's metadata block delimiters cannot be
// located. Callers must not attempt a merge in that case.
var ErrNoBlock = errors.New("no metadata block found")

// canonicalOrder is the fixed sequence known fields are rewritten in:
// identity fields first, then temporal fields, then free-form fields.
var canonicalOrder = []string{
	"event_id",
	"series_id",
	"title",
	"date",
	"start_time",
	"end_time",
	"organizer",
	"attendees",
	"tags",
	"recording_id",
}

var canonicalIndex = buildCanonicalIndex()

func buildCanonicalIndex() map[string]int {
	idx := make(map[string]int, len(canonicalOrder))
	for i, key := range canonicalOrder {
		idx[key] = i
	}
	return idx
}

// Field is a scalar metadata field supplied to a merge.
type Field struct {
	Key   string
	Value string
}

// ArrayField is a list-valued metadata field supplied to a merge. It is
// applied only when the existing list is empty or absent.
type ArrayField struct {
	Key   string
	Items []string
}

type entryKind int

const (
	scalarEntry entryKind = iota
	arrayEntry
	rawEntry
)

// entry is one parsed element of a metadata block. Unmodified entries are
// re-emitted from their original raw lines so that user formatting survives
// a merge untouched.
type entry struct {
	kind  entryKind
	key   string
	value string
	items []string
	raw   []string
	dirty bool
}

// Block is an ordered list of metadata entries. Serialization replays the
// list, with canonical fields pulled to the front in canonical order and
// everything else kept in its original relative position.
type Block struct {
	entries []*entry
}

// NewBlock returns an empty metadata block.
func NewBlock() *Block {
	return &Block{}
}

// Parse locates and parses the metadata block at the start of text. It
// returns the block and the remainder of the note (including the newline
// that separated it from the block), or ErrNoBlock when the delimiters
// cannot be located.
func Parse(text string) (*Block, string, error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t") != Delimiter {
		return nil, "", ErrNoBlock
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == Delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, "", ErrNoBlock
	}

	body := ""
	if end+1 < len(lines) {
		body = "\n" + strings.Join(lines[end+1:], "\n")
	}

	return parseEntries(lines[1:end]), body, nil
}

// parseEntries converts the lines between the delimiters into an ordered
// entry list. A "key:" line followed by two-space-indented "- " lines is an
// array field; anything that is not a field line is kept verbatim.
func parseEntries(lines []string) *Block {
	b := NewBlock()
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		key, rest, ok := splitFieldLine(line)
		if !ok {
			b.entries = append(b.entries, &entry{kind: rawEntry, raw: []string{line}})
			continue
		}

		if rest == "" {
			var items []string
			raw := []string{line}
			j := i + 1
			for j < len(lines) {
				item, ok := parseArrayItem(lines[j])
				if !ok {
					break
				}
				items = append(items, item)
				raw = append(raw, lines[j])
				j++
			}
			if len(items) > 0 {
				b.entries = append(b.entries, &entry{kind: arrayEntry, key: key, items: items, raw: raw})
				i = j - 1
				continue
			}
			// A bare "key:" line is an empty scalar; an array merge may
			// later upgrade it in place.
			b.entries = append(b.entries, &entry{kind: scalarEntry, key: key, raw: []string{line}})
			continue
		}

		b.entries = append(b.entries, &entry{kind: scalarEntry, key: key, value: unquote(rest), raw: []string{line}})
	}
	return b
}

// splitFieldLine splits a "key: value" line. The key must start in the
// first column and contain no whitespace or quoting characters.
func splitFieldLine(line string) (key, rest string, ok bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
		return "", "", false
	}
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = line[:idx]
	if strings.ContainsAny(key, " \t\"") {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+1:]), true
}

// parseArrayItem matches a two-space-indented "- value" line.
func parseArrayItem(line string) (string, bool) {
	if !strings.HasPrefix(line, "  - ") {
		if line == "  -" {
			return "", true
		}
		return "", false
	}
	return unquote(strings.TrimSpace(line[4:])), true
}

// Scalar returns the value of a scalar field.
func (b *Block) Scalar(key string) (string, bool) {
	for _, e := range b.entries {
		if e.kind == scalarEntry && e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Array returns the items of an array field.
func (b *Block) Array(key string) ([]string, bool) {
	for _, e := range b.entries {
		if e.kind == arrayEntry && e.key == key {
			return e.items, true
		}
	}
	return nil, false
}

// SetScalar sets a scalar field, overwriting any existing value. New keys
// are appended; rendering folds canonical keys into their fixed position.
func (b *Block) SetScalar(key, value string) {
	for _, e := range b.entries {
		if e.kind != rawEntry && e.key == key {
			if e.kind == scalarEntry && e.value == value {
				return
			}
			e.kind = scalarEntry
			e.value = value
			e.items = nil
			e.dirty = true
			return
		}
	}
	b.entries = append(b.entries, &entry{kind: scalarEntry, key: key, value: value, dirty: true})
}

// SetArray sets an array field unconditionally. Callers enforcing the
// never-overwrite-a-populated-list policy check Array first; Merge does.
func (b *Block) SetArray(key string, items []string) {
	for _, e := range b.entries {
		if e.kind != rawEntry && e.key == key {
			if e.kind == arrayEntry && equalItems(e.items, items) {
				return
			}
			if e.kind == scalarEntry && e.value == "" && len(items) == 0 {
				// "key:" already renders an empty list.
				return
			}
			e.kind = arrayEntry
			e.items = items
			e.value = ""
			e.dirty = true
			return
		}
	}
	b.entries = append(b.entries, &entry{kind: arrayEntry, key: key, items: items, dirty: true})
}

func equalItems(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Render serializes the block followed by body. Canonical fields come first
// in canonical order; unknown fields and unparsed lines follow in their
// original relative order. Unmodified entries replay their original lines.
func (b *Block) Render(body string) string {
	out := []string{Delimiter}

	for _, key := range canonicalOrder {
		for _, e := range b.entries {
			if e.kind != rawEntry && e.key == key {
				out = append(out, e.render()...)
			}
		}
	}
	for _, e := range b.entries {
		if e.kind != rawEntry {
			if _, canonical := canonicalIndex[e.key]; canonical {
				continue
			}
		}
		out = append(out, e.render()...)
	}

	out = append(out, Delimiter)
	return strings.Join(out, "\n") + body
}

func (e *entry) render() []string {
	if !e.dirty && e.raw != nil {
		return e.raw
	}
	switch e.kind {
	case rawEntry:
		return e.raw
	case arrayEntry:
		lines := []string{e.key + ":"}
		for _, item := range e.items {
			lines = append(lines, "  - "+quoteIfNeeded(item))
		}
		return lines
	default:
		if e.value == "" {
			return []string{e.key + ":"}
		}
		return []string{e.key + ": " + quoteIfNeeded(e.value)}
	}
}

// Merge applies scalar and array fields to an existing note's metadata
// block. A nil-equivalent (empty) existing note synthesizes a fresh block.
// Scalars overwrite unconditionally; arrays apply only when the existing
// list is empty or absent. A note whose delimiters cannot be located is
// returned unchanged rather than risking corruption. Merge is idempotent:
// applying the same inputs twice produces identical output.
func Merge(existing string, fields []Field, arrays []ArrayField) string {
	var (
		b    *Block
		body string
	)
	if strings.TrimSpace(existing) == "" {
		b = NewBlock()
		body = "\n"
	} else {
		var err error
		b, body, err = Parse(existing)
		if err != nil {
			return existing
		}
	}

	for _, f := range fields {
		b.SetScalar(f.Key, f.Value)
	}
	for _, a := range arrays {
		if items, ok := b.Array(a.Key); ok && len(items) > 0 {
			continue
		}
		b.SetArray(a.Key, a.Items)
	}

	return b.Render(body)
}

// quoteIfNeeded wraps a value in double quotes when it contains characters
// that would not survive a reparse, escaping backslashes and quotes.
func quoteIfNeeded(v string) string {
	if !needsQuoting(v) {
		return v
	}
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

func needsQuoting(v string) bool {
	if v == "" {
		return false
	}
	if strings.ContainsAny(v, `"#`) {
		return true
	}
	if strings.Contains(v, ": ") || strings.HasSuffix(v, ":") {
		return true
	}
	if v != strings.TrimSpace(v) {
		return true
	}
	return strings.HasPrefix(v, "- ") || v == "-"
}

// unquote reverses quoteIfNeeded.
func unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	inner := v[1 : len(v)-1]
	var sb strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
			sb.WriteByte(inner[i])
			continue
		}
		sb.WriteByte(inner[i])
	}
	return sb.String()
}
