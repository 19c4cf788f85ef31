package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
)

// idDelimiter separates the display title from the embedded series id in a
// note filename: "<title> ~<id>.md". The delimiter keeps lookups
// collision-resistant against ids that are substrings of other ids, so it
// is also stripped from titles before a filename is built.
const idDelimiter = "~"

// Filename builds the canonical note filename for a title and series id.
// Path-unsafe characters in the title are replaced first.
func Filename(title, id string) string {
	return SanitizeTitle(title) + " " + idDelimiter + id + ".md"
}

// SanitizeTitle replaces characters that are unsafe in note paths (or would
// collide with the id delimiter) with a hyphen.
func SanitizeTitle(title string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '#', '^', '[', ']', '~':
			sb.WriteRune('-')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// IDFromName extracts the embedded series id from a note filename, or ""
// when the filename carries none.
func IDFromName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	idx := strings.LastIndex(name, idDelimiter)
	if idx < 0 {
		return ""
	}
	return name[idx+len(idDelimiter):]
}

// Repository maintains the id-to-path index over a Store and guards
// find-or-create with a per-id critical section, so two producers arriving
// concurrently for the same meeting can never create two notes.
type Repository struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	index map[string]string
	locks map[string]*sync.Mutex
}

// NewRepository opens a repository and builds the index from the vault's
// current contents.
func NewRepository(store Store, logger *slog.Logger) (*Repository, error) {
	r := &Repository{
		store:  store,
		logger: logger,
		index:  make(map[string]string),
		locks:  make(map[string]*sync.Mutex),
	}
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh rebuilds the id-to-path index from the store. External edits
// (renames, deletions) are picked up here; the scan loop calls it at the
// start of each cycle.
func (r *Repository) Refresh() error {
	notes, err := r.store.ListAll()
	if err != nil {
		return fmt.Errorf("failed to index vault: %w", err)
	}

	index := make(map[string]string, len(notes))
	for _, note := range notes {
		if id := IDFromName(note.Name); id != "" {
			if prev, dup := index[id]; dup {
				r.logger.Warn("Duplicate notes for one series id, keeping first.", "id", id, "kept", prev, "ignored", note.Path)
				continue
			}
			index[id] = note.Path
		}
	}

	r.mu.Lock()
	r.index = index
	r.mu.Unlock()
	return nil
}

// FindNote returns the vault path of the note for a series id.
func (r *Repository) FindNote(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.index[id]
	return p, ok
}

// lockFor returns the mutex serializing operations on one series id.
func (r *Repository) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// CreateOrUpdate finds the note for id and applies merge to its current
// text, or creates it under folder with merge("") when absent. The whole
// find-read-merge-write sequence holds the per-id lock. It returns the note
// path and whether a new note was created.
func (r *Repository) CreateOrUpdate(id, folder, title string, merge func(existing string) string) (string, bool, error) {
	l := r.lockFor(id)
	l.Lock()
	defer l.Unlock()

	if p, ok := r.FindNote(id); ok {
		changed, err := r.applyMerge(p, merge)
		if err != nil {
			return "", false, err
		}
		if changed {
			r.logger.Debug("Updated note.", "path", p, "id", id)
		}
		return p, false, nil
	}

	if err := r.store.CreateFolder(folder); err != nil {
		return "", false, err
	}
	p := path.Join(folder, Filename(title, id))
	err := r.store.Create(p, merge(""))
	if errors.Is(err, ErrAlreadyExists) {
		// A previous run created the note after our index was built.
		if _, mergeErr := r.applyMerge(p, merge); mergeErr != nil {
			return "", false, mergeErr
		}
		r.setIndex(id, p)
		return p, false, nil
	}
	if err != nil {
		return "", false, err
	}

	r.setIndex(id, p)
	r.logger.Info("Created note.", "path", p, "id", id)
	return p, true, nil
}

// Update applies merge to an existing note under the per-id lock. It
// returns ErrNotFound when no note exists for the id.
func (r *Repository) Update(id string, merge func(existing string) string) (string, error) {
	l := r.lockFor(id)
	l.Lock()
	defer l.Unlock()

	p, ok := r.FindNote(id)
	if !ok {
		return "", ErrNotFound
	}
	if _, err := r.applyMerge(p, merge); err != nil {
		return "", err
	}
	return p, nil
}

// Read returns a note's current text.
func (r *Repository) Read(p string) (string, error) {
	return r.store.Read(p)
}

// applyMerge rewrites a note in place, skipping the write when merge left
// the text unchanged.
func (r *Repository) applyMerge(p string, merge func(existing string) string) (bool, error) {
	text, err := r.store.Read(p)
	if err != nil {
		return false, err
	}
	merged := merge(text)
	if merged == text {
		return false, nil
	}
	if err := r.store.Modify(p, merged); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) setIndex(id, p string) {
	r.mu.Lock()
	r.index[id] = p
	r.mu.Unlock()
}
