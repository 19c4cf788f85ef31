// Package vault is the note storage layer: a document store of Markdown
// files addressed by vault-relative paths, plus a repository that maps
// series ids to note paths and serializes create-or-update per id.
package vault

import "errors"

var (
	// ErrNotFound is returned when modifying or reading a missing note.
	ErrNotFound = errors.New("note not found")
	// ErrAlreadyExists is returned when creating a note at a taken path.
	ErrAlreadyExists = errors.New("note already exists")
)

// FileInfo identifies one stored note.
type FileInfo struct {
	Path string // vault-relative, slash-separated
	Name string // base filename including extension
}

// Store is the minimal document-store surface the repository consumes.
// Paths are vault-relative and slash-separated.
type Store interface {
	// ListAll returns every note in the vault.
	ListAll() ([]FileInfo, error)
	// Read returns a note's full text.
	Read(path string) (string, error)
	// Create writes a new note; it fails with ErrAlreadyExists if the
	// path is taken.
	Create(path, text string) error
	// Modify replaces an existing note; it fails with ErrNotFound if the
	// path is missing.
	Modify(path, text string) error
	// Exists reports whether a note is present at path.
	Exists(path string) bool
	// CreateFolder ensures a folder exists; it is a no-op when present.
	CreateFolder(path string) error
}
