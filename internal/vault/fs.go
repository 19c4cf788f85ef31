package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS is a Store over a local vault directory. Only Markdown files are
// visible; anything else in the vault is ignored.
type FS struct {
	root string
}

// NewFS opens the vault rooted at dir, creating it if missing.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to open vault %s: %w", dir, err)
	}
	return &FS{root: dir}, nil
}

// ListAll walks the vault and returns every Markdown note.
func (v *FS) ListAll() ([]FileInfo, error) {
	var notes []FileInfo
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		notes = append(notes, FileInfo{Path: filepath.ToSlash(rel), Name: d.Name()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vault: %w", err)
	}
	return notes, nil
}

// Read returns a note's text.
func (v *FS) Read(path string) (string, error) {
	data, err := os.ReadFile(v.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// Create writes a new note, failing if the path is already taken.
func (v *FS) Create(path, text string) error {
	f, err := os.OpenFile(v.abs(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Modify replaces an existing note's text.
func (v *FS) Modify(path, text string) error {
	if !v.Exists(path) {
		return ErrNotFound
	}
	if err := os.WriteFile(v.abs(path), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to modify %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a note is present at path.
func (v *FS) Exists(path string) bool {
	info, err := os.Stat(v.abs(path))
	return err == nil && !info.IsDir()
}

// CreateFolder ensures a vault folder exists.
func (v *FS) CreateFolder(path string) error {
	if err := os.MkdirAll(v.abs(path), 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

func (v *FS) abs(path string) string {
	return filepath.Join(v.root, filepath.FromSlash(path))
}
