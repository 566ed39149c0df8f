// Package artifacts manages the files an analysis writes next to a trace:
// segment and manifest dumps, thumbnails scratch space, images and the
// report snapshot.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"
)

// Directory and file names under a trace root.
const (
	SegmentsDir  = "video_segments"
	ImageDir     = "Image"
	DownloadsDir = "downloads"
	ReportFile   = "video_usage.json"
	Thumbnail    = "thumbnail.png"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store performs file operations rooted at a trace directory.
type Store struct {
	root string
}

// NewStore returns a store for the trace directory root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the trace directory.
func (s *Store) Root() string {
	return s.root
}

// Path joins elem onto the trace directory.
func (s *Store) Path(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates dir and its parents if needed.
func (s *Store) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// Reset empties dir, keeping the directory itself, or creates it when it
// does not exist. Sub-directories are left in place.
func (s *Store) Reset(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return s.EnsureDir(dir)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save writes data to path atomically, creating parent directories.
func (s *Store) Save(path string, data []byte) error {
	if err := s.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read returns the contents of path.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Remove deletes path; a missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemoveAll deletes dir and everything below it.
func (s *Store) RemoveAll(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

// List returns the regular files in dir sorted by name. A missing
// directory yields no files.
func (s *Store) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
