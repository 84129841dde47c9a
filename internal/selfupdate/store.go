// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// ErrCorruptState is returned when a state file exists but cannot be decoded.
// Callers treat it the same as an absent file.
var ErrCorruptState = errors.New("corrupt update state file")

type (
	// VersionCache records the outcome of the last live release query.
	VersionCache struct {
		CheckedAt     time.Time `json:"checkedAt"`
		LatestVersion string    `json:"latestVersion"`
		DownloadURL   string    `json:"downloadUrl,omitempty"`
		ChecksumsURL  string    `json:"checksumsUrl,omitempty"`
		ReleaseURL    string    `json:"releaseUrl,omitempty"`
	}

	// PendingUpdate marks a release that is fully extracted under versions/
	// and ready to be activated by the next invocation.
	PendingUpdate struct {
		Version string `json:"version"`
		Path    string `json:"path"`
	}

	// Store persists the version cache and the pending-update marker.
	//
	// Load methods return (nil, nil) when the file does not exist. Delete is a
	// no-op when the file is already gone, so racing invocations can both
	// consume the same marker.
	Store interface {
		LoadCache() (*VersionCache, error)
		SaveCache(c *VersionCache) error
		LoadPending() (*PendingUpdate, error)
		SavePending(p *PendingUpdate) error
		DeletePending() error
	}

	// FileStore is a Store backed by JSON files in a single directory of an
	// afero filesystem. Writes go to a temp file that is renamed over the
	// target, so readers never observe a partially written file.
	FileStore struct {
		fs  afero.Fs
		dir string
	}
)

// NewFileStore returns a FileStore that keeps its files in dir on fs.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

// NewOSFileStore returns a FileStore over the real filesystem in the layout's
// updates directory.
func NewOSFileStore(layout Layout) *FileStore {
	return NewFileStore(afero.NewOsFs(), layout.UpdatesDir())
}

// CachePath returns the location of the version cache file.
func (s *FileStore) CachePath() string { return filepath.Join(s.dir, cacheFileName) }

// PendingPath returns the location of the pending-update marker.
func (s *FileStore) PendingPath() string { return filepath.Join(s.dir, pendingFileName) }

// LoadCache implements Store.
func (s *FileStore) LoadCache() (*VersionCache, error) {
	var c VersionCache
	found, err := s.read(cacheFileName, &c)
	if err != nil || !found {
		return nil, err
	}
	if c.CheckedAt.IsZero() {
		return nil, fmt.Errorf("%w: %s has no checkedAt", ErrCorruptState, s.CachePath())
	}
	return &c, nil
}

// SaveCache implements Store.
func (s *FileStore) SaveCache(c *VersionCache) error {
	return s.write(cacheFileName, c)
}

// LoadPending implements Store.
func (s *FileStore) LoadPending() (*PendingUpdate, error) {
	var p PendingUpdate
	found, err := s.read(pendingFileName, &p)
	if err != nil || !found {
		return nil, err
	}
	if p.Version == "" || p.Path == "" {
		return nil, fmt.Errorf("%w: %s is incomplete", ErrCorruptState, s.PendingPath())
	}
	return &p, nil
}

// SavePending implements Store.
func (s *FileStore) SavePending(p *PendingUpdate) error {
	return s.write(pendingFileName, p)
}

// DeletePending implements Store.
func (s *FileStore) DeletePending() error {
	err := s.fs.Remove(s.PendingPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing pending marker: %w", err)
	}
	return nil
}

func (s *FileStore) read(name string, v any) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrCorruptState, path, err)
	}
	return true, nil
}

func (s *FileStore) write(name string, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s.dir, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
