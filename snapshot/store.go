package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Fixed filenames inside a per-identity directory.
const (
	CurrentFile  = "current.png"
	BaselineFile = "baseline.png"
	DiffFile     = "diff.png"
	MetaFile     = "meta.json"
)

// Meta records where a capture came from. Written next to current.png so
// later compare/report runs can show the original URL and title.
type Meta struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Target is one URL identity present in the store.
type Target struct {
	ID           string
	CurrentPath  string
	BaselinePath string
	DiffPath     string
	HasBaseline  bool
}

// Store owns a snapshot output directory. All mutation of the baseline set
// goes through it.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates a Store rooted at dir. The directory is created on first write.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: dir, logger: logger}
}

// Root returns the store's base directory.
func (s *Store) Root() string { return s.root }

// Dir returns the per-identity directory.
func (s *Store) Dir(id string) string { return filepath.Join(s.root, id) }

// CurrentPath returns the path of the current capture for an identity.
func (s *Store) CurrentPath(id string) string { return filepath.Join(s.root, id, CurrentFile) }

// BaselinePath returns the path of the accepted baseline for an identity.
func (s *Store) BaselinePath(id string) string { return filepath.Join(s.root, id, BaselineFile) }

// DiffPath returns the path where the diff overlay is written.
func (s *Store) DiffPath(id string) string { return filepath.Join(s.root, id, DiffFile) }

// WriteCurrent persists a capture into the current slot, creating the
// identity directory as needed. Re-running overwrites current without
// touching baseline.
func (s *Store) WriteCurrent(id string, png []byte) (string, error) {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}
	path := s.CurrentPath(id)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return path, nil
}

// WriteMeta persists capture metadata next to the current image.
func (s *Store) WriteMeta(id string, m Meta) error {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal meta: %w", err)
	}
	path := filepath.Join(dir, MetaFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// ReadMeta loads capture metadata for an identity. Missing meta is not an
// error; it returns a zero Meta.
func (s *Store) ReadMeta(id string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), MetaFile))
	if os.IsNotExist(err) {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, fmt.Errorf("snapshot: read meta: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("snapshot: parse meta: %w", err)
	}
	return m, nil
}

// Targets scans the store and returns every identity that has a current
// capture, sorted by identity.
func (s *Store) Targets() ([]Target, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read dir %s: %w", s.root, err)
	}

	var targets []Target
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		cur := s.CurrentPath(id)
		if _, err := os.Stat(cur); err != nil {
			continue
		}
		base := s.BaselinePath(id)
		_, berr := os.Stat(base)
		targets = append(targets, Target{
			ID:           id,
			CurrentPath:  cur,
			BaselinePath: base,
			DiffPath:     s.DiffPath(id),
			HasBaseline:  berr == nil,
		})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })
	return targets, nil
}

// Accept promotes every current capture to baseline, overwriting existing
// baselines. Returns the number of baselines written.
func (s *Store) Accept() (int, error) {
	targets, err := s.Targets()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range targets {
		if err := copyFile(t.CurrentPath, t.BaselinePath); err != nil {
			return count, fmt.Errorf("snapshot: accept %s: %w", t.ID, err)
		}
		count++
	}
	return count, nil
}

// Prune deletes baselines whose modification time is older than the cutoff.
// Destructive and irreversible; export first if retention is needed.
func (s *Store) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot: read dir %s: %w", s.root, err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := s.BaselinePath(e.Name())
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return removed, fmt.Errorf("snapshot: prune %s: %w", path, err)
			}
			s.logger.Info("snapshot: pruned baseline", "target", e.Name(), "age", time.Since(info.ModTime()))
			removed++
		}
	}
	return removed, nil
}

// Export copies every baseline into dir/<identity>/baseline.png.
func (s *Store) Export(dir string) (int, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot: read dir %s: %w", s.root, err)
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		src := s.BaselinePath(e.Name())
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(dir, e.Name(), BaselineFile)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return count, fmt.Errorf("snapshot: export mkdir: %w", err)
		}
		if err := copyFile(src, dst); err != nil {
			return count, fmt.Errorf("snapshot: export %s: %w", e.Name(), err)
		}
		count++
	}
	return count, nil
}

// Import copies baselines from dir (the layout produced by Export) into the
// store, overwriting existing baselines for matching identities.
func (s *Store) Import(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("snapshot: read import dir %s: %w", dir, err)
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		src := filepath.Join(dir, e.Name(), BaselineFile)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.MkdirAll(s.Dir(e.Name()), 0o755); err != nil {
			return count, fmt.Errorf("snapshot: import mkdir: %w", err)
		}
		if err := copyFile(src, s.BaselinePath(e.Name())); err != nil {
			return count, fmt.Errorf("snapshot: import %s: %w", e.Name(), err)
		}
		count++
	}
	return count, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
