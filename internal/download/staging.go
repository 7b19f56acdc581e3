package download

import (
	"os"
	"path/filepath"
	"time"
)

// Staging is the temporary area downloads and merge outputs are written
// to before placement. Nothing in it is durable; files left behind by a
// crash are fair game for the janitor.
type Staging struct {
	dir string
}

// NewStaging creates the staging directory if needed.
func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Staging{dir: dir}, nil
}

// Dir returns the staging directory path.
func (s *Staging) Dir() string { return s.dir }

// Create opens a fresh staging file. Pattern follows os.CreateTemp.
func (s *Staging) Create(pattern string) (*os.File, error) {
	return os.CreateTemp(s.dir, pattern)
}

// Sweep removes staging files older than maxAge and reports how many
// were deleted.
func (s *Staging) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(s.dir, entry.Name())) == nil {
			removed++
		}
	}
	return removed, nil
}
