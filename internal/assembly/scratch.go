package assembly

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"mixdown/internal/logging"
	"mixdown/internal/services"
)

// Scratch is the per-run working directory. Exactly one run owns it;
// Cleanup removes it with everything inside on every exit path.
type Scratch struct {
	root string
}

// NewScratch creates the run-scoped directory under baseDir, named after
// the run so orphans from crashed runs are attributable.
func NewScratch(baseDir, runID string) (*Scratch, error) {
	root := filepath.Join(baseDir, "run-"+runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "scratch",
			fmt.Sprintf("failed to create %s", root), err)
	}
	return &Scratch{root: root}, nil
}

// Root returns the scratch directory path.
func (s *Scratch) Root() string {
	return s.root
}

// Path returns the absolute path for a scratch file.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Cleanup removes the scratch directory. Failures are logged, not
// returned; a leftover directory is reclaimed by the next orphan sweep.
func (s *Scratch) Cleanup(logger *slog.Logger) {
	if s == nil || s.root == "" {
		return
	}
	if err := os.RemoveAll(s.root); err != nil && logger != nil {
		logger.Warn("failed to remove scratch directory",
			logging.String("path", s.root),
			logging.Error(err),
		)
	}
}

// SweepOrphans removes run directories that crashed runs left under
// baseDir. A file lock serializes sweeps across processes; only one
// sweeper runs at a time and contenders skip the sweep entirely.
// Directories younger than maxAge are left alone since they may belong
// to a live run. Returns the number of directories removed.
func SweepOrphans(baseDir string, maxAge time.Duration, logger *slog.Logger) (int, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "", "sweep",
			fmt.Sprintf("failed to create %s", baseDir), err)
	}

	lock := flock.New(filepath.Join(baseDir, ".sweep.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "", "sweep", "failed to acquire sweep lock", err)
	}
	if !locked {
		return 0, nil
	}
	defer func() { _ = lock.Unlock() }()

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "", "sweep", baseDir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "run-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			if logger != nil {
				logger.Warn("failed to remove orphaned scratch directory",
					logging.String("path", path),
					logging.Error(err),
				)
			}
			continue
		}
		removed++
		if logger != nil {
			logger.Info("removed orphaned scratch directory", logging.String("path", path))
		}
	}
	return removed, nil
}
