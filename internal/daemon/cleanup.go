package daemon

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scriptcheck/internal/logging"
)

// cleanStaleWorkspaces removes per-interview scratch directories (and their
// lock files) older than maxAge. A crashed worker leaves its workspace
// behind; the interview itself is redelivered, so the directory is safe to
// reap.
func cleanStaleWorkspaces(workDir string, maxAge time.Duration, logger *slog.Logger) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" || maxAge <= 0 {
		return
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("workspace scan failed", logging.Error(err))
		}
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(workDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			logger.Warn("workspace stat failed", logging.String("path", path), logging.Error(err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("workspace removal failed", logging.String("path", path), logging.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("stale workspaces removed", logging.Int("count", removed))
	}
}
