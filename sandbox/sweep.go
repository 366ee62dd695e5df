package sandbox

import (
	"os"
	"path/filepath"
	"strings"
)

// Sweep removes every leftover working directory under root whose name
// carries workDirPrefix, reclaiming resources orphaned by a prior crash.
// It is meant to run once at process startup, before any execution is
// accepted.
func Sweep(root string, logger Logger) (int, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), workDirPrefix) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("sweep: failed to reclaim orphan sandbox dir", "path", path, "error", err.Error())
			continue
		}
		reclaimed++
	}
	if reclaimed > 0 {
		logger.Info("sweep: reclaimed orphan sandbox directories", "count", reclaimed)
	}
	return reclaimed, nil
}
