// Package reaper removes stale working directories.
package reaper

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"judger/pkg/utils/logger"
)

const (
	defaultRetention = 7 * 24 * time.Hour
	defaultInterval  = 24 * time.Hour
)

// Config controls the sweep schedule.
type Config struct {
	Retention time.Duration `yaml:"retention"`
	Interval  time.Duration `yaml:"interval"`
}

// Reaper periodically deletes entries under root older than the retention.
type Reaper struct {
	root      string
	retention time.Duration
	interval  time.Duration
}

// New creates a reaper; zero config fields take defaults.
func New(root string, cfg Config) *Reaper {
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Reaper{root: root, retention: cfg.Retention, interval: cfg.Interval}
}

// Run sweeps immediately and then once per interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		removed, err := r.Sweep(time.Now())
		if err != nil {
			logger.Warn(ctx, "reaper sweep failed", zap.String("root", r.root), zap.Error(err))
		} else if removed > 0 {
			logger.Info(ctx, "reaper removed stale entries", zap.String("root", r.root), zap.Int("removed", removed))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep removes entries whose modification time is before now-retention.
// A missing root is not an error. Failures on single entries are joined.
func (r *Reaper) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := now.Add(-r.retention)
	removed := 0
	var errs []error
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.root, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
