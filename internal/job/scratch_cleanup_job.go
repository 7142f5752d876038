package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ScratchCleanupJob removes render leftovers (frames, audio, downloaded
// images, partial segments) that have not been touched for maxAge.
type ScratchCleanupJob struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

func NewScratchCleanupJob(dir string, maxAge time.Duration) *ScratchCleanupJob {
	return &ScratchCleanupJob{dir: dir, maxAge: maxAge, now: time.Now}
}

func (j *ScratchCleanupJob) Name() string {
	return "scratch_cleanup"
}

func (j *ScratchCleanupJob) Run(ctx context.Context) error {
	if j.dir == "" {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	cutoff := j.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(j.dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	logutil.GetLogger(ctx).Info("scratch cleaned", zap.String("dir", j.dir), zap.Int("removed", removed))
	return errors.Join(errs...)
}
