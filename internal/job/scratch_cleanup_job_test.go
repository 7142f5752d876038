package job

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScratchCleanupRemovesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old_video")
	fresh := filepath.Join(dir, "new_video")
	require.NoError(t, os.MkdirAll(filepath.Join(stale, "frames"), 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segments.txt"), []byte("x"), 0o644))

	now := time.Now()
	old := now.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "segments.txt"), old, old))

	job := NewScratchCleanupJob(dir, 24*time.Hour)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(context.Background()))

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "segments.txt"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestScratchCleanupMissingDir(t *testing.T) {
	job := NewScratchCleanupJob(filepath.Join(t.TempDir(), "nope"), time.Hour)
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, "scratch_cleanup", job.Name())
}
