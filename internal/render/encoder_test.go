package render

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentArgs(t *testing.T) {
	e := NewFFmpegEncoder("", 0)
	withAudio := strings.Join(e.segmentArgs(Shot{Frame: "f.png", Audio: "a.wav", Seconds: 2.5}, "o.mp4"), " ")
	require.Contains(t, withAudio, "-i f.png -i a.wav")
	require.Contains(t, withAudio, "-t 2.500")
	require.Contains(t, withAudio, "-r 30")
	require.True(t, strings.HasSuffix(withAudio, "o.mp4"))

	silent := strings.Join(e.segmentArgs(Shot{Frame: "f.png", Seconds: 1}, "o.mp4"), " ")
	require.Contains(t, silent, "anullsrc")
}

// fakeFFmpeg writes a script that creates its last argument and fails when
// asked to mix audio.
func fakeFFmpeg(t *testing.T) string {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncase \"$*\" in *amix*) exit 1;; esac\nfor last; do :; done\n: > \"$last\"\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin
}

func TestFFmpegEncodeFlow(t *testing.T) {
	e := NewFFmpegEncoder(fakeFFmpeg(t), 30)
	work := t.TempDir()
	out := filepath.Join(t.TempDir(), "videos", "v.mp4")
	shots := []Shot{{Frame: "a.png", Seconds: 1}, {Frame: "b.png", Seconds: 2}}
	require.NoError(t, e.Encode(context.Background(), shots, "", work, out))
	_, err := os.Stat(out)
	require.NoError(t, err)

	list, err := os.ReadFile(filepath.Join(work, "segments.txt"))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(list), "file '"))
}

func TestFFmpegMusicFailureKeepsVideo(t *testing.T) {
	e := NewFFmpegEncoder(fakeFFmpeg(t), 30)
	work := t.TempDir()
	out := filepath.Join(work, "v.mp4")
	require.NoError(t, e.Encode(context.Background(), []Shot{{Frame: "a.png", Seconds: 1}}, "music.mp3", work, out))
	_, err := os.Stat(out)
	require.NoError(t, err)
}

func TestFFmpegEncodeNoShots(t *testing.T) {
	e := NewFFmpegEncoder("ffmpeg", 30)
	require.Error(t, e.Encode(context.Background(), nil, "", t.TempDir(), "x.mp4"))
}
