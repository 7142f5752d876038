package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Encoder turns a list of shots into one video file.
type Encoder interface {
	Encode(ctx context.Context, shots []Shot, music, workDir, outPath string) error
}

type FFmpegEncoder struct {
	bin string
	fps int
}

func NewFFmpegEncoder(bin string, fps int) *FFmpegEncoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &FFmpegEncoder{bin: bin, fps: fps}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, shots []Shot, music, workDir, outPath string) error {
	if len(shots) == 0 {
		return fmt.Errorf("no shots to encode")
	}
	segDir := filepath.Join(workDir, "segments")
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return err
	}
	var list strings.Builder
	for i, shot := range shots {
		seg := filepath.Join(segDir, fmt.Sprintf("%05d.mp4", i))
		if err := e.run(ctx, e.segmentArgs(shot, seg)); err != nil {
			return fmt.Errorf("encode segment %d: %w", i, err)
		}
		abs, err := filepath.Abs(seg)
		if err != nil {
			return err
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	listPath := filepath.Join(workDir, "segments.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if music == "" {
		return e.run(ctx, concatArgs(listPath, outPath))
	}
	joined := filepath.Join(workDir, "joined.mp4")
	if err := e.run(ctx, concatArgs(listPath, joined)); err != nil {
		return err
	}
	if err := e.run(ctx, musicArgs(joined, music, outPath)); err != nil {
		logutil.GetLogger(ctx).Warn("background music mix failed, keeping narration only",
			zap.String("music", music), zap.Error(err))
		return os.Rename(joined, outPath)
	}
	return nil
}

func (e *FFmpegEncoder) segmentArgs(shot Shot, out string) []string {
	seconds := strconv.FormatFloat(shot.Seconds, 'f', 3, 64)
	args := []string{"-y", "-loglevel", "error", "-loop", "1", "-framerate", strconv.Itoa(e.fps), "-i", shot.Frame}
	if shot.Audio != "" {
		args = append(args, "-i", shot.Audio)
	} else {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=mono:sample_rate=24000")
	}
	return append(args,
		"-t", seconds,
		"-af", "apad",
		"-c:v", "libx264", "-tune", "stillimage", "-pix_fmt", "yuv420p", "-r", strconv.Itoa(e.fps),
		"-c:a", "aac", "-ar", "24000", "-ac", "1",
		out,
	)
}

func concatArgs(listPath, out string) []string {
	return []string{"-y", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", out}
}

func musicArgs(video, music, out string) []string {
	return []string{
		"-y", "-loglevel", "error",
		"-i", video,
		"-stream_loop", "-1", "-i", music,
		"-filter_complex", "[1:a]volume=0.15[m];[0:a][m]amix=inputs=2:duration=first[a]",
		"-map", "0:v", "-map", "[a]",
		"-c:v", "copy", "-c:a", "aac",
		out,
	}
}

func (e *FFmpegEncoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", e.bin, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
