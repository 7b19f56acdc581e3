// Package remux repackages separate video and audio streams into one
// container without re-encoding.
package remux

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/archivebot/mediarchive/internal/media"
)

// Remuxer is the capability interface the merge step depends on. Tests
// substitute a fake; production uses FFmpeg.
type Remuxer interface {
	Available() bool
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FFmpeg implements Remuxer using the ffmpeg command line tool.
type FFmpeg struct {
	Path string
}

// NewFFmpeg returns an FFmpeg remuxer. If path is empty, "ffmpeg" is
// looked up in PATH.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// Available checks if ffmpeg is executable.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// Merge copies both streams into outputPath. Stream copy only, no
// re-encode. Input files are left in place; the caller owns cleanup.
func (f *FFmpeg) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	// ffmpeg -i video -i audio -c:v copy -c:a copy -y output
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-y", outputPath,
	}

	cmd := exec.CommandContext(ctx, f.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &media.MergeFailure{Detail: tail(stderr.String(), 512), Err: err}
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return &media.MergeFailure{Detail: "ffmpeg produced empty or missing output", Err: errEmptyOutput}
	}
	return nil
}

var errEmptyOutput = errors.New("empty remux output")

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
