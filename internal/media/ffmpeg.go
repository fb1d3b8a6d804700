package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrProbeFailed is returned when the ffprobe invocation fails.
var ErrProbeFailed = errors.New("media: ffprobe execution failed")

// stderrTailLimit bounds how much renderer stderr is kept on failure.
const stderrTailLimit = 2048

// FFmpegRenderer implements Renderer using the ffmpeg and ffprobe CLIs.
type FFmpegRenderer struct {
	ffmpegPath  string
	ffprobePath string
}

// Compile-time check that FFmpegRenderer implements Renderer.
var _ Renderer = (*FFmpegRenderer)(nil)

// NewFFmpegRenderer creates a new FFmpegRenderer. Empty paths default to
// "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegRenderer(ffmpegPath, ffprobePath string) *FFmpegRenderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegRenderer{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Render executes ffmpeg with the given arguments.
func (r *FFmpegRenderer) Render(ctx context.Context, args []string) error {
	// #nosec G204 - args are produced by the filter graph compiler, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("media: render cancelled: %w", ctx.Err())
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &RenderError{
			ExitCode:   exitCode,
			StderrTail: tail(stderr.String(), stderrTailLimit),
			Err:        err,
		}
	}
	return nil
}

// ProbeDuration returns the duration in seconds of a media file using
// ffprobe's format=duration entry.
func (r *FFmpegRenderer) ProbeDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("media: probe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrProbeFailed, err, stderr.String())
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration); err != nil {
		return 0, fmt.Errorf("media: parse duration: %w", err)
	}
	return duration, nil
}

// RenderError represents a failed renderer invocation.
type RenderError struct {
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("media: render failed with exit code %d: %s", e.ExitCode, e.StderrTail)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
