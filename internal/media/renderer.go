// Package media runs the external renderer. It executes ffmpeg argument
// lists produced by the filter graph compiler and probes media durations
// with ffprobe.
package media

import "context"

// Renderer defines the interface for executing render commands.
// Implementations shell out to ffmpeg or a compatible tool.
type Renderer interface {
	// Render executes one renderer invocation with the given arguments.
	// A non-zero exit surfaces a RenderError with the exit code and the
	// tail of stderr.
	Render(ctx context.Context, args []string) error

	// ProbeDuration returns the duration in seconds of a media file.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
