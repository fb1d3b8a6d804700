// Package filtergraph compiles an ordered image list plus an optional
// audio bed into a complete ffmpeg invocation: per-clip pan/zoom,
// crossfades between clips, optional fade to black, and an audio bed
// trimmed and faded to the video length.
package filtergraph

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Fixed output profile for reels.
const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
	DefaultFPS    = 30
)

// MaxZoom is the upper bound on the zoom amplitude.
const MaxZoom = 0.3

// Static errors for graph compilation.
var (
	// ErrNoImages is returned when the plan contains no images.
	ErrNoImages = errors.New("filtergraph: no images provided")
	// ErrInvalidDuration is returned when seconds-per-image is not positive.
	ErrInvalidDuration = errors.New("filtergraph: seconds per image must be positive")
	// ErrInvalidZoom is returned when the zoom amplitude is outside (0, 0.3].
	ErrInvalidZoom = errors.New("filtergraph: zoom amplitude must be in (0, 0.3]")
	// ErrOutputRequired is returned when no output path is set.
	ErrOutputRequired = errors.New("filtergraph: output path is required")
)

// AudioTrack describes the selected background audio bed.
type AudioTrack struct {
	// Path is the local file path of the track.
	Path string
	// Duration is the track length in seconds, as reported by the probe.
	Duration float64
}

// Params is the input to one graph compilation.
type Params struct {
	// ImagePaths is the ordered list of local image files to render.
	ImagePaths []string
	// SecondsPerImage is how long each image is shown.
	SecondsPerImage float64
	// Transition is the requested crossfade duration; clamped by
	// ComputeTiming.
	Transition float64
	// Zoom is the pan/zoom amplitude in (0, 0.3].
	Zoom float64
	// FadeToBlack enables the opening fade-in and closing fade-out.
	FadeToBlack bool
	// Audio is the optional background track; nil renders silent.
	Audio *AudioTrack
	// OutputPath is where ffmpeg writes the MP4.
	OutputPath string
}

// Compiler builds ffmpeg argument lists for reel rendering.
type Compiler struct {
	width  int
	height int
	fps    int
	// coin decides the zoom direction per clip (true = zoom in).
	coin func() bool
	// float64n returns a uniform value in [0, n); used for the audio
	// start offset.
	float64n func(n float64) float64
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithResolution overrides the target resolution.
func WithResolution(width, height int) Option {
	return func(c *Compiler) {
		c.width = width
		c.height = height
	}
}

// WithFPS overrides the output frame rate.
func WithFPS(fps int) Option {
	return func(c *Compiler) {
		c.fps = fps
	}
}

// WithCoin replaces the zoom-direction coin flip. Used by tests.
func WithCoin(coin func() bool) Option {
	return func(c *Compiler) {
		c.coin = coin
	}
}

// WithFloat64n replaces the uniform float source. Used by tests.
func WithFloat64n(f func(float64) float64) Option {
	return func(c *Compiler) {
		c.float64n = f
	}
}

// NewCompiler creates a Compiler with the fixed reel profile.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		width:    DefaultWidth,
		height:   DefaultHeight,
		fps:      DefaultFPS,
		coin:     func() bool { return rand.IntN(2) == 0 },
		float64n: func(n float64) float64 { return rand.Float64() * n },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile validates the params and returns the full ffmpeg argument list
// (excluding the binary name), along with the resolved timing.
func (c *Compiler) Compile(p Params) ([]string, Timing, error) {
	if len(p.ImagePaths) == 0 {
		return nil, Timing{}, ErrNoImages
	}
	if p.SecondsPerImage <= 0 {
		return nil, Timing{}, fmt.Errorf("%w: got %v", ErrInvalidDuration, p.SecondsPerImage)
	}
	if p.Zoom <= 0 || p.Zoom > MaxZoom {
		return nil, Timing{}, fmt.Errorf("%w: got %v", ErrInvalidZoom, p.Zoom)
	}
	if p.OutputPath == "" {
		return nil, Timing{}, ErrOutputRequired
	}

	n := len(p.ImagePaths)
	timing := ComputeTiming(n, p.SecondsPerImage, p.Transition)

	args := []string{"-y"}
	for _, path := range p.ImagePaths {
		// Pin the input frame rate so the looped still yields exactly
		// ClipDuration*fps frames for zoompan to consume one at a time.
		args = append(args, "-framerate", strconv.Itoa(c.fps), "-loop", "1", "-t", formatSeconds(timing.ClipDuration), "-i", path)
	}
	if p.Audio != nil {
		args = append(args, c.audioInputArgs(p.Audio, timing.TotalDuration)...)
	}

	graph := c.buildGraph(p, timing)
	args = append(args, "-filter_complex", graph, "-map", "[vout]")
	if p.Audio != nil {
		args = append(args, "-map", "[aout]")
	}

	args = append(args, "-r", strconv.Itoa(c.fps), "-c:v", "libx264")
	if p.Audio != nil {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args, "-shortest", "-movflags", "+faststart", p.OutputPath)

	return args, timing, nil
}

// audioInputArgs seeks into the track at a random offset when it is
// longer than the video, and loops it from the start otherwise.
func (c *Compiler) audioInputArgs(track *AudioTrack, totalDuration float64) []string {
	if track.Duration > totalDuration {
		start := c.float64n(track.Duration - totalDuration)
		return []string{"-ss", formatSeconds(start), "-i", track.Path}
	}
	return []string{"-stream_loop", "-1", "-i", track.Path}
}

func (c *Compiler) buildGraph(p Params, timing Timing) string {
	n := len(p.ImagePaths)
	frames := int(math.Round(timing.ClipDuration * float64(c.fps)))

	var filters []string
	for i := 0; i < n; i++ {
		var b strings.Builder
		fmt.Fprintf(&b, "[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,",
			i, c.width, c.height, c.width, c.height)
		// d=1: emit one output frame per input frame; the looped input
		// already carries one frame per output frame at c.fps.
		fmt.Fprintf(&b, "zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d",
			c.zoomExpr(p.Zoom, frames), c.width, c.height, c.fps)
		if i == 0 && p.FadeToBlack {
			fmt.Fprintf(&b, ",fade=t=in:st=0:d=%s", formatSeconds(timing.FadeDuration))
		}
		fmt.Fprintf(&b, "[v%d]", i)
		filters = append(filters, b.String())
	}

	last := "[v0]"
	switch {
	case n > 1 && timing.Transition == 0:
		// xfade degenerates at duration 0; butt the clips together instead.
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "[v%d]", i)
		}
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[xc]", n)
		filters = append(filters, b.String())
		last = "[xc]"
	default:
		for i := 1; i < n; i++ {
			out := fmt.Sprintf("[x%d]", i)
			offset := timing.EffectiveClipDuration * float64(i)
			filters = append(filters, fmt.Sprintf("%s[v%d]xfade=transition=fade:duration=%s:offset=%s%s",
				last, i, formatSeconds(timing.Transition), formatSeconds(offset), out))
			last = out
		}
	}

	var final strings.Builder
	final.WriteString(last)
	if p.FadeToBlack {
		fmt.Fprintf(&final, "fade=t=out:st=%s:d=%s,",
			formatSeconds(timing.TotalDuration-timing.FadeDuration), formatSeconds(timing.FadeDuration))
	}
	final.WriteString("format=yuv420p[vout]")
	filters = append(filters, final.String())

	if p.Audio != nil {
		filters = append(filters, fmt.Sprintf(
			"[%d:a]atrim=0:%s,asetpts=PTS-STARTPTS,afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s[aout]",
			n,
			formatSeconds(timing.TotalDuration),
			formatSeconds(timing.FadeDuration),
			formatSeconds(timing.TotalDuration-timing.FadeDuration),
			formatSeconds(timing.FadeDuration),
		))
	}

	return strings.Join(filters, ";")
}

// zoomExpr interpolates the zoom factor linearly between 1.0 and 1.0+z
// over the clip's frame count; the direction is an unbiased coin flip
// per clip.
func (c *Compiler) zoomExpr(z float64, frames int) string {
	if c.coin() {
		// Zoom in: 1.0 -> 1.0+z.
		return fmt.Sprintf("min(1+%s*on/%d,%s)", formatZoom(z), frames, formatZoom(1+z))
	}
	// Zoom out: 1.0+z -> 1.0.
	return fmt.Sprintf("max(%s-%s*on/%d,1)", formatZoom(1+z), formatZoom(z), frames)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatZoom(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
