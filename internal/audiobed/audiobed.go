// Package audiobed selects a random background audio track for a reel
// from a flat directory of audio files.
package audiobed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/clipforge-api/internal/filtergraph"
)

// DefaultExtension is the audio file extension scanned for.
const DefaultExtension = ".mp3"

// DurationProber reports a media file's duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Picker chooses a random audio bed from a directory.
type Picker struct {
	dir    string
	ext    string
	prober DurationProber
	intn   func(n int) int
}

// PickerOption configures a Picker.
type PickerOption func(*Picker)

// WithExtension overrides the scanned file extension.
func WithExtension(ext string) PickerOption {
	return func(p *Picker) {
		p.ext = ext
	}
}

// WithIntn replaces the uniform random source. Used by tests.
func WithIntn(intn func(int) int) PickerOption {
	return func(p *Picker) {
		p.intn = intn
	}
}

// NewPicker creates a Picker over the given directory.
func NewPicker(dir string, prober DurationProber, opts ...PickerOption) *Picker {
	p := &Picker{
		dir:    dir,
		ext:    DefaultExtension,
		prober: prober,
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pick returns a random track with its probed duration, or nil when the
// directory is absent or holds no matching files. A missing audio bed is
// not an error; the reel renders silent.
func (p *Picker) Pick(ctx context.Context) (*filtergraph.AudioTrack, error) {
	tracks, err := p.list()
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, nil
	}

	path := tracks[p.intn(len(tracks))]
	duration, err := p.prober.ProbeDuration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("audiobed: probe %s: %w", filepath.Base(path), err)
	}

	return &filtergraph.AudioTrack{Path: path, Duration: duration}, nil
}

// list scans the directory non-recursively for matching files.
func (p *Picker) list() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audiobed: read dir: %w", err)
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), p.ext) {
			tracks = append(tracks, filepath.Join(p.dir, e.Name()))
		}
	}
	return tracks, nil
}
