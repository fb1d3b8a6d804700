package filtergraph

import "math"

// maxTransition caps the crossfade duration in seconds.
const maxTransition = 2.0

// Timing holds the resolved per-clip and whole-timeline durations for a
// compilation.
type Timing struct {
	// ClipDuration is the seconds each image is shown (D).
	ClipDuration float64
	// Transition is the clamped crossfade duration (T).
	Transition float64
	// EffectiveClipDuration is D - T: how much timeline each clip after
	// the first actually adds, since consecutive clips overlap by T.
	EffectiveClipDuration float64
	// TotalDuration is D + (D-T)*(n-1) for n clips.
	TotalDuration float64
	// FadeDuration is the fade-in/out length used for black fades and
	// audio fades.
	FadeDuration float64
}

// ComputeTiming resolves the requested transition against the clip
// duration. The transition is clamped into [0, min(2, D)]; the fade
// duration is the transition (0.5s when there is no transition) clamped
// into [0.1, D/2].
func ComputeTiming(clipCount int, secondsPerImage, requestedTransition float64) Timing {
	d := secondsPerImage

	t := math.Min(maxTransition, math.Min(d, requestedTransition))
	t = math.Min(math.Max(0, t), d)

	fade := t
	if fade == 0 {
		fade = 0.5
	}
	fade = clamp(fade, 0.1, d/2)

	effective := d - t
	total := d
	if clipCount > 1 {
		total = d + effective*float64(clipCount-1)
	}

	return Timing{
		ClipDuration:          d,
		Transition:            t,
		EffectiveClipDuration: effective,
		TotalDuration:         total,
		FadeDuration:          fade,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
