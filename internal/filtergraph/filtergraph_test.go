package filtergraph

import (
	"errors"
	"strings"
	"testing"
)

func testParams(images int) Params {
	paths := make([]string, images)
	for i := range paths {
		paths[i] = "/tmp/work/img" + string(rune('a'+i)) + ".jpg"
	}
	return Params{
		ImagePaths:      paths,
		SecondsPerImage: 3,
		Transition:      1,
		Zoom:            0.2,
		OutputPath:      "/tmp/work/out.mp4",
	}
}

func countOccurrences(args []string, want string) int {
	n := 0
	for _, a := range args {
		n += strings.Count(a, want)
	}
	return n
}

func graphOf(t *testing.T, args []string) string {
	t.Helper()
	for i, a := range args {
		if a == "-filter_complex" {
			return args[i+1]
		}
	}
	t.Fatal("no -filter_complex in args")
	return ""
}

func TestCompile_Validation(t *testing.T) {
	c := NewCompiler()

	t.Run("no images", func(t *testing.T) {
		p := testParams(0)
		if _, _, err := c.Compile(p); !errors.Is(err, ErrNoImages) {
			t.Errorf("expected ErrNoImages, got %v", err)
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		p := testParams(2)
		p.SecondsPerImage = 0
		if _, _, err := c.Compile(p); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("expected ErrInvalidDuration, got %v", err)
		}
	})

	t.Run("bad zoom", func(t *testing.T) {
		for _, z := range []float64{0, -0.1, 0.31} {
			p := testParams(2)
			p.Zoom = z
			if _, _, err := c.Compile(p); !errors.Is(err, ErrInvalidZoom) {
				t.Errorf("zoom %v: expected ErrInvalidZoom, got %v", z, err)
			}
		}
	})

	t.Run("missing output", func(t *testing.T) {
		p := testParams(2)
		p.OutputPath = ""
		if _, _, err := c.Compile(p); !errors.Is(err, ErrOutputRequired) {
			t.Errorf("expected ErrOutputRequired, got %v", err)
		}
	})
}

func TestCompile_SilentVideo(t *testing.T) {
	c := NewCompiler(WithCoin(func() bool { return true }))
	args, timing, err := c.Compile(testParams(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if args[0] != "-y" {
		t.Errorf("first arg = %s, want -y", args[0])
	}
	if got := countOccurrences(args, "-i"); got < 3 {
		t.Errorf("expected 3 image inputs, got %d -i flags", got)
	}

	graph := graphOf(t, args)
	if got := strings.Count(graph, "zoompan"); got != 3 {
		t.Errorf("zoompan count = %d, want 3", got)
	}
	if got := strings.Count(graph, "xfade"); got != 2 {
		t.Errorf("xfade count = %d, want 2", got)
	}
	if !strings.Contains(graph, "format=yuv420p[vout]") {
		t.Errorf("graph missing final pixel format stage: %s", graph)
	}
	if strings.Contains(graph, "[aout]") {
		t.Error("silent render must not build an audio chain")
	}

	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-c:a") {
		t.Error("silent render must not set an audio codec")
	}
	for _, want := range []string{"-map [vout]", "-c:v libx264", "-shortest", "-movflags +faststart"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if timing.TotalDuration != 7 {
		t.Errorf("TotalDuration = %v, want 7", timing.TotalDuration)
	}

	// Crossfade offsets: effective duration is 2s, so offsets 2 and 4.
	if !strings.Contains(graph, "offset=2.000") || !strings.Contains(graph, "offset=4.000") {
		t.Errorf("unexpected xfade offsets in graph: %s", graph)
	}
}

func TestCompile_SingleClip(t *testing.T) {
	c := NewCompiler()
	args, timing, err := c.Compile(testParams(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	graph := graphOf(t, args)
	if strings.Contains(graph, "xfade") {
		t.Error("single clip must not crossfade")
	}
	if timing.TotalDuration != 3 {
		t.Errorf("TotalDuration = %v, want 3", timing.TotalDuration)
	}
}

func TestCompile_FadeToBlack(t *testing.T) {
	c := NewCompiler()
	p := testParams(2)
	p.FadeToBlack = true

	args, timing, err := c.Compile(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	graph := graphOf(t, args)
	if !strings.Contains(graph, "fade=t=in:st=0") {
		t.Errorf("graph missing opening fade: %s", graph)
	}
	wantOut := "fade=t=out:st=" + formatSeconds(timing.TotalDuration-timing.FadeDuration)
	if !strings.Contains(graph, wantOut) {
		t.Errorf("graph missing closing fade %q: %s", wantOut, graph)
	}
}

func TestCompile_ZoomDirection(t *testing.T) {
	t.Run("zoom in", func(t *testing.T) {
		c := NewCompiler(WithCoin(func() bool { return true }))
		args, _, err := c.Compile(testParams(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		graph := graphOf(t, args)
		if !strings.Contains(graph, "min(1+0.2000*on/90,1.2000)") {
			t.Errorf("unexpected zoom-in expression: %s", graph)
		}
	})

	t.Run("zoom out", func(t *testing.T) {
		c := NewCompiler(WithCoin(func() bool { return false }))
		args, _, err := c.Compile(testParams(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		graph := graphOf(t, args)
		if !strings.Contains(graph, "max(1.2000-0.2000*on/90,1)") {
			t.Errorf("unexpected zoom-out expression: %s", graph)
		}
	})

	t.Run("per clip flip", func(t *testing.T) {
		flips := 0
		c := NewCompiler(WithCoin(func() bool {
			flips++
			return flips%2 == 0
		}))
		args, _, err := c.Compile(testParams(4))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if flips != 4 {
			t.Errorf("coin flipped %d times, want once per clip", flips)
		}
		graph := graphOf(t, args)
		if !strings.Contains(graph, "min(") || !strings.Contains(graph, "max(") {
			t.Errorf("expected both zoom directions in graph: %s", graph)
		}
	})
}

func TestCompile_Audio(t *testing.T) {
	t.Run("long track seeks to a random offset", func(t *testing.T) {
		c := NewCompiler(WithFloat64n(func(n float64) float64 { return n / 2 }))
		p := testParams(3) // total 7s
		p.Audio = &AudioTrack{Path: "/audio/bed.mp3", Duration: 60}

		args, _, err := c.Compile(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		joined := strings.Join(args, " ")
		// (60-7)/2 = 26.5
		if !strings.Contains(joined, "-ss 26.500 -i /audio/bed.mp3") {
			t.Errorf("missing seeked audio input: %s", joined)
		}
		graph := graphOf(t, args)
		if !strings.Contains(graph, "[3:a]atrim=0:7.000,asetpts=PTS-STARTPTS") {
			t.Errorf("unexpected audio chain: %s", graph)
		}
		if strings.Count(graph, "afade") != 2 {
			t.Errorf("expected audio fade in and out: %s", graph)
		}
		for _, want := range []string{"-map [aout]", "-c:a aac", "-b:a 192k"} {
			if !strings.Contains(joined, want) {
				t.Errorf("args missing %q", want)
			}
		}
	})

	t.Run("short track loops from the start", func(t *testing.T) {
		c := NewCompiler()
		p := testParams(3)
		p.Audio = &AudioTrack{Path: "/audio/bed.mp3", Duration: 4}

		args, _, err := c.Compile(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-stream_loop -1 -i /audio/bed.mp3") {
			t.Errorf("missing looped audio input: %s", joined)
		}
		if strings.Contains(joined, "-ss") {
			t.Errorf("looped track must not seek: %s", joined)
		}
	})
}

func TestCompile_InputFrameSupply(t *testing.T) {
	c := NewCompiler(WithCoin(func() bool { return true }))
	args, _, err := c.Compile(testParams(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(args, " ")
	// Each still must be fed at the output frame rate so a 3s clip
	// supplies exactly 90 frames.
	if got := strings.Count(joined, "-framerate 30 -loop 1 -t 3.000 -i"); got != 2 {
		t.Errorf("expected 2 rate-pinned image inputs, got %d: %s", got, joined)
	}

	graph := graphOf(t, args)
	// zoompan must hold each input frame for exactly one output frame,
	// otherwise every clip is stretched by its own frame count.
	if got := strings.Count(graph, ":d=1:"); got != 2 {
		t.Errorf("expected d=1 on both zoompan stages, got %d: %s", got, graph)
	}
	if strings.Contains(graph, ":d=90:") {
		t.Errorf("zoompan must not hold frames for the whole clip: %s", graph)
	}
}

func TestCompile_NoTransition(t *testing.T) {
	c := NewCompiler()
	p := testParams(3)
	p.Transition = 0

	args, timing, err := c.Compile(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if timing.TotalDuration != 9 {
		t.Errorf("TotalDuration = %v, want 9", timing.TotalDuration)
	}

	graph := graphOf(t, args)
	if strings.Contains(graph, "xfade") {
		t.Errorf("zero transition must not crossfade: %s", graph)
	}
	if !strings.Contains(graph, "concat=n=3:v=1:a=0") {
		t.Errorf("zero transition must concatenate clips: %s", graph)
	}
}
