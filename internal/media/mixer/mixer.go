package mixer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

// Mixer renders the ffmpeg filtergraphs used for episode assembly:
// crossfades between adjacent segments, ducked music beds under voice,
// and silence fills when no bed is configured. All intermediates are
// written as PCM WAV so the only lossy encode happens at finalization.
type Mixer struct {
	runner     *toolchain.Runner
	binary     string
	timeout    time.Duration
	sampleRate int
	channels   int
}

// New constructs a Mixer that invokes the given ffmpeg binary.
func New(runner *toolchain.Runner, binary string, timeout time.Duration, sampleRate, channels int) *Mixer {
	return &Mixer{
		runner:     runner,
		binary:     binary,
		timeout:    timeout,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Track is one input to Mix: an audio file laid onto the output timeline
// at Delay with a linear gain applied.
type Track struct {
	Path   string
	Volume float64
	Delay  time.Duration
}

// DuckSpec positions a music bed under a voice program. The bed starts at
// Offset on the program timeline, plays at Volume, and fades in and out
// over Fade. BedDuration is the measured length of the bed file and anchors
// the fade-out.
type DuckSpec struct {
	Offset      time.Duration
	Volume      float64
	Fade        time.Duration
	BedDuration time.Duration
}

// Crossfade joins a into b with a triangular crossfade of the given
// duration. A non-positive duration degrades to a hard concat.
func (m *Mixer) Crossfade(ctx context.Context, aPath, bPath string, duration time.Duration, outPath string) error {
	if duration <= 0 {
		return m.Concat(ctx, []string{aPath, bPath}, outPath)
	}
	filter := CrossfadeFilter(duration)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", aPath,
		"-i", bPath,
		"-filter_complex", filter,
		"-map", "[out]",
	}
	args = append(args, m.wavOutputArgs(outPath)...)
	return m.run(ctx, "crossfade", args)
}

// Concat hard-joins the inputs in order with the concat filter, resampling
// each to the working format first so mismatched sources cannot poison the
// joined stream.
func (m *Mixer) Concat(ctx context.Context, inputs []string, outPath string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrConcatenation, "", "concat", "no inputs", nil)
	}
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, input := range inputs {
		args = append(args, "-i", input)
	}
	args = append(args,
		"-filter_complex", ConcatFilter(len(inputs), m.sampleRate, m.channels),
		"-map", "[out]",
	)
	args = append(args, m.wavOutputArgs(outPath)...)
	return m.run(ctx, "concat", args)
}

// Duck overlays a music bed under the voice program per spec. The output
// keeps the program's duration; bed audio past the end of the program is
// dropped by amix.
func (m *Mixer) Duck(ctx context.Context, voicePath, bedPath string, spec DuckSpec, outPath string) error {
	if spec.Volume <= 0 {
		return services.Wrap(services.ErrMix, "", "duck", "duck volume must be positive", nil)
	}
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", voicePath,
		"-i", bedPath,
		"-filter_complex", DuckFilter(spec),
		"-map", "[out]",
	}
	args = append(args, m.wavOutputArgs(outPath)...)
	return m.run(ctx, "duck", args)
}

// Mix lays the tracks onto a shared timeline and sums them. The output runs
// until the longest delayed track ends.
func (m *Mixer) Mix(ctx context.Context, tracks []Track, outPath string) error {
	if len(tracks) == 0 {
		return services.Wrap(services.ErrMix, "", "mix", "no tracks", nil)
	}
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, track := range tracks {
		args = append(args, "-i", track.Path)
	}
	args = append(args,
		"-filter_complex", MixFilter(tracks),
		"-map", "[out]",
	)
	args = append(args, m.wavOutputArgs(outPath)...)
	return m.run(ctx, "mix", args)
}

// Trim re-renders the input cut to at most limit in the working format.
// Assembly uses it to cap the transition bed at its configured length.
func (m *Mixer) Trim(ctx context.Context, inPath string, limit time.Duration, outPath string) error {
	if limit <= 0 {
		return services.Wrap(services.ErrMix, "", "trim", "limit must be positive", nil)
	}
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", inPath,
		"-t", formatSeconds(limit),
	}
	args = append(args, m.wavOutputArgs(outPath)...)
	return m.run(ctx, "trim", args)
}

// Silence renders a stretch of digital silence in the working format.
// Assembly uses it as the transition fallback when no bed is configured.
func (m *Mixer) Silence(ctx context.Context, duration time.Duration, outPath string) error {
	if duration <= 0 {
		return services.Wrap(services.ErrMix, "", "silence", "duration must be positive", nil)
	}
	source := fmt.Sprintf("anullsrc=r=%d:cl=%s", m.sampleRate, channelLayout(m.channels))
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "lavfi",
		"-i", source,
		"-t", formatSeconds(duration),
	}
	args = append(args, m.wavOutputArgs(outPath)...)
	return m.run(ctx, "silence", args)
}

func (m *Mixer) run(ctx context.Context, operation string, args []string) error {
	_, err := m.runner.Run(ctx, toolchain.Command{
		Binary:  m.binary,
		Args:    args,
		Timeout: m.timeout,
	})
	if err != nil {
		return services.Wrap(services.ErrMix, "", operation, "ffmpeg invocation failed", err)
	}
	return nil
}

func (m *Mixer) wavOutputArgs(outPath string) []string {
	return []string{
		"-ar", strconv.Itoa(m.sampleRate),
		"-ac", strconv.Itoa(m.channels),
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// CrossfadeFilter builds the acrossfade graph joining two inputs.
func CrossfadeFilter(duration time.Duration) string {
	return fmt.Sprintf("[0:a][1:a]acrossfade=d=%s:c1=tri:c2=tri[out]", formatSeconds(duration))
}

// ConcatFilter builds a concat graph that resamples every input to the
// working rate and layout before joining.
func ConcatFilter(inputs, sampleRate, channels int) string {
	var b strings.Builder
	for i := 0; i < inputs; i++ {
		fmt.Fprintf(&b, "[%d:a]aresample=%d,aformat=channel_layouts=%s[s%d];",
			i, sampleRate, channelLayout(channels), i)
	}
	for i := 0; i < inputs; i++ {
		fmt.Fprintf(&b, "[s%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[out]", inputs)
	return b.String()
}

// DuckFilter builds the bed-under-voice graph. The bed is delayed onto the
// program timeline, attenuated to the duck level, faded at both ends, and
// summed with the voice. duration=first pins the output to the program
// length.
func DuckFilter(spec DuckSpec) string {
	delayMS := spec.Offset.Milliseconds()
	fadeOutStart := spec.Offset + spec.BedDuration - spec.Fade
	if fadeOutStart < spec.Offset {
		fadeOutStart = spec.Offset
	}
	return fmt.Sprintf(
		"[1:a]adelay=%d:all=1,volume=%s,afade=t=in:st=%s:d=%s,afade=t=out:st=%s:d=%s[bed];"+
			"[0:a][bed]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[out]",
		delayMS,
		formatVolume(spec.Volume),
		formatSeconds(spec.Offset), formatSeconds(spec.Fade),
		formatSeconds(fadeOutStart), formatSeconds(spec.Fade),
	)
}

// MixFilter builds the general timeline-sum graph used by Mix.
func MixFilter(tracks []Track) string {
	var b strings.Builder
	for i, track := range tracks {
		fmt.Fprintf(&b, "[%d:a]adelay=%d:all=1,volume=%s[t%d];",
			i, track.Delay.Milliseconds(), formatVolume(track.Volume), i)
	}
	for i := range tracks {
		fmt.Fprintf(&b, "[t%d]", i)
	}
	fmt.Fprintf(&b, "amix=inputs=%d:duration=longest:dropout_transition=0:normalize=0[out]", len(tracks))
	return b.String()
}

func channelLayout(channels int) string {
	if channels == 1 {
		return "mono"
	}
	return "stereo"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func formatVolume(volume float64) string {
	return strconv.FormatFloat(volume, 'f', -1, 64)
}
