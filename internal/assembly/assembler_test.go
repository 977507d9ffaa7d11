package assembly

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mixdown/internal/config"
	"mixdown/internal/logging"
	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

// The stubbed toolchain encodes durations as file content: every audio
// file in a test holds a single decimal number of seconds. The ffprobe
// stub reports that number as the duration; the ffmpeg stub propagates it
// through each operation (copy for correction and encode, sum for concat,
// sum minus the fade for crossfades, first input for ducking, the -t value
// for silence and trims). Chapter accounting can then be asserted exactly.
const ffprobeStub = `#!/bin/sh
for arg; do last=$arg; done
d=$(head -n1 "$last" 2>/dev/null)
case "$d" in ''|*[!0-9.]*) exit 1 ;; esac
cat <<EOF
{"streams":[{"index":0,"codec_type":"audio","codec_name":"pcm_s16le","sample_rate":"44100","channels":2}],
 "format":{"duration":"$d","size":"4096","format_name":"wav"}}
EOF
`

const ffmpegStub = `#!/bin/sh
for arg; do last=$arg; done
prev=""
inputs=""
for arg; do
  if [ "$prev" = "-i" ]; then inputs="$inputs $arg"; fi
  prev=$arg
done
case "$*" in
*loudnorm*)
cat <<'EOF' >&2
[Parsed_loudnorm_0 @ 0x1]
{ "input_i" : "-24.50", "input_tp" : "-12.00", "input_lra" : "9.80", "input_thresh" : "-35.10", "target_offset" : "8.50" }
EOF
;;
*anullsrc*)
prev=""
t="0"
for arg; do
  if [ "$prev" = "-t" ]; then t=$arg; fi
  prev=$arg
done
printf '%s\n' "$t" > "$last"
;;
*acrossfade*)
d=$(printf '%s\n' "$*" | sed -n 's/.*acrossfade=d=\([0-9.]*\).*/\1/p')
awk -v d="$d" '{s+=$1} END{printf "%.3f\n", s-d}' $inputs > "$last"
;;
*concat=n*)
awk '{s+=$1} END{printf "%.3f\n", s}' $inputs > "$last"
;;
*" -t "*)
prev=""
t="0"
for arg; do
  if [ "$prev" = "-t" ]; then t=$arg; fi
  prev=$arg
done
printf '%s\n' "$t" > "$last"
;;
*amix*)
set -- $inputs
head -n1 "$1" > "$last"
;;
*)
set -- $inputs
cp "$1" "$last"
;;
esac
`

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s stub: %v", name, err)
	}
	return path
}

func writeAudio(t *testing.T, dir, name, seconds string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(seconds+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func engineConfig(t *testing.T) *config.Config {
	t.Helper()
	binDir := t.TempDir()
	cfg := config.Default()
	cfg.Toolchain.FFmpeg = writeStub(t, binDir, "ffmpeg", ffmpegStub)
	cfg.Toolchain.FFprobe = writeStub(t, binDir, "ffprobe", ffprobeStub)
	cfg.Paths.ScratchDir = t.TempDir()
	cfg.Assembly.CrossfadeSeconds = 0
	cfg.Assembly.SilenceFallbackSeconds = 1.5
	cfg.Normalization.Enabled = true
	cfg.Normalization.Workers = 2
	cfg.Output.Format = "mp3"
	cfg.Output.Bitrate = "128k"
	return &cfg
}

func assembleSections(t *testing.T, dir string) []Section {
	t.Helper()
	return []Section{
		{Type: SectionIntro, Title: "Welcome", Source: writeAudio(t, dir, "intro.wav", "10.0")},
		{Type: SectionTopic, Source: writeAudio(t, dir, "t1.wav", "20.0")},
		{Type: SectionTopic, Source: writeAudio(t, dir, "t2.wav", "15.0")},
		{Type: SectionSynthesis, Source: writeAudio(t, dir, "outro.wav", "8.0")},
	}
}

func TestAssembleFullEpisode(t *testing.T) {
	dir := t.TempDir()
	cfg := engineConfig(t)
	cfg.Music.IntroBed = writeAudio(t, dir, "bed-intro.wav", "3.0")
	cfg.Music.TransitionBed = writeAudio(t, dir, "bed-transition.wav", "4.0")
	cfg.Music.OutroBed = writeAudio(t, dir, "bed-outro.wav", "3.0")
	output := filepath.Join(dir, "episode.mp3")

	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	result, err := a.Assemble(context.Background(), Request{
		Title:      "Episode 1",
		Sections:   assembleSections(t, dir),
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if result.RunID == "" {
		t.Fatal("run id not assigned")
	}
	if len(result.Chapters) != 4 {
		t.Fatalf("chapter count %d, want 4", len(result.Chapters))
	}
	wantTitles := []string{"Welcome", "Topic 1", "Topic 2", "Synthesis"}
	for i, want := range wantTitles {
		if result.Chapters[i].Title != want {
			t.Fatalf("chapter %d title %q, want %q", i, result.Chapters[i].Title, want)
		}
	}

	// 10 + 4 + 20 + 4 + 15 + 4 + 8 = 65 seconds.
	if result.TotalDuration != 65*time.Second {
		t.Fatalf("total duration %v, want 65s", result.TotalDuration)
	}
	var accounted time.Duration
	for _, chapter := range result.Chapters {
		accounted += chapter.Duration
	}
	accounted += 3 * 4 * time.Second
	if delta := (result.TotalDuration - accounted).Seconds(); math.Abs(delta) > 0.01 {
		t.Fatalf("durations do not account for total: off by %vs", delta)
	}

	var prevEnd time.Duration
	for i, chapter := range result.Chapters {
		if chapter.Start < prevEnd {
			t.Fatalf("chapter %d overlaps previous (start %v, prev end %v)", i, chapter.Start, prevEnd)
		}
		prevEnd = chapter.Start + chapter.Duration
	}

	if result.IntroBed != cfg.Music.IntroBed || result.OutroBed != cfg.Music.OutroBed || result.TransitionBed != cfg.Music.TransitionBed {
		t.Fatalf("used assets not recorded: %+v", result)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("final artifact missing: %v", err)
	}
	entries, err := os.ReadDir(cfg.Paths.ScratchDir)
	if err != nil {
		t.Fatalf("read scratch root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch not cleaned up: %v", entries)
	}
}

func TestAssembleSilenceFallback(t *testing.T) {
	dir := t.TempDir()
	cfg := engineConfig(t)
	output := filepath.Join(dir, "episode.mp3")

	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	result, err := a.Assemble(context.Background(), Request{
		Sections:   assembleSections(t, dir),
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("assemble without beds: %v", err)
	}

	// 53s of sections plus three 1.5s silence gaps.
	want := 53*time.Second + 3*1500*time.Millisecond
	if result.TotalDuration != want {
		t.Fatalf("total duration %v, want %v", result.TotalDuration, want)
	}
	if result.TransitionBed != "" || result.IntroBed != "" || result.OutroBed != "" {
		t.Fatalf("no assets should be recorded: %+v", result)
	}
}

func TestAssembleTransitionTrim(t *testing.T) {
	dir := t.TempDir()
	cfg := engineConfig(t)
	cfg.Assembly.TransitionSeconds = 1.0
	cfg.Music.TransitionBed = writeAudio(t, dir, "bed-transition.wav", "4.0")
	output := filepath.Join(dir, "episode.mp3")

	sections := []Section{
		{Type: SectionTopic, Source: writeAudio(t, dir, "t1.wav", "10.0")},
		{Type: SectionTopic, Source: writeAudio(t, dir, "t2.wav", "20.0")},
	}
	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	result, err := a.Assemble(context.Background(), Request{
		Sections:   sections,
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	// The 4s bed is capped at the configured 1s, so the gap between
	// topics is 1s.
	if result.TotalDuration != 31*time.Second {
		t.Fatalf("total duration %v, want 31s", result.TotalDuration)
	}
	if result.Chapters[1].Start != 11*time.Second {
		t.Fatalf("second topic starts at %v, want 11s", result.Chapters[1].Start)
	}
}

func TestAssembleCrossfadeAccounting(t *testing.T) {
	dir := t.TempDir()
	cfg := engineConfig(t)
	cfg.Assembly.CrossfadeSeconds = 2.0
	cfg.Assembly.TransitionSeconds = 0
	cfg.Music.TransitionBed = writeAudio(t, dir, "bed-transition.wav", "6.0")
	output := filepath.Join(dir, "episode.mp3")

	sections := []Section{
		{Type: SectionTopic, Source: writeAudio(t, dir, "t1.wav", "10.0")},
		{Type: SectionTopic, Source: writeAudio(t, dir, "t2.wav", "20.0")},
	}
	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	result, err := a.Assemble(context.Background(), Request{
		Sections:   sections,
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("assemble with crossfades: %v", err)
	}

	// Both bed boundaries crossfade over 2s, so the 6s bed contributes
	// 6 - 2*2 = 2s between the topics: 10 + 2 + 20.
	if result.TotalDuration != 32*time.Second {
		t.Fatalf("total duration %v, want 32s", result.TotalDuration)
	}
	if result.Chapters[0].Duration != 10*time.Second || result.Chapters[1].Duration != 20*time.Second {
		t.Fatalf("crossfade overlap charged to a section: %+v", result.Chapters)
	}
	if result.Chapters[1].Start != 12*time.Second {
		t.Fatalf("second topic starts at %v, want 12s", result.Chapters[1].Start)
	}

	var accounted time.Duration
	for _, chapter := range result.Chapters {
		accounted += chapter.Duration
	}
	accounted += 2 * time.Second
	if delta := (result.TotalDuration - accounted).Seconds(); math.Abs(delta) > 0.01 {
		t.Fatalf("durations do not account for total: off by %vs", delta)
	}

	var prevEnd time.Duration
	for i, chapter := range result.Chapters {
		if chapter.Start < prevEnd {
			t.Fatalf("chapter %d overlaps previous (start %v, prev end %v)", i, chapter.Start, prevEnd)
		}
		prevEnd = chapter.Start + chapter.Duration
	}
}

func TestAssembleSingleSection(t *testing.T) {
	dir := t.TempDir()
	cfg := engineConfig(t)
	cfg.Normalization.Enabled = false
	source := writeAudio(t, dir, "solo.wav", "12.5")
	output := filepath.Join(dir, "episode.mp3")

	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	result, err := a.Assemble(context.Background(), Request{
		Sections:   []Section{{Type: SectionSynthesis, Source: source}},
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("assemble single section: %v", err)
	}
	if len(result.Chapters) != 1 || result.Chapters[0].Start != 0 {
		t.Fatalf("unexpected chapters %+v", result.Chapters)
	}

	// Pass-through plus copy concat degrade: the artifact carries the exact
	// source content.
	srcBytes, _ := os.ReadFile(source)
	outBytes, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(srcBytes) != string(outBytes) {
		t.Fatal("single-section assembly must preserve content byte for byte")
	}
}

func TestAssembleEmptySections(t *testing.T) {
	cfg := engineConfig(t)
	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	_, err := a.Assemble(context.Background(), Request{OutputPath: "out.mp3"})
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != StagePending {
		t.Fatalf("stage %v, want pending", stageErr.Stage)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("cause %v, want ErrValidation", err)
	}
}

func TestAssembleProbeFailureTagsStage(t *testing.T) {
	dir := t.TempDir()
	cfg := engineConfig(t)
	// A source whose content is not a duration makes the ffprobe stub exit
	// non-zero.
	source := filepath.Join(dir, "broken.wav")
	if err := os.WriteFile(source, []byte("not audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	_, err := a.Assemble(context.Background(), Request{
		Sections:   []Section{{Type: SectionTopic, Source: source}},
		OutputPath: filepath.Join(dir, "episode.mp3"),
	})
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != StageMeasuring {
		t.Fatalf("stage %v, want measuring", stageErr.Stage)
	}
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("cause %v, want ErrProbe", err)
	}

	entries, readErr := os.ReadDir(cfg.Paths.ScratchDir)
	if readErr != nil {
		t.Fatalf("read scratch root: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch not cleaned up after failure: %v", entries)
	}
}

func TestAssembleEncodeFailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := engineConfig(t)
	// Writing the final artifact fails; everything upstream succeeds.
	failingStub := ffmpegStub + "\ncase \"$last\" in *.mp3) rm -f \"$last\"; exit 1 ;; esac\n"
	cfg.Toolchain.FFmpeg = writeStub(t, t.TempDir(), "ffmpeg", failingStub)
	output := filepath.Join(dir, "episode.mp3")

	a := New(cfg, toolchain.NewRunner(nil), logging.NewNop())
	_, err := a.Assemble(context.Background(), Request{
		Sections:   assembleSections(t, dir),
		OutputPath: output,
	})
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != StageFinalizing {
		t.Fatalf("stage %v, want finalizing", stageErr.Stage)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("partial artifact left behind: %v", statErr)
	}
}
