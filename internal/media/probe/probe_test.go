package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", CodecName: "mp3", SampleRate: "44100", Channels: 2},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	stream, ok := result.FirstAudioStream()
	if !ok || stream.CodecName != "mp3" {
		t.Fatalf("unexpected first audio stream: %+v ok=%v", stream, ok)
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{Duration: "bad", Size: "-1", BitRate: "nope"},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

// stubProber writes a fake ffprobe that emits the given JSON payload.
func stubProber(t *testing.T, payload string, exitCode int) *Prober {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\ncat <<'EOF'\n" + payload + "\nEOF\n"
	if exitCode != 0 {
		script = "#!/bin/sh\necho probe exploded 1>&2\nexit 1\n"
	}
	bin := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return New(toolchain.NewRunner(nil), bin, 5*time.Second)
}

func TestProbeSummarizesAudio(t *testing.T) {
	payload := `{
  "streams": [
    {"index": 0, "codec_name": "pcm_s16le", "codec_type": "audio", "sample_rate": "44100", "channels": 2}
  ],
  "format": {"filename": "x.wav", "nb_streams": 1, "duration": "12.500000", "size": "2205044", "bit_rate": "1411200", "format_name": "wav"}
}`
	prober := stubProber(t, payload, 0)
	info, err := prober.Probe(context.Background(), "x.wav")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.DurationSeconds != 12.5 {
		t.Fatalf("unexpected duration %v", info.DurationSeconds)
	}
	if info.SampleRate != 44100 || info.Channels != 2 {
		t.Fatalf("unexpected audio params: %+v", info)
	}
	if info.Codec != "pcm_s16le" || info.FormatName != "wav" {
		t.Fatalf("unexpected codec info: %+v", info)
	}
	if info.SizeBytes != 2205044 {
		t.Fatalf("unexpected size: %d", info.SizeBytes)
	}
}

func TestProbeNoAudioStream(t *testing.T) {
	payload := `{"streams": [{"index": 0, "codec_type": "video"}], "format": {"duration": "1.0"}}`
	prober := stubProber(t, payload, 0)
	_, err := prober.Probe(context.Background(), "video.mkv")
	if !errors.Is(err, services.ErrNoAudioStream) {
		t.Fatalf("expected ErrNoAudioStream, got %v", err)
	}
}

func TestProbeToolFailure(t *testing.T) {
	prober := stubProber(t, "", 1)
	_, err := prober.Probe(context.Background(), "broken.wav")
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
}

func TestProbeUnparseableOutput(t *testing.T) {
	prober := stubProber(t, "this is not json", 0)
	_, err := prober.Probe(context.Background(), "noise.wav")
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected ErrProbe for bad JSON, got %v", err)
	}
}

func TestProbeEmptyPath(t *testing.T) {
	prober := New(toolchain.NewRunner(nil), "ffprobe", time.Second)
	_, err := prober.Probe(context.Background(), "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
