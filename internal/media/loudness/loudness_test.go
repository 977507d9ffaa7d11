package loudness

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

const statsPayload = `{
	"input_i" : "-24.50",
	"input_tp" : "-6.30",
	"input_lra" : "9.80",
	"input_thresh" : "-35.10",
	"output_i" : "-16.20",
	"output_tp" : "-1.90",
	"output_lra" : "7.40",
	"output_thresh" : "-26.80",
	"normalization_type" : "dynamic",
	"target_offset" : "8.50"
}`

func noisyDiagnostic() string {
	return strings.Join([]string{
		"Input #0, wav, from 'section.wav':",
		"  Duration: 00:02:03.40, bitrate: 1411 kb/s",
		"[Parsed_loudnorm_0 @ 0x5596c] ",
		statsPayload,
		"[out#0/null @ 0x5596d] video:0KiB audio:21268KiB",
		"size=N/A time=00:02:03.40 bitrate=N/A speed= 412x",
	}, "\n")
}

func TestParseStatsFromNoisyOutput(t *testing.T) {
	m, err := ParseStats(noisyDiagnostic())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.IntegratedLUFS != -24.5 {
		t.Fatalf("unexpected integrated loudness %v", m.IntegratedLUFS)
	}
	if m.TruePeakDB != -6.3 {
		t.Fatalf("unexpected true peak %v", m.TruePeakDB)
	}
	if m.RangeLU != 9.8 {
		t.Fatalf("unexpected range %v", m.RangeLU)
	}
	if m.ThresholdLUFS != -35.1 {
		t.Fatalf("unexpected threshold %v", m.ThresholdLUFS)
	}
	if m.TargetOffsetLU != 8.5 {
		t.Fatalf("unexpected offset %v", m.TargetOffsetLU)
	}
}

func TestParseStatsPicksLastBlock(t *testing.T) {
	older := strings.ReplaceAll(statsPayload, "-24.50", "-40.00")
	diagnostic := older + "\nmore noise\n" + statsPayload
	m, err := ParseStats(diagnostic)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.IntegratedLUFS != -24.5 {
		t.Fatalf("expected last block to win, got %v", m.IntegratedLUFS)
	}
}

func TestParseStatsMissingField(t *testing.T) {
	incomplete := strings.Replace(statsPayload, `"input_tp" : "-6.30",`, "", 1)
	if _, err := ParseStats(incomplete); err == nil {
		t.Fatal("expected error for missing input_tp")
	} else if !strings.Contains(err.Error(), "input_tp") {
		t.Fatalf("expected field name in error, got %v", err)
	}
}

func TestParseStatsNoBlock(t *testing.T) {
	if _, err := ParseStats("just ffmpeg noise, no json at all"); err == nil {
		t.Fatal("expected error when no stats block present")
	}
}

func TestParseStatsInfinity(t *testing.T) {
	silent := strings.ReplaceAll(statsPayload, "-24.50", "-inf")
	m, err := ParseStats(silent)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !math.IsInf(m.IntegratedLUFS, -1) {
		t.Fatalf("expected -inf integrated loudness, got %v", m.IntegratedLUFS)
	}
}

func TestComputeGainOffset(t *testing.T) {
	m := Measurement{IntegratedLUFS: -24.5, TruePeakDB: -12.0}
	gain := ComputeGain(m, -16.0, -1.0)
	if gain.Clamped {
		t.Fatal("gain should not be clamped with 12 dB of headroom")
	}
	if gain.DB != 8.5 {
		t.Fatalf("expected 8.5 LU offset, got %v", gain.DB)
	}
}

func TestComputeGainTruePeakClamp(t *testing.T) {
	// Full offset of +8.5 would push the -3 dB peak to +5.5 dB.
	m := Measurement{IntegratedLUFS: -24.5, TruePeakDB: -3.0}
	gain := ComputeGain(m, -16.0, -1.0)
	if !gain.Clamped {
		t.Fatal("expected clamp activation")
	}
	if gain.DB != 2.0 {
		t.Fatalf("expected peak-limited gain 2.0 dB, got %v", gain.DB)
	}
	// The loudness target is deliberately missed: -24.5 + 2.0 = -22.5 LUFS.
	if got := m.IntegratedLUFS + gain.DB; got == -16.0 {
		t.Fatal("clamped gain must not hit the loudness target exactly")
	}
}

func TestComputeGainCapsSilence(t *testing.T) {
	m := Measurement{IntegratedLUFS: math.Inf(-1), TruePeakDB: math.Inf(-1)}
	gain := ComputeGain(m, -16.0, -1.0)
	if gain.DB != maxGainDB {
		t.Fatalf("expected silence gain capped at %v, got %v", maxGainDB, gain.DB)
	}
}

func TestComputeGainNegativeOffset(t *testing.T) {
	m := Measurement{IntegratedLUFS: -10.0, TruePeakDB: -0.5}
	gain := ComputeGain(m, -16.0, -1.0)
	if gain.Clamped {
		t.Fatal("attenuation never needs a peak clamp")
	}
	if gain.DB != -6.0 {
		t.Fatalf("expected -6 dB attenuation, got %v", gain.DB)
	}
}

func TestMeasureViaStubbedFFmpeg(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\ncat <<'EOF' 1>&2\n" + noisyDiagnostic() + "\nEOF\n"
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	analyzer := NewAnalyzer(toolchain.NewRunner(nil), bin, 5*time.Second)
	m, err := analyzer.Measure(context.Background(), "section.wav", -16.0, -1.0)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if m.IntegratedLUFS != -24.5 {
		t.Fatalf("unexpected measurement %+v", m)
	}
}

func TestMeasureToolFailure(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	analyzer := NewAnalyzer(toolchain.NewRunner(nil), bin, 5*time.Second)
	_, err := analyzer.Measure(context.Background(), "section.wav", -16.0, -1.0)
	if !errors.Is(err, services.ErrLoudnessParse) {
		t.Fatalf("expected ErrLoudnessParse, got %v", err)
	}
}
