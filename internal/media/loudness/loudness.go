package loudness

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

// Measurement is the result of a single-pass EBU R128 loudness scan.
type Measurement struct {
	// IntegratedLUFS is the gated integrated loudness of the whole element.
	IntegratedLUFS float64
	// TruePeakDB is the reconstructed inter-sample peak.
	TruePeakDB float64
	// RangeLU is the loudness range.
	RangeLU float64
	// ThresholdLUFS is the gating threshold used for the integrated measurement.
	ThresholdLUFS float64
	// TargetOffsetLU is the gain that would bring the element to the target
	// the scan was run against.
	TargetOffsetLU float64
}

// rawStats mirrors the loudnorm filter's JSON payload. All values arrive as
// strings, including "-inf" for digital silence.
type rawStats struct {
	InputI       *string `json:"input_i"`
	InputTP      *string `json:"input_tp"`
	InputLRA     *string `json:"input_lra"`
	InputThresh  *string `json:"input_thresh"`
	TargetOffset *string `json:"target_offset"`
}

// maxGainDB caps the correction applied to near-silent sources so a broken
// input cannot be amplified into full-scale noise.
const maxGainDB = 40.0

// Analyzer runs the loudnorm analysis pass through ffmpeg.
type Analyzer struct {
	runner  *toolchain.Runner
	binary  string
	timeout time.Duration
}

// NewAnalyzer constructs an Analyzer for the given ffmpeg binary.
func NewAnalyzer(runner *toolchain.Runner, binary string, timeout time.Duration) *Analyzer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Analyzer{runner: runner, binary: binary, timeout: timeout}
}

// Measure scans the file against the given target and returns the parsed
// loudness statistics. The statistics block is extracted from ffmpeg's
// diagnostic stderr, which also carries unrelated log noise.
func (a *Analyzer) Measure(ctx context.Context, path string, targetLUFS, maxTruePeakDB float64) (Measurement, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Measurement{}, services.Wrap(services.ErrValidation, "", "measure", "empty path", nil)
	}

	filter := fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=11:print_format=json",
		formatDB(targetLUFS), formatDB(maxTruePeakDB))
	result, err := a.runner.Run(ctx, toolchain.Command{
		Binary:  a.binary,
		Args:    []string{"-hide_banner", "-nostats", "-i", path, "-af", filter, "-f", "null", "-"},
		Timeout: a.timeout,
	})
	if err != nil {
		return Measurement{}, services.Wrap(services.ErrLoudnessParse, "", "measure", path, err)
	}

	measurement, err := ParseStats(result.Stderr)
	if err != nil {
		return Measurement{}, services.Wrap(services.ErrLoudnessParse, "", "measure", path, err)
	}
	return measurement, nil
}

// ParseStats locates the loudnorm JSON block inside diagnostic output and
// converts it. A block missing any required field is invalid.
func ParseStats(diagnostic string) (Measurement, error) {
	block, err := extractStatsBlock(diagnostic)
	if err != nil {
		return Measurement{}, err
	}

	var raw rawStats
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return Measurement{}, fmt.Errorf("decode stats block: %w", err)
	}

	fields := map[string]*string{
		"input_i":       raw.InputI,
		"input_tp":      raw.InputTP,
		"input_lra":     raw.InputLRA,
		"input_thresh":  raw.InputThresh,
		"target_offset": raw.TargetOffset,
	}
	values := make(map[string]float64, len(fields))
	for name, ptr := range fields {
		if ptr == nil {
			return Measurement{}, fmt.Errorf("stats block missing %s", name)
		}
		value, err := parseLoudnessValue(*ptr)
		if err != nil {
			return Measurement{}, fmt.Errorf("stats field %s: %w", name, err)
		}
		values[name] = value
	}

	return Measurement{
		IntegratedLUFS: values["input_i"],
		TruePeakDB:     values["input_tp"],
		RangeLU:        values["input_lra"],
		ThresholdLUFS:  values["input_thresh"],
		TargetOffsetLU: values["target_offset"],
	}, nil
}

// extractStatsBlock finds the last JSON object containing an input_i key.
// loudnorm prints its payload among arbitrary demuxer/filter log lines, so
// the scan anchors on the field name rather than assuming clean output.
func extractStatsBlock(diagnostic string) (string, error) {
	anchor := strings.LastIndex(diagnostic, `"input_i"`)
	if anchor < 0 {
		return "", fmt.Errorf("no loudness statistics block found in %d bytes of output", len(diagnostic))
	}
	start := strings.LastIndex(diagnostic[:anchor], "{")
	if start < 0 {
		return "", fmt.Errorf("statistics block has no opening brace")
	}
	end := strings.Index(diagnostic[anchor:], "}")
	if end < 0 {
		return "", fmt.Errorf("statistics block has no closing brace")
	}
	return diagnostic[start : anchor+end+1], nil
}

func parseLoudnessValue(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	switch strings.ToLower(cleaned) {
	case "-inf":
		return math.Inf(-1), nil
	case "inf", "+inf":
		return math.Inf(1), nil
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", value, err)
	}
	return parsed, nil
}

// Gain is the correction computed from a measurement for the second pass.
type Gain struct {
	// DB is the volume correction to apply.
	DB float64
	// Clamped reports that the full offset would have pushed the true peak
	// above the ceiling and was reduced; the loudness target is then missed
	// in favor of peak safety.
	Clamped bool
}

// ComputeGain derives the second-pass gain from a measurement. The offset to
// the target is applied in full unless the projected true peak would exceed
// maxTruePeakDB, in which case the gain is clamped to the peak-limited value.
func ComputeGain(m Measurement, targetLUFS, maxTruePeakDB float64) Gain {
	offset := targetLUFS - m.IntegratedLUFS
	if math.IsInf(offset, 1) || offset > maxGainDB {
		offset = maxGainDB
	}
	if math.IsInf(offset, -1) {
		offset = -maxGainDB
	}

	projectedPeak := m.TruePeakDB + offset
	if projectedPeak > maxTruePeakDB && !math.IsInf(m.TruePeakDB, -1) {
		return Gain{DB: maxTruePeakDB - m.TruePeakDB, Clamped: true}
	}
	return Gain{DB: offset}
}

// formatDB renders a dB/LUFS value the way ffmpeg filter args expect.
func formatDB(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
