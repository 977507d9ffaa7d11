package assembly

import (
	"context"
	"math"
	"os"
	"time"

	"mixdown/internal/logging"
	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

// complianceSlackDB absorbs encoder rounding before a true-peak overshoot
// is reported as an alert.
const complianceSlackDB = 0.1

// finalize encodes the mixed program to the caller's output path, then
// re-probes and re-measures the artifact for the authoritative duration,
// size and loudness figures. A failed encode removes the partial file so
// no corrupt artifact survives the run.
func (a *Assembler) finalize(ctx context.Context, run *runState) error {
	output := run.request.OutputPath
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", run.program}
	args = append(args, EncodeArgs(a.cfg.Output.Format, a.cfg.Output.Bitrate)...)
	args = append(args, output)

	_, err := a.runner.Run(ctx, toolchain.Command{
		Binary:  a.cfg.Toolchain.FFmpeg,
		Args:    args,
		Timeout: time.Duration(a.cfg.Toolchain.EncodeTimeoutSeconds) * time.Second,
	})
	if err != nil {
		if removeErr := os.Remove(output); removeErr != nil && !os.IsNotExist(removeErr) {
			logging.WithContext(ctx, a.logger).Warn("failed to remove partial artifact",
				logging.String("path", output),
				logging.Error(removeErr),
			)
		}
		return services.Wrap(services.ErrExternalTool, "", "encode", output, err)
	}

	info, err := a.prober.Probe(ctx, output)
	if err != nil {
		return err
	}
	run.result.TotalDuration = secondsToDuration(info.DurationSeconds)
	run.result.FileSizeBytes = info.SizeBytes
	run.result.Chapters = run.chapters
	if run.introBed != nil {
		run.result.IntroBed = run.introBed.source
	}
	if run.transition != nil {
		run.result.TransitionBed = run.transition.source
	}
	if run.outroBed != nil {
		run.result.OutroBed = run.outroBed.source
	}

	measurement, err := a.analyzer.Measure(ctx, output,
		a.cfg.Normalization.VoiceTargetLUFS, a.cfg.Normalization.MaxTruePeakDB)
	if err != nil {
		return err
	}
	run.result.FinalLoudness = measurement
	a.reportCompliance(ctx, run)
	return nil
}

// reportCompliance logs how the finished artifact sits against the
// loudness target and peak ceiling. Deviation is reported, never fatal:
// clamped elements and music beds legitimately pull the program off the
// voice target.
func (a *Assembler) reportCompliance(ctx context.Context, run *runState) {
	logger := logging.WithContext(ctx, a.logger)
	m := run.result.FinalLoudness
	policy := a.cfg.Normalization

	if m.TruePeakDB > policy.MaxTruePeakDB+complianceSlackDB {
		logger.Warn("final artifact exceeds true-peak ceiling",
			logging.Alert("true_peak_overshoot"),
			logging.Float64("true_peak_db", m.TruePeakDB),
			logging.Float64("ceiling_db", policy.MaxTruePeakDB),
		)
	}
	deviation := math.Abs(m.IntegratedLUFS - policy.VoiceTargetLUFS)
	if policy.Enabled && deviation > policy.ToleranceLU {
		logger.Info("final loudness off voice target",
			logging.Float64("integrated_lufs", m.IntegratedLUFS),
			logging.Float64("target_lufs", policy.VoiceTargetLUFS),
			logging.Float64("deviation_lu", deviation),
		)
	}
}

// EncodeArgs maps an output format and bitrate to the encoder arguments
// for the final pass. Lossless formats ignore the bitrate.
func EncodeArgs(format, bitrate string) []string {
	switch format {
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", bitrate}
	case "aac":
		return []string{"-c:a", "aac", "-b:a", bitrate}
	case "opus":
		return []string{"-c:a", "libopus", "-b:a", bitrate}
	case "flac":
		return []string{"-c:a", "flac"}
	case "wav":
		return []string{"-c:a", "pcm_s16le"}
	default:
		return []string{"-b:a", bitrate}
	}
}
