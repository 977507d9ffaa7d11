package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"mixdown/internal/config"
	"mixdown/internal/fileutil"
	"mixdown/internal/logging"
	"mixdown/internal/media/loudness"
	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

// Request names one element to correct: a source file, the destination for
// the corrected copy, and the loudness target the element should land on.
type Request struct {
	Source     string
	Output     string
	TargetLUFS float64
}

// Outcome reports what happened to one element. Exactly one of the encode
// path or a copy path produced the output file.
type Outcome struct {
	Source string
	Output string
	// Measurement holds the analysis-pass statistics. Zero when the element
	// was passed through without analysis.
	Measurement loudness.Measurement
	// Gain is the correction that was applied.
	Gain loudness.Gain
	// PassedThrough reports that normalization is disabled and the source was
	// copied byte for byte.
	PassedThrough bool
	// FellBack reports that correction failed and the raw source was used
	// under the fallback policy.
	FellBack bool
}

// Normalizer performs two-pass loudness correction: an analysis pass through
// the loudnorm filter, a gain computed in-process with a true-peak clamp,
// then a single correction pass that also converts the element to the
// working PCM format.
type Normalizer struct {
	runner     *toolchain.Runner
	analyzer   *loudness.Analyzer
	binary     string
	timeout    time.Duration
	settings   config.Normalization
	sampleRate int
	channels   int
	logger     *slog.Logger
}

// New constructs a Normalizer from engine configuration.
func New(runner *toolchain.Runner, cfg *config.Config, logger *slog.Logger) *Normalizer {
	probeTimeout := time.Duration(cfg.Toolchain.ProbeTimeoutSeconds) * time.Second
	return &Normalizer{
		runner:     runner,
		analyzer:   loudness.NewAnalyzer(runner, cfg.Toolchain.FFmpeg, probeTimeout),
		binary:     cfg.Toolchain.FFmpeg,
		timeout:    time.Duration(cfg.Toolchain.EncodeTimeoutSeconds) * time.Second,
		settings:   cfg.Normalization,
		sampleRate: cfg.Assembly.SampleRate,
		channels:   cfg.Assembly.Channels,
		logger:     logging.NewComponentLogger(logger, "normalize"),
	}
}

// Normalize corrects a single element. With normalization disabled the
// source is copied to the output unchanged. When the analysis or correction
// pass fails and FallbackToSource is set, the raw source is copied instead
// and the failure is logged rather than returned.
func (n *Normalizer) Normalize(ctx context.Context, req Request) (Outcome, error) {
	if req.Source == "" || req.Output == "" {
		return Outcome{}, services.Wrap(services.ErrValidation, "", "normalize", "source and output are required", nil)
	}
	outcome := Outcome{Source: req.Source, Output: req.Output}

	if !n.settings.Enabled {
		if err := fileutil.CopyFileVerified(req.Source, req.Output); err != nil {
			return Outcome{}, services.Wrap(services.ErrNormalization, "", "pass-through", req.Source, err)
		}
		outcome.PassedThrough = true
		return outcome, nil
	}

	measurement, err := n.analyzer.Measure(ctx, req.Source, req.TargetLUFS, n.settings.MaxTruePeakDB)
	if err != nil {
		return n.fallback(ctx, req, outcome, "analysis pass failed", err)
	}
	outcome.Measurement = measurement

	gain := loudness.ComputeGain(measurement, req.TargetLUFS, n.settings.MaxTruePeakDB)
	outcome.Gain = gain
	if gain.Clamped {
		n.logger.Warn("gain clamped below loudness target",
			logging.String("source", req.Source),
			logging.Float64("gain_db", gain.DB),
			logging.Float64("true_peak_db", measurement.TruePeakDB),
		)
	}

	if err := n.encode(ctx, req, gain); err != nil {
		return n.fallback(ctx, req, outcome, "correction pass failed", err)
	}

	n.logger.Info("element normalized",
		logging.String("source", req.Source),
		logging.Float64("integrated_lufs", measurement.IntegratedLUFS),
		logging.Float64("gain_db", gain.DB),
		logging.Bool("clamped", gain.Clamped),
	)
	return outcome, nil
}

// NormalizeAll corrects a batch of elements with bounded concurrency.
// Results are returned in request order regardless of completion order. The
// first failure is returned after all workers drain; remaining outcomes for
// successful elements are still populated.
func (n *Normalizer) NormalizeAll(ctx context.Context, requests []Request) ([]Outcome, error) {
	outcomes := make([]Outcome, len(requests))
	if len(requests) == 0 {
		return outcomes, nil
	}

	workers := n.settings.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(requests) {
		workers = len(requests)
	}

	sem := make(chan struct{}, workers)
	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int, req Request) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[slot], errs[slot] = n.Normalize(ctx, req)
		}(i, req)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return outcomes, fmt.Errorf("element %d (%s): %w", i, requests[i].Source, err)
		}
	}
	return outcomes, nil
}

func (n *Normalizer) encode(ctx context.Context, req Request, gain loudness.Gain) error {
	filter := CorrectionFilter(gain.DB, n.settings.MaxTruePeakDB)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", req.Source,
		"-af", filter,
		"-ar", strconv.Itoa(n.sampleRate),
		"-ac", strconv.Itoa(n.channels),
		"-c:a", "pcm_s16le",
		req.Output,
	}
	_, err := n.runner.Run(ctx, toolchain.Command{Binary: n.binary, Args: args, Timeout: n.timeout})
	return err
}

func (n *Normalizer) fallback(ctx context.Context, req Request, outcome Outcome, reason string, cause error) (Outcome, error) {
	if !n.settings.FallbackToSource {
		return Outcome{}, services.Wrap(services.ErrNormalization, "", "normalize", req.Source, cause)
	}
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	n.logger.Warn("using raw source after failed correction",
		logging.String("source", req.Source),
		logging.String("reason", reason),
		logging.Error(cause),
	)
	if err := fileutil.CopyFileVerified(req.Source, req.Output); err != nil {
		return Outcome{}, services.Wrap(services.ErrNormalization, "", "fallback", req.Source, err)
	}
	outcome.FellBack = true
	return outcome, nil
}

// CorrectionFilter renders the second-pass filter chain: the computed gain
// followed by a limiter at the true-peak ceiling as a safety net against
// inter-sample overshoot the static gain cannot account for.
func CorrectionFilter(gainDB, maxTruePeakDB float64) string {
	ceiling := math.Pow(10, maxTruePeakDB/20)
	return fmt.Sprintf("volume=%sdB,alimiter=limit=%s:level=false",
		strconv.FormatFloat(gainDB, 'f', 2, 64),
		strconv.FormatFloat(ceiling, 'f', 6, 64),
	)
}
