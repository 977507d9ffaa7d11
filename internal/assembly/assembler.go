package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mixdown/internal/config"
	"mixdown/internal/fileutil"
	"mixdown/internal/logging"
	"mixdown/internal/media/loudness"
	"mixdown/internal/media/mixer"
	"mixdown/internal/media/probe"
	"mixdown/internal/normalize"
	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

// Request describes one assembly invocation: the ordered sections to join
// and the destination for the finished episode.
type Request struct {
	// RunID identifies the run. Generated when empty.
	RunID string
	// Title is the episode display title.
	Title string
	// Sections in fixed total order: optional intro, topics, synthesis.
	Sections []Section
	// OutputPath is the caller-chosen destination for the final artifact.
	OutputPath string
}

// Chapter is one entry of the timing manifest handed to the publishing
// collaborator.
type Chapter struct {
	Type     SectionType
	Title    string
	Start    time.Duration
	Duration time.Duration
}

// EpisodeAssembly is the aggregate result of one completed run. It exists
// only for the invocation; persistence is the caller's concern.
type EpisodeAssembly struct {
	RunID      string
	Title      string
	OutputPath string
	Chapters   []Chapter
	// TotalDuration and FileSizeBytes come from the final re-probe, not
	// from any earlier accumulation.
	TotalDuration time.Duration
	FileSizeBytes int64
	// FinalLoudness is the compliance measurement of the finished artifact.
	FinalLoudness loudness.Measurement
	// IntroBed, TransitionBed and OutroBed are the asset paths actually
	// mixed into the episode; empty when unused.
	IntroBed      string
	TransitionBed string
	OutroBed      string
}

// bed tracks one music asset through the run: its source, its normalized
// scratch copy, and the measured duration of that copy.
type bed struct {
	name       string
	source     string
	normalized string
	duration   time.Duration
}

// Assembler drives the staged pipeline that turns sections and beds into
// one episode file. A single Assembler is safe for sequential reuse; each
// run owns its scratch directory exclusively.
type Assembler struct {
	cfg        *config.Config
	runner     *toolchain.Runner
	prober     *probe.Prober
	normalizer *normalize.Normalizer
	analyzer   *loudness.Analyzer
	mix        *mixer.Mixer
	logger     *slog.Logger
}

// New constructs an Assembler wired to the external toolchain through the
// shared runner.
func New(cfg *config.Config, runner *toolchain.Runner, logger *slog.Logger) *Assembler {
	probeTimeout := time.Duration(cfg.Toolchain.ProbeTimeoutSeconds) * time.Second
	encodeTimeout := time.Duration(cfg.Toolchain.EncodeTimeoutSeconds) * time.Second
	return &Assembler{
		cfg:        cfg,
		runner:     runner,
		prober:     probe.New(runner, cfg.Toolchain.FFprobe, probeTimeout),
		normalizer: normalize.New(runner, cfg, logger),
		analyzer:   loudness.NewAnalyzer(runner, cfg.Toolchain.FFmpeg, probeTimeout),
		mix: mixer.New(runner, cfg.Toolchain.FFmpeg, encodeTimeout,
			cfg.Assembly.SampleRate, cfg.Assembly.Channels),
		logger: logging.NewComponentLogger(logger, "assembly"),
	}
}

// Assemble runs the full pipeline. On failure the returned error is a
// *StageError naming the stage that broke; scratch files are removed on
// every exit path and no partial artifact is left at the output path.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*EpisodeAssembly, error) {
	if err := ValidateOrder(req.Sections); err != nil {
		return nil, failed(StagePending, err)
	}
	if req.OutputPath == "" {
		return nil, failed(StagePending, services.Wrap(services.ErrValidation, "", "assemble", "empty output path", nil))
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, a.logger)
	logger.Info("assembly run started",
		logging.String("title", req.Title),
		logging.Int("sections", len(req.Sections)),
		logging.String("output", req.OutputPath),
	)

	scratch, err := NewScratch(a.cfg.Paths.ScratchDir, runID)
	if err != nil {
		return nil, failed(StagePending, err)
	}
	defer scratch.Cleanup(logger)

	run := &runState{request: req, runID: runID, scratch: scratch}

	stages := []struct {
		stage Stage
		step  func(context.Context, *runState) error
	}{
		{StageMeasuring, a.measure},
		{StageNormalizing, a.normalize},
		{StageConcatenating, a.concatenate},
		{StageMixing, a.overlayBeds},
		{StageFinalizing, a.finalize},
	}
	for _, s := range stages {
		stageCtx := services.WithStage(ctx, s.stage.String())
		logging.WithContext(stageCtx, a.logger).Debug("stage started")
		if err := s.step(stageCtx, run); err != nil {
			logging.WithContext(stageCtx, a.logger).Error("stage failed", logging.Error(err))
			return nil, failed(s.stage, err)
		}
	}

	result := run.result
	result.RunID = runID
	result.Title = req.Title
	result.OutputPath = req.OutputPath
	logger.Info("assembly run complete",
		logging.Duration("duration", result.TotalDuration),
		logging.Int64("size_bytes", result.FileSizeBytes),
		logging.Int("chapters", len(result.Chapters)),
	)
	return &result, nil
}

// runState carries intermediate artifacts between stages of one run.
type runState struct {
	request Request
	runID   string
	scratch *Scratch

	sectionInfo []probe.MediaInfo
	introBed    *bed
	transition  *bed
	outroBed    *bed

	normalizedSections []string
	plan               []Segment
	timeline           Timeline
	program            string
	chapters           []Chapter

	result EpisodeAssembly
}

// measure probes every section source and resolves which music assets this
// run will use. A section without an audio stream fails the run here,
// before any expensive work.
func (a *Assembler) measure(ctx context.Context, run *runState) error {
	run.sectionInfo = make([]probe.MediaInfo, len(run.request.Sections))
	for i, section := range run.request.Sections {
		info, err := a.prober.Probe(ctx, section.Source)
		if err != nil {
			return err
		}
		run.sectionInfo[i] = info
	}

	music := a.cfg.Music
	sections := run.request.Sections
	if sections[0].Type == SectionIntro && music.IntroBed != "" {
		run.introBed = &bed{name: "intro", source: music.IntroBed}
	}
	if sections[len(sections)-1].Type == SectionSynthesis && music.OutroBed != "" {
		run.outroBed = &bed{name: "outro", source: music.OutroBed}
	}
	if music.TransitionBed != "" && planNeedsTransition(sections) {
		run.transition = &bed{name: "transition", source: music.TransitionBed}
	}
	for _, b := range run.beds() {
		if _, err := a.prober.Probe(ctx, b.source); err != nil {
			return err
		}
	}
	return nil
}

func planNeedsTransition(sections []Section) bool {
	for i := 1; i < len(sections); i++ {
		if needsTransition(sections[i-1].Type, sections[i].Type) {
			return true
		}
	}
	return false
}

// normalize corrects every element against its target on the bounded
// worker pool: sections toward the voice target, beds toward the music
// target. Outputs land in scratch as working-format WAV.
func (a *Assembler) normalize(ctx context.Context, run *runState) error {
	requests := make([]normalize.Request, 0, len(run.request.Sections)+3)
	run.normalizedSections = make([]string, len(run.request.Sections))
	for i := range run.request.Sections {
		out := run.scratch.Path(fmt.Sprintf("section-%03d.wav", i))
		run.normalizedSections[i] = out
		requests = append(requests, normalize.Request{
			Source:     run.request.Sections[i].Source,
			Output:     out,
			TargetLUFS: a.cfg.Normalization.VoiceTargetLUFS,
		})
	}
	for _, b := range run.beds() {
		b.normalized = run.scratch.Path("bed-" + b.name + ".wav")
		requests = append(requests, normalize.Request{
			Source:     b.source,
			Output:     b.normalized,
			TargetLUFS: a.cfg.Normalization.MusicTargetLUFS,
		})
	}

	_, err := a.normalizer.NormalizeAll(ctx, requests)
	return err
}

// concatenate joins the normalized sections in order with transitions or
// silence between them, accumulating the chapter manifest from measured
// segment durations.
func (a *Assembler) concatenate(ctx context.Context, run *runState) error {
	run.plan = BuildPlan(run.request.Sections, run.transition != nil)
	if len(run.plan) == 0 {
		return services.Wrap(services.ErrConcatenation, "", "concatenate", "empty plan", nil)
	}

	if run.transition != nil {
		if err := a.prepareTransition(ctx, run); err != nil {
			return err
		}
	}

	silencePath := ""
	if planContains(run.plan, SegmentSilence) {
		silencePath = run.scratch.Path("silence.wav")
		fallback := secondsToDuration(a.cfg.Assembly.SilenceFallbackSeconds)
		if err := a.mix.Silence(ctx, fallback, silencePath); err != nil {
			return err
		}
	}

	files := make([]string, len(run.plan))
	durations := make([]time.Duration, len(run.plan))
	for i, segment := range run.plan {
		switch segment.Kind {
		case SegmentSection:
			files[i] = run.normalizedSections[segment.SectionIndex]
		case SegmentTransition:
			files[i] = run.transition.normalized
		case SegmentSilence:
			files[i] = silencePath
		}
		info, err := a.prober.Probe(ctx, files[i])
		if err != nil {
			return err
		}
		durations[i] = secondsToDuration(info.DurationSeconds)
	}
	if run.introBed != nil {
		if err := a.measureBed(ctx, run.introBed); err != nil {
			return err
		}
	}
	if run.outroBed != nil {
		if err := a.measureBed(ctx, run.outroBed); err != nil {
			return err
		}
	}

	crossfade := secondsToDuration(a.cfg.Assembly.CrossfadeSeconds)
	run.timeline = ComputeTimeline(run.plan, durations, crossfade)
	run.chapters = buildChapters(run.request.Sections, run.plan, run.timeline)

	if len(files) == 1 {
		program := run.scratch.Path("program.wav")
		if err := fileutil.CopyFileVerified(files[0], program); err != nil {
			return services.Wrap(services.ErrConcatenation, "", "concatenate", files[0], err)
		}
		run.program = program
		return nil
	}

	current := files[0]
	for i := 1; i < len(files); i++ {
		out := run.scratch.Path(fmt.Sprintf("join-%03d.wav", i))
		var err error
		if run.timeline.Joins[i-1] == JoinCrossfade {
			err = a.mix.Crossfade(ctx, current, files[i], crossfade, out)
		} else {
			err = a.mix.Concat(ctx, []string{current, files[i]}, out)
		}
		if err != nil {
			return services.Wrap(services.ErrConcatenation, "", "concatenate", "", err)
		}
		current = out
	}
	run.program = current
	return nil
}

// prepareTransition caps the normalized transition bed at the configured
// length so a long bed does not stretch the gap between topics. A zero
// transition_seconds leaves the bed at its full length.
func (a *Assembler) prepareTransition(ctx context.Context, run *runState) error {
	limit := secondsToDuration(a.cfg.Assembly.TransitionSeconds)
	if limit <= 0 {
		return nil
	}
	info, err := a.prober.Probe(ctx, run.transition.normalized)
	if err != nil {
		return err
	}
	if secondsToDuration(info.DurationSeconds) <= limit {
		return nil
	}
	trimmed := run.scratch.Path("transition-trim.wav")
	if err := a.mix.Trim(ctx, run.transition.normalized, limit, trimmed); err != nil {
		return services.Wrap(services.ErrConcatenation, "", "concatenate", "trim transition bed", err)
	}
	run.transition.normalized = trimmed
	return nil
}

func (a *Assembler) measureBed(ctx context.Context, b *bed) error {
	info, err := a.prober.Probe(ctx, b.normalized)
	if err != nil {
		return err
	}
	b.duration = secondsToDuration(info.DurationSeconds)
	return nil
}

// overlayBeds ducks the intro and outro beds under the joined program at
// the chapter offsets established during concatenation. With no beds in
// play the stage is a pass-through.
func (a *Assembler) overlayBeds(ctx context.Context, run *runState) error {
	duck := mixer.DuckSpec{
		Volume: a.cfg.Assembly.DuckVolume,
		Fade:   secondsToDuration(a.cfg.Assembly.DuckFadeSeconds),
	}

	if run.introBed != nil {
		duck.Offset = run.chapters[0].Start
		duck.BedDuration = run.introBed.duration
		out := run.scratch.Path("mix-intro.wav")
		if err := a.mix.Duck(ctx, run.program, run.introBed.normalized, duck, out); err != nil {
			return err
		}
		run.program = out
	}
	if run.outroBed != nil {
		duck.Offset = run.chapters[len(run.chapters)-1].Start
		duck.BedDuration = run.outroBed.duration
		out := run.scratch.Path("mix-outro.wav")
		if err := a.mix.Duck(ctx, run.program, run.outroBed.normalized, duck, out); err != nil {
			return err
		}
		run.program = out
	}
	return nil
}

// buildChapters extracts the section entries from the laid-out plan.
// Topic ordinals count from one in input order.
func buildChapters(sections []Section, plan []Segment, timeline Timeline) []Chapter {
	chapters := make([]Chapter, 0, len(sections))
	topicOrdinal := 0
	for i, segment := range plan {
		if segment.Kind != SegmentSection {
			continue
		}
		section := sections[segment.SectionIndex]
		if section.Type == SectionTopic {
			topicOrdinal++
		}
		chapters = append(chapters, Chapter{
			Type:     section.Type,
			Title:    section.DisplayTitle(topicOrdinal),
			Start:    timeline.Starts[i],
			Duration: timeline.Effective[i],
		})
	}
	return chapters
}

func planContains(plan []Segment, kind SegmentKind) bool {
	for _, segment := range plan {
		if segment.Kind == kind {
			return true
		}
	}
	return false
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func (r *runState) beds() []*bed {
	beds := make([]*bed, 0, 3)
	for _, b := range []*bed{r.introBed, r.transition, r.outroBed} {
		if b != nil {
			beds = append(beds, b)
		}
	}
	return beds
}
