package probe

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"mixdown/internal/services"
	"mixdown/internal/toolchain"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// MediaInfo is the structural summary the assembly engine works with.
type MediaInfo struct {
	Path            string
	DurationSeconds float64
	SizeBytes       int64
	BitRate         int64
	SampleRate      int
	Channels        int
	Codec           string
	FormatName      string
}

// Prober inspects media files through ffprobe.
type Prober struct {
	runner  *toolchain.Runner
	binary  string
	timeout time.Duration
}

// New constructs a Prober for the given ffprobe binary.
func New(runner *toolchain.Runner, binary string, timeout time.Duration) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{runner: runner, binary: binary, timeout: timeout}
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response without interpreting it.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "", "probe", "empty path", nil)
	}

	out, err := p.runner.Run(ctx, toolchain.Command{
		Binary:  p.binary,
		Args:    []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path},
		Timeout: p.timeout,
	})
	if err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "", "inspect", path, err)
	}

	var result Result
	if err := json.Unmarshal([]byte(out.Stdout), &result); err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "", "parse", path, err)
	}
	return result, nil
}

// Probe inspects the file and summarizes its first audio stream. It fails
// with services.ErrNoAudioStream when the container holds no audio.
func (p *Prober) Probe(ctx context.Context, path string) (MediaInfo, error) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return MediaInfo{}, err
	}

	audio, ok := result.FirstAudioStream()
	if !ok {
		return MediaInfo{}, services.Wrap(services.ErrNoAudioStream, "", "probe", path, nil)
	}

	info := MediaInfo{
		Path:            path,
		DurationSeconds: result.DurationSeconds(),
		SizeBytes:       result.SizeBytes(),
		BitRate:         result.BitRate(),
		SampleRate:      int(parseFloatOrZero(audio.SampleRate)),
		Channels:        audio.Channels,
		Codec:           audio.CodecName,
		FormatName:      result.Format.FormatName,
	}
	if info.DurationSeconds == 0 || math.IsNaN(info.DurationSeconds) {
		// Some containers only report per-stream durations.
		if d := parseFloatOrZero(audio.Duration); d > 0 {
			info.DurationSeconds = d
		}
	}
	return info, nil
}

// FirstAudioStream returns the first audio stream discovered, if any.
func (r Result) FirstAudioStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return Stream{}, false
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloatOrZero(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloatOrZero(r.Format.Size)
	if size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloatOrZero(r.Format.BitRate)
	if rate < 0 {
		return 0
	}
	return int64(rate)
}

func parseFloatOrZero(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return 0
}
