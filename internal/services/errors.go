package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout marks an external toolchain invocation that exceeded its deadline.
	ErrTimeout = errors.New("process timeout")
	// ErrExternalTool marks a non-zero exit from the external toolchain.
	ErrExternalTool = errors.New("process execution failure")
	// ErrProbe marks a failed or unparseable ffprobe inspection.
	ErrProbe = errors.New("probe failure")
	// ErrNoAudioStream marks a probed file that contains no audio stream.
	ErrNoAudioStream = errors.New("no audio stream")
	// ErrLoudnessParse marks a loudness statistics block that could not be
	// located or parsed from the toolchain's diagnostic output.
	ErrLoudnessParse = errors.New("loudness parse failure")
	// ErrNormalization marks a loudness correction that failed for an element
	// with no acceptable fallback.
	ErrNormalization = errors.New("normalization error")
	// ErrConcatenation marks an invalid or failed segment join.
	ErrConcatenation = errors.New("concatenation error")
	// ErrMix marks an invalid or failed track overlay.
	ErrMix = errors.New("mix error")
	// ErrValidation marks invalid caller input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable engine configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the invoking collaborator may reasonably retry
// the whole run. Timeouts are retryable by policy; validation and
// configuration failures never are.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
