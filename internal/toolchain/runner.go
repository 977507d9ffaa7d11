package toolchain

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"mixdown/internal/logging"
	"mixdown/internal/services"
)

// Command describes one external toolchain invocation.
type Command struct {
	Binary string
	Args   []string
	// Timeout bounds the invocation. Zero means the caller's context governs.
	Timeout time.Duration
}

// Result carries the captured output of a completed invocation.
type Result struct {
	Stdout string
	Stderr string
}

// killGracePeriod is how long a child gets between context cancellation and
// SIGKILL before Wait gives up on its pipes.
const killGracePeriod = 5 * time.Second

// stderrTailLimit bounds how much diagnostic output is attached to errors.
const stderrTailLimit = 2048

// Runner executes external commands with guaranteed termination and captured
// output. It is the only path from engine components to the audio toolchain.
type Runner struct {
	logger *slog.Logger
}

// NewRunner constructs a Runner. A nil logger disables command logging.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logging.NewComponentLogger(logger, "toolchain")}
}

// Run executes the command and waits for completion. On timeout the child is
// killed and a services.ErrTimeout-tagged error is returned; a non-zero exit
// returns services.ErrExternalTool with the tail of stderr attached. The
// captured output is returned in all cases, including failure, so callers can
// parse diagnostics the tool emits before dying.
func (r *Runner) Run(ctx context.Context, command Command) (Result, error) {
	if strings.TrimSpace(command.Binary) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "", "run", "empty binary name", nil)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if command.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command.Binary, command.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGracePeriod

	started := time.Now()
	r.logger.Debug("running command",
		logging.String("binary", command.Binary),
		logging.String("args", strings.Join(command.Args, " ")),
		logging.Duration("timeout", command.Timeout),
	)

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	elapsed := time.Since(started)

	if err == nil {
		r.logger.Debug("command completed",
			logging.String("binary", command.Binary),
			logging.Duration("elapsed", elapsed),
		)
		return result, nil
	}

	// Distinguish our deadline from the caller cancelling the whole run.
	if runCtx.Err() != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return result, services.Wrap(services.ErrTimeout, "", command.Binary,
				"killed after "+elapsed.Round(time.Millisecond).String(), nil)
		}
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, services.Wrap(services.ErrExternalTool, "", command.Binary,
			stderrTail(result.Stderr), err)
	}
	return result, services.Wrap(services.ErrExternalTool, "", command.Binary, "failed to start", err)
}

func stderrTail(stderr string) string {
	trimmed := strings.TrimSpace(stderr)
	if len(trimmed) > stderrTailLimit {
		trimmed = trimmed[len(trimmed)-stderrTailLimit:]
	}
	return trimmed
}
