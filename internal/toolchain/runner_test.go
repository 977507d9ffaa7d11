package toolchain

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"mixdown/internal/services"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh")
	}
}

func TestRunCapturesOutput(t *testing.T) {
	skipWithoutShell(t)
	runner := NewRunner(nil)

	result, err := runner.Run(context.Background(), Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo out; echo err 1>&2"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "out" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
	if strings.TrimSpace(result.Stderr) != "err" {
		t.Fatalf("unexpected stderr %q", result.Stderr)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	skipWithoutShell(t)
	runner := NewRunner(nil)

	result, err := runner.Run(context.Background(), Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo boom 1>&2; exit 3"},
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr tail in error, got %q", err.Error())
	}
	if !strings.Contains(result.Stderr, "boom") {
		t.Fatalf("expected stderr captured on failure, got %q", result.Stderr)
	}
}

func TestRunTimeoutKillsChild(t *testing.T) {
	skipWithoutShell(t)
	runner := NewRunner(nil)

	started := time.Now()
	_, err := runner.Run(context.Background(), Command{
		Binary:  "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 100 * time.Millisecond,
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Fatalf("child not killed promptly, took %v", elapsed)
	}
}

func TestRunCallerCancellation(t *testing.T) {
	skipWithoutShell(t)
	runner := NewRunner(nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := runner.Run(ctx, Command{
		Binary:  "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: time.Minute,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, services.ErrTimeout) {
		t.Fatalf("caller cancellation must not be reported as timeout: %v", err)
	}
}

func TestRunEmptyBinary(t *testing.T) {
	runner := NewRunner(nil)
	if _, err := runner.Run(context.Background(), Command{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	runner := NewRunner(nil)
	_, err := runner.Run(context.Background(), Command{Binary: "mixdown-test-no-such-binary"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool for missing binary, got %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "shell", Command: "sh", Description: "bourne shell"},
		{Name: "ghost", Command: "mixdown-test-no-such-binary"},
		{Name: "unset", Command: " "},
	})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("expected sh to be available: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("expected ghost to be missing with detail: %+v", statuses[1])
	}
	if statuses[2].Detail != "command not configured" {
		t.Fatalf("expected unset detail, got %+v", statuses[2])
	}
}
