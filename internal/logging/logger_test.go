package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mixdown/internal/services"
)

func newTestConsoleLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	return slog.New(newConsoleHandler(buf, levelVar, false))
}

func TestConsoleHandlerSubjectAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsoleLogger(&buf, slog.LevelInfo)

	logger = NewComponentLogger(logger, "assembler")
	logger.Info("stage started",
		String(FieldRunID, "0123456789abcdef"),
		String(FieldStage, "normalizing"),
		Int("sections", 4),
	)

	out := buf.String()
	if !strings.Contains(out, "[assembler]") {
		t.Fatalf("expected component in output, got %q", out)
	}
	if !strings.Contains(out, "run 01234567 (normalizing)") {
		t.Fatalf("expected truncated run subject, got %q", out)
	}
	if !strings.Contains(out, "sections=4") {
		t.Fatalf("expected attr in output, got %q", out)
	}
	if strings.Contains(out, FieldRunID+"=") {
		t.Fatalf("run id should be folded into the subject, got %q", out)
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsoleLogger(&buf, slog.LevelWarn)

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info record should be filtered, got %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn record should pass, got %q", out)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := slog.New(newJSONHandler(&buf, levelVar, false))

	logger.Info("probe complete", Float64("duration_seconds", 12.5))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal json record: %v", err)
	}
	if record["msg"] != "probe complete" {
		t.Fatalf("expected msg key, got %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
	if record["duration_seconds"] != 12.5 {
		t.Fatalf("expected duration attr, got %v", record)
	}
}

func TestWithContextDerivesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsoleLogger(&buf, slog.LevelInfo)

	ctx := services.WithRunID(context.Background(), "feedbeef")
	ctx = services.WithStage(ctx, "mixing")
	ctx = services.WithSection(ctx, "intro")

	WithContext(ctx, logger).Info("ducking bed")

	out := buf.String()
	if !strings.Contains(out, "run feedbeef (mixing)") {
		t.Fatalf("expected run/stage subject, got %q", out)
	}
	if !strings.Contains(out, "section=intro") {
		t.Fatalf("expected section attr, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		" DEBUG ": slog.LevelDebug,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
