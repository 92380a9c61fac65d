package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"scriptcheck/internal/services"
)

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("stage started",
		String(FieldComponent, "segmenter"),
		String(FieldInterviewID, "iv1"),
		Int("segments", 4),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO segmenter: stage started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "interview_id=iv1") || !strings.Contains(line, "segments=4") {
		t.Fatalf("missing attributes: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Warn("validation failed", String("detail", "missing reference clip"))

	if !strings.Contains(buf.String(), `detail="missing reference clip"`) {
		t.Fatalf("expected quoted value: %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	ctx := services.WithInterviewID(context.Background(), "iv42")
	ctx = services.WithStage(ctx, "ml_inference")

	WithContext(ctx, logger).Info("hello")

	line := buf.String()
	if !strings.Contains(line, "interview_id=iv42") || !strings.Contains(line, "stage=ml_inference") {
		t.Fatalf("context fields missing: %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("debug level not parsed")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
}
