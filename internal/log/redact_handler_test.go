package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// newTestLogger builds a logger over a buffer with a fixed home directory.
func newTestLogger(buf *bytes.Buffer, home string) *slog.Logger {
	textHandler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(newRedactHandlerWithHome(textHandler, home))
}

// TestRedactHandlerPaths tests home directory redaction in attributes.
func TestRedactHandlerPaths(t *testing.T) {
	t.Parallel()

	t.Run("rewrites home directory prefix", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := newTestLogger(&buf, "/home/alice")

		logger.Info("job loaded", "job", "/home/alice/boards/demo/demo-job.gbrjob")

		output := buf.String()
		if strings.Contains(output, "/home/alice") {
			t.Errorf("expected home directory to be redacted, got %q", output)
		}
		if !strings.Contains(output, "~/boards/demo/demo-job.gbrjob") {
			t.Errorf("expected rewritten path in output, got %q", output)
		}
	})

	t.Run("rewrites paths embedded in messages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := newTestLogger(&buf, "/home/alice")

		logger.Warn("failed to open /home/alice/boards/demo/out")

		output := buf.String()
		if strings.Contains(output, "/home/alice") {
			t.Errorf("expected home directory to be redacted, got %q", output)
		}
		if !strings.Contains(output, "~/boards/demo/out") {
			t.Errorf("expected rewritten path in output, got %q", output)
		}
	})

	t.Run("leaves other values untouched", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := newTestLogger(&buf, "/home/alice")

		logger.Info("layers prepared", "front", 5, "project", "demo-board")

		output := buf.String()
		if !strings.Contains(output, "front=5") {
			t.Errorf("expected numeric attribute in output, got %q", output)
		}
		if !strings.Contains(output, "project=demo-board") {
			t.Errorf("expected project attribute in output, got %q", output)
		}
	})

	t.Run("redacts inside groups", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := newTestLogger(&buf, "/home/alice")

		logger.Info("outputs written", slog.Group("files",
			slog.String("svg", "/home/alice/out/top.svg"),
			slog.String("png", "/home/alice/out/top.png"),
		))

		output := buf.String()
		if strings.Contains(output, "/home/alice") {
			t.Errorf("expected home directory to be redacted, got %q", output)
		}
		if !strings.Contains(output, "~/out/top.svg") {
			t.Errorf("expected rewritten svg path, got %q", output)
		}
	})

	t.Run("redacts attributes added with WithAttrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := newTestLogger(&buf, "/home/alice")

		child := logger.With("dir", "/home/alice/boards")
		child.Info("converting")

		output := buf.String()
		if strings.Contains(output, "/home/alice") {
			t.Errorf("expected home directory to be redacted, got %q", output)
		}
		if !strings.Contains(output, "dir=~/boards") {
			t.Errorf("expected rewritten dir attribute, got %q", output)
		}
	})

	t.Run("empty home disables redaction", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := newTestLogger(&buf, "")

		logger.Info("job loaded", "job", "/home/alice/demo-job.gbrjob")

		output := buf.String()
		if !strings.Contains(output, "/home/alice/demo-job.gbrjob") {
			t.Errorf("expected path to pass through unchanged, got %q", output)
		}
	})
}

// TestRedactHandlerEnabled tests level delegation to the wrapped handler.
func TestRedactHandlerEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	textHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := newRedactHandlerWithHome(textHandler, "/home/alice")

	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

// TestRedactHandlerWithGroup tests that group nesting keeps redaction.
func TestRedactHandlerWithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf, "/home/alice")

	grouped := logger.WithGroup("conversion")
	grouped.Info("done", "out", "/home/alice/out")

	output := buf.String()
	if strings.Contains(output, "/home/alice") {
		t.Errorf("expected home directory to be redacted, got %q", output)
	}
	if !strings.Contains(output, "conversion.out=~/out") {
		t.Errorf("expected grouped attribute in output, got %q", output)
	}
}

// TestNewLogger tests the logger constructors.
func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("verbose enables debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)

		logger.Debug("debug message")
		if !strings.Contains(buf.String(), "debug message") {
			t.Error("expected debug output in verbose mode")
		}
	})

	t.Run("non-verbose suppresses info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false)

		logger.Info("info message")
		if buf.Len() != 0 {
			t.Errorf("expected no output below warn level, got %q", buf.String())
		}
	})

	t.Run("JSON logger emits JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewJSONLogger(&buf, true)

		logger.Warn("warn message", "project", "demo")
		output := buf.String()
		if !strings.Contains(output, `"msg":"warn message"`) {
			t.Errorf("expected JSON output, got %q", output)
		}
	})
}
