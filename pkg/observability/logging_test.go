package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WARN, &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("messages at or above WARN missing: %q", out)
	}
}

func TestFieldsArePropagatedAndSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, &buf).WithRank(3).WithField("component", "virtual")

	logger.Info("building", map[string]interface{}{"btype": "face"})

	out := buf.String()
	for _, want := range []string{"rank=3", "component=virtual", "btype=face"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
	// Keys are emitted sorted, so the order is deterministic.
	if strings.Index(out, "btype=") > strings.Index(out, "component=") ||
		strings.Index(out, "component=") > strings.Index(out, "rank=") {
		t.Errorf("fields not sorted: %q", out)
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(INFO, &buf)
	parent.WithField("child", true)

	parent.Info("plain")
	if strings.Contains(buf.String(), "child=") {
		t.Errorf("parent logger picked up child field: %q", buf.String())
	}
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, &buf)

	if err := logger.LogOperation("noop", func() error { return nil }); err != nil {
		t.Fatalf("LogOperation returned %v", err)
	}
	if !strings.Contains(buf.String(), "Completed operation: noop") {
		t.Errorf("missing completion entry: %q", buf.String())
	}

	buf.Reset()
	fail := errors.New("boom")
	if err := logger.LogOperation("broken", func() error { return fail }); !errors.Is(err, fail) {
		t.Fatalf("LogOperation swallowed the error: %v", err)
	}
	if !strings.Contains(buf.String(), "Operation failed: broken") {
		t.Errorf("missing failure entry: %q", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	levels := map[LogLevel]string{
		DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR", FATAL: "FATAL",
	}
	for level, want := range levels {
		if got := level.String(); got != want {
			t.Errorf("String(%d) = %q", int(level), got)
		}
	}
}
