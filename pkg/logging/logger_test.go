package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoEmitsKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	l.Info("priming database", "nthreads", 4)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not valid JSON: %v (%q)", err, buf.String())
	}
	if line["message"] != "priming database" {
		t.Errorf("message = %v, want %q", line["message"], "priming database")
	}
	if line["nthreads"] != float64(4) {
		t.Errorf("nthreads = %v, want 4", line["nthreads"])
	}
}

func TestDebugBelowLevelIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output below the configured level, got %q", buf.String())
	}
}

func TestOddFieldCountFlagsLogError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	l.Info("oops", "only_key")
	if !strings.Contains(buf.String(), "log_error") {
		t.Errorf("expected a log_error marker for an odd field count, got %q", buf.String())
	}
}

func TestWithFieldCarriesAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	child := l.WithField("run_id", "abc123")
	child.Info("entering steady state")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if line["run_id"] != "abc123" {
		t.Errorf("run_id = %v, want abc123", line["run_id"])
	}
}
