package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decodeLine(t *testing.T, line []byte) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(line, &rec); err != nil {
		t.Fatalf("log line not json: %v (%s)", err, line)
	}
	return rec
}

func TestNewSlog_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Component: "test"}, &buf)
	log := NewSlog(&zl)

	ctx := WithImage(WithEntryID(context.Background(), 7), "slide_A.tiff")
	log.InfoContext(ctx, "processing image", "count", 3, "ok", true)

	rec := decodeLine(t, buf.Bytes())
	if rec["image"] != "slide_A.tiff" || rec["entry_id"] != float64(7) {
		t.Fatalf("context fields missing: %v", rec)
	}
	if rec["component"] != "test" || rec["msg"] != "processing image" {
		t.Fatalf("record fields: %v", rec)
	}
	if rec["count"] != float64(3) || rec["ok"] != true {
		t.Fatalf("attrs: %v", rec)
	}
}

func TestNewSlog_LevelMapping(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	log := NewSlog(&zl)

	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines=%d want 4", len(lines))
	}
	want := []string{"debug", "info", "warn", "error"}
	for i, line := range lines {
		rec := decodeLine(t, []byte(line))
		if rec["level"] != want[i] {
			t.Fatalf("line %d level=%v want %s", i, rec["level"], want[i])
		}
	}
}

func TestNewSlog_WithAttrsAndDurations(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	log := NewSlog(&zl).With("stage", "export")

	log.Info("done", "took", 1500*time.Millisecond)

	rec := decodeLine(t, buf.Bytes())
	if rec["stage"] != "export" {
		t.Fatalf("With attr missing: %v", rec)
	}
	if _, ok := rec["took"]; !ok {
		t.Fatalf("duration attr missing: %v", rec)
	}
}
