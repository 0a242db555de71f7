package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(slog.LevelWarn, "json", &buf)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	log := slog.New(h)
	log.Info("hidden")
	log.Warn("skipped project", "project", "p1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["project"] != "p1" || rec["msg"] != "skipped project" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestTextHandlerHasNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(slog.LevelInfo, "text", &buf)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	slog.New(h).Info("scan done", "projects", 3)
	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no ANSI escapes, got %q", out)
	}
	if !strings.Contains(out, "projects=3") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestUnknownFormat(t *testing.T) {
	if err := Setup("INFO", "xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
