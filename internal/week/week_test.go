package week

import (
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEnding(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-01-03", "2025-01-03"}, // Friday
		{"2025-01-04", "2025-01-10"}, // Saturday starts the next week
		{"2025-01-05", "2025-01-10"},
		{"2025-01-09", "2025-01-10"},
		{"2024-12-30", "2025-01-03"},
	}
	for _, tt := range tests {
		got := Format(Ending(date(tt.in)))
		if got != tt.want {
			t.Errorf("Ending(%s): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestEndingIgnoresClock(t *testing.T) {
	ts := time.Date(2025, 1, 3, 23, 59, 0, 0, time.FixedZone("X", 3600))
	if got := Format(Ending(ts)); got != "2025-01-03" {
		t.Errorf("expected 2025-01-03, got %s", got)
	}
}

func TestRange(t *testing.T) {
	weeks := Range(date("2025-01-01"), date("2025-01-20"))
	want := []string{"2025-01-03", "2025-01-10", "2025-01-17", "2025-01-24"}
	if len(weeks) != len(want) {
		t.Fatalf("expected %d weeks, got %d", len(want), len(weeks))
	}
	for i, w := range weeks {
		if Format(w) != want[i] {
			t.Errorf("week %d: expected %s, got %s", i, want[i], Format(w))
		}
		if !IsEnding(w) {
			t.Errorf("week %s is not a Friday", Format(w))
		}
	}
}

func TestRangeEmpty(t *testing.T) {
	if weeks := Range(date("2025-02-01"), date("2025-01-01")); weeks != nil {
		t.Errorf("expected nil, got %v", weeks)
	}
}

func TestFolderNameRoundTrip(t *testing.T) {
	w := date("2025-03-07")
	name := FolderName(w)
	if name != "WE 2025.03.07" {
		t.Fatalf("expected 'WE 2025.03.07', got %q", name)
	}
	back, err := ParseFolderName(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(w) {
		t.Errorf("expected %v, got %v", w, back)
	}
	if _, err := ParseFolderName("2025.03.07"); err == nil {
		t.Error("expected error for missing prefix")
	}
}

func TestParseSnapsToFriday(t *testing.T) {
	w, err := Parse("2025-03-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Compact(w) != "20250307" {
		t.Errorf("expected 20250307, got %s", Compact(w))
	}
}
