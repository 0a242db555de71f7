package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHeaderIgnoresOrder(t *testing.T) {
	a := Header([]string{"job_id", "rater_id", "label"})
	b := Header([]string{"label", "job_id", "rater_id"})
	if a != b {
		t.Errorf("expected equal fingerprints, got %s and %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected md5 hex length 32, got %d", len(a))
	}
	if c := Header([]string{"job_id", "rater_id"}); c == a {
		t.Error("expected different fingerprint for a different header")
	}
}

func TestHeaderKnownValue(t *testing.T) {
	// md5("a|b"), matching fingerprints recorded in the project master list.
	if got := Header([]string{"b", "a"}); got != "d0726241020676b14aa6298ce6a18b21" {
		t.Errorf("expected d0726241020676b14aa6298ce6a18b21, got %s", got)
	}
}

func TestIdentity(t *testing.T) {
	if Identity("a.csv", 10) != Identity("a.csv", 10) {
		t.Error("expected stable identity")
	}
	if Identity("a.csv", 10) == Identity("a.csv", 11) {
		t.Error("expected size to change identity")
	}
	if Identity("a.csv", 10) == Identity("b.csv", 10) {
		t.Error("expected name to change identity")
	}
}

func TestContentSurvivesRename(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "renamed.csv")
	os.WriteFile(a, []byte("x,y\n1,2\n"), 0o644)
	os.WriteFile(b, []byte("x,y\n1,2\n"), 0o644)

	ha, err := Content(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hb, _ := Content(b)
	if ha != hb {
		t.Errorf("expected identical content fingerprints, got %s and %s", ha, hb)
	}

	os.WriteFile(b, []byte("x,y\n1,3\n"), 0o644)
	hb, _ = Content(b)
	if ha == hb {
		t.Error("expected changed content to change fingerprint")
	}
}

func TestContentMissingFile(t *testing.T) {
	if _, err := Content(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDirectory(t *testing.T) {
	entries := []Entry{{"b.csv", 20}, {"a.csv", 10}}
	reversed := []Entry{{"a.csv", 10}, {"b.csv", 20}}

	base := Directory("WE 2025.01.03", true, entries)
	if base != Directory("WE 2025.01.03", true, reversed) {
		t.Error("expected order-independent fingerprint")
	}
	if base == Directory("WE 2025.01.03", false, entries) {
		t.Error("expected active flag to change fingerprint")
	}
	if base == Directory("WE 2025.01.03", true, []Entry{{"a.csv", 10}, {"b.csv", 21}}) {
		t.Error("expected size change to change fingerprint")
	}
	if base == Directory("WE 2025.01.10", true, entries) {
		t.Error("expected folder name to change fingerprint")
	}
}
