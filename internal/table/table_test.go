package table

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "data.csv", []byte("\xef\xbb\xbfjob_id, rater_id\n1,10\n\n2,20\n"))
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if tbl.Header[0] != "job_id" || tbl.Header[1] != "rater_id" {
		t.Errorf("expected cleaned header, got %q", tbl.Header)
	}
	if tbl.Value(1, "rater_id") != "20" {
		t.Errorf("expected 20, got %q", tbl.Value(1, "rater_id"))
	}
}

func TestLoadCSVLatin1(t *testing.T) {
	path := writeFile(t, "latin.csv", []byte("name\nJos\xe9\n"))
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Value(0, "name"); got != "José" {
		t.Errorf("expected José, got %q", got)
	}
}

func TestReadHeaderUTF8CutAtProbeLimit(t *testing.T) {
	header := "città,job_id\n"
	// Place a two-byte "è" across the probe limit.
	filler := strings.Repeat("a", headerProbeBytes-1-len(header))
	data := header + filler + "è,1\n" + "b,2\n"
	path := writeFile(t, "utf8.csv", []byte(data))

	got, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got, ",") != strings.Join(tbl.Header, ",") {
		t.Errorf("expected header %q, got %q", tbl.Header, got)
	}
	if got[0] != "città" {
		t.Errorf("expected città, got %q", got[0])
	}
}

func TestTrimPartialRune(t *testing.T) {
	full := []byte("abè")
	if got := trimPartialRune(full); string(got) != "abè" {
		t.Errorf("expected complete input kept, got %q", got)
	}
	if got := trimPartialRune(full[:len(full)-1]); string(got) != "ab" {
		t.Errorf("expected cut rune dropped, got %q", got)
	}
	latin := []byte("Jos\xe9")
	if got := trimPartialRune(latin); string(got) != "Jos" {
		t.Errorf("expected lone lead byte dropped, got %q", got)
	}
}

func TestLoadCSVLazyQuotes(t *testing.T) {
	path := writeFile(t, "quotes.csv", []byte("a,b\n1,he said \"hi\"\n"))
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Value(0, "b"); got != `he said "hi"` {
		t.Errorf("unexpected value %q", got)
	}
}

func TestLoadHeaderOnlyIsEmpty(t *testing.T) {
	path := writeFile(t, "empty.csv", []byte("a,b\n"))
	if _, err := Load(path); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
	ok, err := HasDataRow(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no data row")
	}
}

func TestUnsupported(t *testing.T) {
	path := writeFile(t, "data.xls", []byte("junk"))
	if _, err := Load(path); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if Supported(path) {
		t.Error("expected .xls to be unsupported")
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	f := excelize.NewFile()
	f.SetSheetRow("Sheet1", "A1", &[]any{"job_id", "score"})
	f.SetSheetRow("Sheet1", "A2", &[]any{"7", "0.5"})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving xlsx: %v", err)
	}
	f.Close()

	header, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(header) != 2 || header[1] != "score" {
		t.Errorf("unexpected header %q", header)
	}
	ok, _ := HasDataRow(path)
	if !ok {
		t.Error("expected a data row")
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Value(0, "job_id") != "7" {
		t.Errorf("expected 7, got %q", tbl.Value(0, "job_id"))
	}
}

func TestRenameAndReplace(t *testing.T) {
	tbl := New([]string{"Annotator", "Result"}, [][]string{{"1", "ok"}, {"2", "bad"}, {"3"}})
	if tbl.Rename(map[string]string{"Annotator": "rater_id", "Missing": "x"}) != 1 {
		t.Error("expected one rename")
	}
	if !tbl.Has("rater_id", "Result") {
		t.Errorf("expected renamed header, got %q", tbl.Header)
	}
	if n := tbl.ReplaceStrings("Result", "bad", "fail"); n != 1 {
		t.Errorf("expected 1 replacement, got %d", n)
	}
	if n := tbl.ReplaceRegex("rater_id", regexp.MustCompile(`^(\d)$`), "R$1"); n != 3 {
		t.Errorf("expected 3 replacements, got %d", n)
	}
	if tbl.Value(2, "Result") != "" {
		t.Errorf("expected padded short row, got %q", tbl.Value(2, "Result"))
	}
	tbl.SetColumn("workflow", "default_workflow")
	if tbl.Value(0, "workflow") != "default_workflow" {
		t.Error("expected constant column")
	}
	if missing := tbl.Missing("rater_id", "job_id"); len(missing) != 1 || missing[0] != "job_id" {
		t.Errorf("unexpected missing columns %v", missing)
	}
}
