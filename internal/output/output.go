// Package output writes canonical quality records as parquet files, one
// file per content week.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/parquet-go/parquet-go"

	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/week"
)

// LabelLength is the fixed width of the source label in output names.
const LabelLength = 21

// File describes one written parquet file.
type File struct {
	Name        string
	Path        string
	ContentWeek string
	Rows        int
}

// Writer writes canonical records under Root/<project_id>/<data_week>/.
type Writer struct {
	Root string
}

// NewWriter returns a writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{Root: root}
}

// Write partitions recs by content week and writes one file per partition.
// Records without a content week fall back to dataWeek. ProjectID and
// ReportingWeek are stamped on every record. Files are written to a
// temporary name and renamed into place.
func (w *Writer) Write(projectID, dataWeek, sourceFile string, base quality.Base, recs []quality.Record) ([]File, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	dir := filepath.Join(w.Root, projectID, dataWeek)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	parts := map[string][]quality.Record{}
	for _, r := range recs {
		r.ProjectID = projectID
		r.ReportingWeek = dataWeek
		if r.ContentWeek == "" {
			r.ContentWeek = dataWeek
		}
		parts[r.ContentWeek] = append(parts[r.ContentWeek], r)
	}
	weeks := make([]string, 0, len(parts))
	for cw := range parts {
		weeks = append(weeks, cw)
	}
	sort.Strings(weeks)

	label := CleanLabel(sourceFile)
	var files []File
	for _, cw := range weeks {
		name, err := FileName(projectID, dataWeek, label, base, cw)
		if err != nil {
			return files, err
		}
		path := filepath.Join(dir, name)
		if err := writeFile(path, parts[cw]); err != nil {
			return files, fmt.Errorf("writing %s: %w", name, err)
		}
		files = append(files, File{Name: name, Path: path, ContentWeek: cw, Rows: len(parts[cw])})
	}
	return files, nil
}

// FileName builds <project_id>_<data_week>_<label>_<base_code>_<yyyymmdd>.parquet.
func FileName(projectID, dataWeek, label string, base quality.Base, contentWeek string) (string, error) {
	cw, err := week.Parse(contentWeek)
	if err != nil {
		return "", fmt.Errorf("content week %q: %w", contentWeek, err)
	}
	return fmt.Sprintf("%s_%s_%s_%s_%s.parquet", projectID, dataWeek, label, base.Code(), week.Compact(cw)), nil
}

// CleanLabel keeps the ASCII letters and digits of a file name and fits
// the result to LabelLength, padding with zeros.
func CleanLabel(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > LabelLength {
		return s[:LabelLength]
	}
	return s + strings.Repeat("0", LabelLength-len(s))
}

func writeFile(path string, recs []quality.Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.parquet")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	pw := parquet.NewGenericWriter[quality.Record](tmp)
	if _, err := pw.Write(recs); err != nil {
		tmp.Close()
		return err
	}
	if err := pw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
