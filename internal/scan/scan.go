// Package scan detects changes in the raw-data tree. It produces one
// snapshot entry per (project, data week) folder and diffs consecutive
// snapshots to find new files.
package scan

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Dataste0/quality-pipeline/internal/database"
	"github.com/Dataste0/quality-pipeline/internal/fingerprint"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/table"
	"github.com/Dataste0/quality-pipeline/internal/week"
)

// ErrRootMissing is returned when the raw-data root does not exist.
var ErrRootMissing = errors.New("raw data root not found")

// DefaultExtensions are the file types considered by a scan.
var DefaultExtensions = []string{".csv", ".xlsx"}

// Options configures a Scanner.
type Options struct {
	Root          string
	CreateMissing bool
	Extensions    []string
	Now           func() time.Time
}

// Result holds the results of a scan run.
type Result struct {
	Projects  int
	Weeks     int
	Unchanged int
	Rescanned int
	Created   int
	Skipped   int
	Errors    map[string]string
	Entries   []database.SnapshotEntry
}

// Scanner walks project folders and builds snapshot entries.
type Scanner struct {
	opts Options
}

// NewScanner creates a scanner.
func NewScanner(opts Options) *Scanner {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{opts: opts}
}

type entryKey struct {
	project string
	week    string
}

// Scan scans every project. prev is the previous snapshot, used to skip
// folders whose directory fingerprint did not change. Project failures are
// logged and recorded in Result.Errors; only a missing root is fatal.
func (s *Scanner) Scan(projects []project.Project, prev []database.SnapshotEntry) (*Result, error) {
	if info, err := os.Stat(s.opts.Root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootMissing, s.opts.Root)
	}

	last := make(map[entryKey]database.SnapshotEntry, len(prev))
	for _, e := range prev {
		last[entryKey{e.ProjectID, e.DataWeek}] = e
	}

	r := &Result{Errors: map[string]string{}}
	for _, p := range projects {
		r.Projects++
		entries, err := s.scanProject(p, last, r)
		if err != nil {
			slog.Warn("skipping project", "project", p.ID, "name", p.Name, "err", err)
			r.Errors[p.ID] = err.Error()
			r.Skipped++
			continue
		}
		r.Entries = append(r.Entries, entries...)
	}

	slog.Info("scan complete", "projects", r.Projects, "weeks", r.Weeks,
		"unchanged", r.Unchanged, "rescanned", r.Rescanned, "skipped", r.Skipped)
	return r, nil
}

// matcher is a compiled format filter.
type matcher struct {
	re     *regexp.Regexp
	format project.FormatConfig
}

func compileFormats(p project.Project) ([]matcher, error) {
	var out []matcher
	for _, f := range p.Formats {
		re, err := f.Filter.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, matcher{re: re, format: f})
	}
	return out, nil
}

func (s *Scanner) scanProject(p project.Project, last map[entryKey]database.SnapshotEntry, r *Result) ([]database.SnapshotEntry, error) {
	matchers, err := compileFormats(p)
	if err != nil {
		return nil, err
	}

	dir, err := p.Folder(s.opts.Root)
	if errors.Is(err, project.ErrFolderNotFound) && s.opts.CreateMissing {
		dir = filepath.Join(s.opts.Root, p.DefaultFolderName())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating project folder: %w", err)
		}
		slog.Info("created project folder", "project", p.ID, "dir", dir)
		r.Created++
	} else if err != nil {
		return nil, err
	}

	start, end := p.Window(s.opts.Now())
	var entries []database.SnapshotEntry
	for _, we := range week.Range(start, end) {
		dataWeek := week.Format(we)
		weekDir := filepath.Join(dir, week.FolderName(we))

		if _, err := os.Stat(weekDir); os.IsNotExist(err) {
			if !s.opts.CreateMissing {
				slog.Warn("week folder missing", "project", p.ID, "week", dataWeek)
				continue
			}
			if err := os.MkdirAll(weekDir, 0o755); err != nil {
				return entries, fmt.Errorf("creating week folder: %w", err)
			}
			r.Created++
		}

		var prevEntry *database.SnapshotEntry
		if e, ok := last[entryKey{p.ID, dataWeek}]; ok {
			prevEntry = &e
		}
		entry, reused, err := s.scanWeek(p, matchers, weekDir, dataWeek, prevEntry)
		if err != nil {
			slog.Error("scanning week folder", "project", p.ID, "week", dataWeek, "err", err)
			continue
		}
		r.Weeks++
		if reused {
			r.Unchanged++
		} else {
			r.Rescanned++
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// scanWeek builds the entry of one week folder. When the directory
// fingerprint equals prev's, prev is copied forward without opening files.
func (s *Scanner) scanWeek(p project.Project, matchers []matcher, dir, dataWeek string, prev *database.SnapshotEntry) (*database.SnapshotEntry, bool, error) {
	candidates, err := s.candidates(dir)
	if err != nil {
		return nil, false, err
	}

	fpEntries := make([]fingerprint.Entry, len(candidates))
	for i, c := range candidates {
		fpEntries[i] = fingerprint.Entry{RelPath: c.name, Size: c.size}
	}
	hash := fingerprint.Directory(filepath.Base(dir), p.Active, fpEntries)

	if prev != nil && prev.FolderHash == hash {
		e := *prev
		e.ID, e.SnapshotID, e.CreatedAt = 0, 0, ""
		e.ProjectName = p.Name
		return &e, true, nil
	}

	entry := &database.SnapshotEntry{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		DataWeek:    dataWeek,
		FolderHash:  hash,
		Files:       []database.FileRecord{},
		ValidFiles:  []database.FileRecord{},
	}
	for _, c := range candidates {
		rec := s.classify(matchers, filepath.Join(dir, c.name), c.name)
		entry.Files = append(entry.Files, rec)
		if rec.Valid() {
			entry.ValidFiles = append(entry.ValidFiles, rec)
		}
	}
	entry.HasAnyData = len(entry.Files) > 0
	entry.HasWeeklyData = len(entry.ValidFiles) > 0

	if entry.HasAnyData && !entry.HasWeeklyData {
		names := make([]string, len(entry.Files))
		for i, f := range entry.Files {
			names[i] = f.Filename
		}
		slog.Warn("no valid files", "project", p.ID, "week", dataWeek, "files", strings.Join(names, ", "))
	}
	return entry, false, nil
}

// classify matches a file against the project's formats. The first format
// whose name filter matches decides the header check.
func (s *Scanner) classify(matchers []matcher, path, name string) database.FileRecord {
	rec := database.FileRecord{Filename: name, NamingFilter: database.NoMatch, DatasetFingerprint: database.NoMatch}
	for _, m := range matchers {
		if !m.re.MatchString(name) {
			continue
		}
		rec.NamingFilter = database.Match
		if header, err := table.ReadHeader(path); err == nil && strings.EqualFold(fingerprint.Header(header), m.format.Fingerprint) {
			rec.DatasetFingerprint = database.Match
		}
		hash, err := fingerprint.Content(path)
		if err != nil {
			slog.Warn("hashing file", "file", path, "err", err)
		}
		rec.Hash = hash
		break
	}
	return rec
}

type candidate struct {
	name string
	size int64
}

// candidates lists non-empty files with an allowed extension and at least
// one data row, sorted by name.
func (s *Scanner) candidates(dir string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, e := range entries {
		if e.IsDir() || !s.allowed(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		ok, err := table.HasDataRow(filepath.Join(dir, e.Name()))
		if err != nil || !ok {
			if err != nil {
				slog.Debug("unreadable candidate", "file", e.Name(), "err", err)
			}
			continue
		}
		out = append(out, candidate{name: e.Name(), size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func (s *Scanner) allowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.opts.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
