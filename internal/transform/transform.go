// Package transform turns one queued source file into canonical parquet
// output: load, match the format by header fingerprint, pre-process, adapt,
// normalize, remap through the roster and write.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/Dataste0/quality-pipeline/internal/adapter"
	"github.com/Dataste0/quality-pipeline/internal/database"
	"github.com/Dataste0/quality-pipeline/internal/fingerprint"
	"github.com/Dataste0/quality-pipeline/internal/normalize"
	"github.com/Dataste0/quality-pipeline/internal/output"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
	"github.com/Dataste0/quality-pipeline/internal/week"
)

// Failure reason codes stored in an item's transform_info.
const (
	ReasonSourceMissing      = "source_file_doesnt_exist"
	ReasonEmptySource        = "empty_source_file"
	ReasonUnreadableSource   = "unreadable_source_file"
	ReasonProjectNotFound    = "project_not_found"
	ReasonNoFingerprintMatch = "no_dataset_fingerprint_match"
	ReasonAdapterError       = "adapter_error"
	ReasonBaseUndetermined   = "model_base_undetermined"
	ReasonEmptyOutput        = "empty_output_file"
	ReasonWriteError         = "write_error"
)

// Failure is a file-level transform failure with a stable reason code.
type Failure struct {
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason
	}
	return f.Reason + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(reason string, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// Info is the structured diagnostic attached to a completed item.
type Info struct {
	Reason      string               `json:"failure_reason,omitempty"`
	Error       string               `json:"error,omitempty"`
	Fingerprint string               `json:"dataset_fingerprint,omitempty"`
	Diagnostics *quality.Diagnostics `json:"diagnostics,omitempty"`
}

// Outcome is what processing one item produced. It is returned for
// failures too, carrying whatever diagnostics were gathered.
type Outcome struct {
	Base         quality.Base
	Files        []output.File
	ContentWeeks []string
	Info         Info
}

// Fields builds the completion fields for the queue item.
func (o *Outcome) Fields() (map[string]string, error) {
	info, err := json.Marshal(o.Info)
	if err != nil {
		return nil, fmt.Errorf("encoding transform info: %w", err)
	}
	names := make([]string, len(o.Files))
	for i, f := range o.Files {
		names[i] = f.Name
	}
	return map[string]string{
		database.FieldTransformInfo:   string(info),
		database.FieldOutputFilenames: database.ListField(names),
		database.FieldContentWeeks:    database.ListField(o.ContentWeeks),
	}, nil
}

// Transformer processes queue items against a project catalog.
type Transformer struct {
	root     string
	catalog  *project.Catalog
	registry *adapter.Registry
	writer   *output.Writer
}

// New creates a transformer reading raw files under root.
func New(root string, catalog *project.Catalog, registry *adapter.Registry, writer *output.Writer) *Transformer {
	return &Transformer{root: root, catalog: catalog, registry: registry, writer: writer}
}

// Process transforms the source file of one item. A non-nil error is
// always a *Failure.
func (t *Transformer) Process(item database.QueueItem) (*Outcome, error) {
	out := &Outcome{}
	p, ok := t.catalog.Get(item.ProjectID)
	if !ok {
		return out, fail(ReasonProjectNotFound, fmt.Errorf("project %s", item.ProjectID))
	}

	path, err := t.sourcePath(p, item)
	if err != nil {
		return out, fail(ReasonSourceMissing, err)
	}
	raw, err := table.Load(path)
	switch {
	case errors.Is(err, table.ErrEmpty):
		return out, fail(ReasonEmptySource, err)
	case err != nil:
		return out, fail(ReasonUnreadableSource, err)
	}

	fp := fingerprint.Header(raw.Header)
	out.Info.Fingerprint = fp
	format, ok := p.FormatByFingerprint(fp)
	if !ok {
		return out, fail(ReasonNoFingerprintMatch, fmt.Errorf("header fingerprint %s", fp))
	}

	diag := &quality.Diagnostics{Module: format.Module, RowsIn: raw.Len()}
	out.Info.Diagnostics = diag
	if err := Preprocess(raw, format.Options); err != nil {
		return out, fail(ReasonAdapterError, err)
	}

	a, err := t.registry.Select(p.ID, format.Module)
	if err != nil {
		return out, fail(ReasonAdapterError, err)
	}
	cfg := adapter.Config{
		ProjectID:     p.ID,
		ReportingWeek: item.DataWeek,
		Base:          p.Base,
		Options:       format.Options,
	}
	res, err := a.Adapt(raw, cfg, diag)
	if errors.Is(err, adapter.ErrBaseMismatch) {
		return out, fail(ReasonBaseUndetermined, err)
	}
	if err != nil {
		return out, fail(ReasonAdapterError, err)
	}

	base := res.Base
	if base == "" {
		base = p.Base
	}
	out.Base = base
	diag.Base = string(base)
	diag.Labels = res.Table.Labels

	if len(format.Options.RosterList) > 0 {
		diag.Drop(quality.DropUnmappedRater, Remap(res.Table, format.Options.RosterList))
	}

	recs, drops, err := normalize.Run(base, res.Table, res.Options)
	if errors.Is(err, normalize.ErrUnknownBase) {
		return out, fail(ReasonBaseUndetermined, err)
	}
	if err != nil {
		return out, fail(ReasonAdapterError, err)
	}
	for reason, n := range drops {
		diag.Drop(reason, n)
	}
	diag.RowsOut = len(recs)
	if len(recs) == 0 {
		return out, fail(ReasonEmptyOutput, fmt.Errorf("no records from %d rows", raw.Len()))
	}

	files, err := t.writer.Write(p.ID, item.DataWeek, item.Filename, base, recs)
	out.Files = files
	if err != nil {
		return out, fail(ReasonWriteError, err)
	}
	for _, f := range files {
		out.ContentWeeks = append(out.ContentWeeks, f.ContentWeek)
	}
	return out, nil
}

func (t *Transformer) sourcePath(p project.Project, item database.QueueItem) (string, error) {
	dir, err := p.Folder(t.root)
	if err != nil {
		return "", err
	}
	w, err := week.Parse(item.DataWeek)
	if err != nil {
		return "", fmt.Errorf("data week %q: %w", item.DataWeek, err)
	}
	path := filepath.Join(dir, week.FolderName(w), item.Filename)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}

// Preprocess applies the configured column renames and cell replacements
// before the adapter sees the table.
func Preprocess(raw *table.Table, opts project.ModuleConfig) error {
	if len(opts.ReplaceColumns) > 0 {
		mapping := make(map[string]string, len(opts.ReplaceColumns))
		for _, r := range opts.ReplaceColumns {
			if r.From != "" && r.To != "" {
				mapping[r.From] = r.To
			}
		}
		raw.Rename(mapping)
	}
	for _, r := range opts.ReplaceStrings {
		raw.ReplaceStrings(r.Column, r.From, r.To)
	}
	for _, r := range opts.ReplaceRegex {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("replace_regex on %s: %w", r.Column, err)
		}
		raw.ReplaceRegex(r.Column, re, r.Replacement)
	}
	return nil
}

// Remap replaces each row's workflow with the rater's market from roster
// and drops rows whose rater is not listed. It returns the dropped count.
func Remap(in *quality.Intermediate, roster map[string]string) int {
	dropped := 0
	if in.Layout == quality.LayoutLong {
		kept := in.Long[:0]
		for _, r := range in.Long {
			market, ok := roster[r.RaterID]
			if !ok {
				dropped++
				continue
			}
			r.Workflow = market
			kept = append(kept, r)
		}
		in.Long = kept
		return dropped
	}
	kept := in.Wide[:0]
	for _, r := range in.Wide {
		market, ok := roster[r.RaterID]
		if !ok {
			dropped++
			continue
		}
		r.Workflow = market
		kept = append(kept, r)
	}
	in.Wide = kept
	return dropped
}

// Result holds the results of a transform phase.
type Result struct {
	Reclaimed   int
	Processed   int
	Transformed int
	Failed      int
	Files       int
	Reasons     map[string]int
}

// Drain reclaims stale processing items when lease is positive, then pops
// and transforms enqueued items until none are left. Each item is isolated:
// a failure marks that item failed and the loop continues. Queue errors
// stop the phase.
func (t *Transformer) Drain(db *database.DB, lease time.Duration) (*Result, error) {
	r := &Result{Reasons: map[string]int{}}
	if lease > 0 {
		n, err := db.ReclaimStale(lease)
		if err != nil {
			return r, fmt.Errorf("reclaiming stale items: %w", err)
		}
		if n > 0 {
			slog.Warn("reclaimed stale processing items", "count", n, "lease", lease)
		}
		r.Reclaimed = n
	}

	for {
		item, err := db.Pop(database.ModeEnqueued)
		if err != nil {
			return r, fmt.Errorf("popping queue: %w", err)
		}
		if item == nil {
			return r, nil
		}
		r.Processed++

		log := slog.With("item", item.ID, "project", item.ProjectID, "week", item.DataWeek, "file", item.Filename)
		out, perr := t.Process(*item)
		status := database.StatusTransformed
		if perr != nil {
			status = database.StatusFailed
			var f *Failure
			if errors.As(perr, &f) {
				out.Info.Reason = f.Reason
				r.Reasons[f.Reason]++
			}
			out.Info.Error = perr.Error()
			log.Error("transform failed", "err", perr)
		}

		fields, err := out.Fields()
		if err != nil {
			return r, err
		}
		if err := db.Complete(item.ID, status, fields); err != nil {
			return r, fmt.Errorf("completing item %d: %w", item.ID, err)
		}
		if perr != nil {
			r.Failed++
			continue
		}
		r.Transformed++
		r.Files += len(out.Files)
		log.Info("transformed", "base", out.Base, "files", len(out.Files), "rows", out.Info.Diagnostics.RowsOut)
	}
}

// ReasonSummary renders failure counts as "reason=n" pairs in sorted order.
func (r *Result) ReasonSummary() string {
	keys := make([]string, 0, len(r.Reasons))
	for k := range r.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%d", k, r.Reasons[k])
	}
	return s
}
