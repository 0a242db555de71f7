package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dataste0/quality-pipeline/internal/adapter"
	"github.com/Dataste0/quality-pipeline/internal/config"
	"github.com/Dataste0/quality-pipeline/internal/database"
	"github.com/Dataste0/quality-pipeline/internal/olapsync"
	"github.com/Dataste0/quality-pipeline/internal/output"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/scan"
	"github.com/Dataste0/quality-pipeline/internal/transform"
)

// Mode selects which phases a run executes.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeSnapshot  Mode = "snapshot"
	ModeEnqueue   Mode = "enqueue"
	ModeTransform Mode = "transform"
	ModeSync      Mode = "sync"
)

// ParseMode validates a --mode value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeSnapshot, ModeEnqueue, ModeTransform, ModeSync:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want auto, snapshot, enqueue, transform or sync)", s)
}

// Phase names.
const (
	StepSnapshot  = "Snapshot"
	StepEnqueue   = "Enqueue"
	StepTransform = "Transform"
	StepSync      = "Sync"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a pipeline run.
type Result struct {
	RunID      string
	Mode       Mode
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []StepResult
}

// OK reports whether every step succeeded.
func (r *Result) OK() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// Pipeline orchestrates the snapshot, enqueue, transform and sync phases.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	catalog  *project.Catalog
	registry *adapter.Registry
	engine   olapsync.Engine
	now      func() time.Time
}

// New creates a new pipeline. The sync engine is built from cfg.Sync when
// a command is configured.
func New(cfg *config.Config, db *database.DB, catalog *project.Catalog, registry *adapter.Registry) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		db:       db,
		catalog:  catalog,
		registry: registry,
		now:      time.Now,
	}
	if cfg.Sync.Command != "" {
		p.engine = &olapsync.CommandEngine{
			Command: cfg.Sync.Command,
			Args:    cfg.Sync.Args,
			Timeout: cfg.Sync.Timeout,
		}
	}
	return p
}

// SetEngine replaces the sync engine.
func (p *Pipeline) SetEngine(e olapsync.Engine) {
	p.engine = e
}

// SetClock replaces the clock used for scan windows and run timestamps.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

func (p *Pipeline) begin(mode Mode, dryRun bool) *Result {
	return &Result{RunID: uuid.NewString(), Mode: mode, DryRun: dryRun, StartedAt: p.now()}
}

// Run executes the phases selected by mode and stores a run report.
func (p *Pipeline) Run(ctx context.Context, mode Mode) *Result {
	r := p.begin(mode, false)
	all := mode == ModeAuto

	snapshotFailed := false
	if all || mode == ModeSnapshot {
		step := p.runSnapshot()
		r.Steps = append(r.Steps, step)
		snapshotFailed = step.Err != nil
	}
	if all || mode == ModeEnqueue {
		if snapshotFailed {
			r.Steps = append(r.Steps, StepResult{Name: StepEnqueue, Summary: "Skipped: snapshot failed"})
		} else {
			r.Steps = append(r.Steps, p.runEnqueue())
		}
	}
	if all || mode == ModeTransform {
		r.Steps = append(r.Steps, p.runTransform())
	}
	if all || mode == ModeSync {
		r.Steps = append(r.Steps, p.runSync(ctx))
	}

	r.FinishedAt = p.now()
	p.saveReport(r)
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(mode Mode) *Result {
	r := p.begin(mode, true)
	all := mode == ModeAuto

	var pending []scan.NewFile
	if all || mode == ModeSnapshot || mode == ModeEnqueue {
		res, files, err := p.previewScan()
		if err != nil {
			r.Steps = append(r.Steps, StepResult{Name: StepSnapshot, Err: err})
		} else {
			pending = files
			if all || mode == ModeSnapshot {
				summary := fmt.Sprintf("[dry-run] Would store %d entries for %d projects (%d unchanged, %d rescanned)",
					len(res.Entries), res.Projects, res.Unchanged, res.Rescanned)
				r.Steps = append(r.Steps, StepResult{Name: StepSnapshot, Summary: summary})
			}
		}
	}
	if all || mode == ModeEnqueue {
		r.Steps = append(r.Steps, StepResult{
			Name:    StepEnqueue,
			Summary: fmt.Sprintf("[dry-run] %d new files would be enqueued", len(pending)),
		})
	}
	if all || mode == ModeTransform {
		n, _ := p.db.Count(database.ModeEnqueued)
		stuck, _ := p.db.Count(database.ModeProcessing)
		r.Steps = append(r.Steps, StepResult{
			Name:    StepTransform,
			Summary: fmt.Sprintf("[dry-run] %d items enqueued, %d processing", n, stuck),
		})
	}
	if all || mode == ModeSync {
		n, _ := p.db.Count(database.ModeSyncReady)
		summary := fmt.Sprintf("[dry-run] %d items ready for sync", n)
		if p.engine == nil {
			summary += " (no sync command configured)"
		}
		r.Steps = append(r.Steps, StepResult{Name: StepSync, Summary: summary})
	}

	r.FinishedAt = p.now()
	p.saveReport(r)
	return r
}

func (p *Pipeline) scanner(createMissing bool) *scan.Scanner {
	return scan.NewScanner(scan.Options{
		Root:          p.cfg.GetRawRoot(),
		CreateMissing: createMissing,
		Extensions:    p.cfg.Scan.Extensions,
		Now:           p.now,
	})
}

// latestEntries returns the entries of the newest snapshot and its id.
func (p *Pipeline) latestEntries() (int64, []database.SnapshotEntry, error) {
	id, err := p.db.LatestSnapshotID()
	if err != nil || id == 0 {
		return 0, nil, err
	}
	entries, err := p.db.GetSnapshot(id)
	return id, entries, err
}

func (p *Pipeline) previewScan() (*scan.Result, []scan.NewFile, error) {
	_, prev, err := p.latestEntries()
	if err != nil {
		return nil, nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	res, err := p.scanner(false).Scan(p.catalog.Tracked(), prev)
	if err != nil {
		return nil, nil, err
	}
	return res, scan.Diff(prev, res.Entries), nil
}

func (p *Pipeline) runSnapshot() StepResult {
	slog.Info("Step 1/4: Scanning raw folders...")
	_, prev, err := p.latestEntries()
	if err != nil {
		return StepResult{Name: StepSnapshot, Err: fmt.Errorf("loading latest snapshot: %w", err)}
	}
	res, err := p.scanner(p.cfg.Scan.CreateMissing).Scan(p.catalog.Tracked(), prev)
	if err != nil {
		return StepResult{Name: StepSnapshot, Err: err}
	}
	id, err := p.db.AddSnapshot(res.Entries)
	if err != nil {
		return StepResult{Name: StepSnapshot, Err: fmt.Errorf("storing snapshot: %w", err)}
	}
	if id == 0 {
		return StepResult{
			Name:    StepSnapshot,
			Summary: fmt.Sprintf("No folders found in %d projects; snapshot not written", res.Projects),
		}
	}
	summary := fmt.Sprintf("Snapshot %d: %d weeks in %d projects (%d unchanged, %d rescanned, %d created)",
		id, res.Weeks, res.Projects, res.Unchanged, res.Rescanned, res.Created)
	if res.Skipped > 0 {
		summary += fmt.Sprintf(", %d projects skipped", res.Skipped)
	}
	return StepResult{Name: StepSnapshot, Summary: summary}
}

func (p *Pipeline) runEnqueue() StepResult {
	slog.Info("Step 2/4: Enqueueing new files...")
	latest, curr, err := p.latestEntries()
	if err != nil {
		return StepResult{Name: StepEnqueue, Err: err}
	}
	if latest == 0 {
		return StepResult{Name: StepEnqueue, Summary: "No snapshot to diff"}
	}
	var prev []database.SnapshotEntry
	prevID, err := p.db.PreviousSnapshotID(latest)
	if err == nil && prevID > 0 {
		prev, err = p.db.GetSnapshot(prevID)
	}
	if err != nil {
		return StepResult{Name: StepEnqueue, Err: fmt.Errorf("loading previous snapshot: %w", err)}
	}

	files := scan.Diff(prev, curr)
	items := make([]database.NewItem, len(files))
	for i, f := range files {
		items[i] = database.NewItem{
			SnapshotID:  latest,
			ProjectID:   f.ProjectID,
			ProjectName: f.ProjectName,
			DataWeek:    f.DataWeek,
			Filename:    f.Filename,
			FileHash:    f.Hash,
		}
	}
	n, err := p.db.PushAll(items)
	if err != nil {
		return StepResult{Name: StepEnqueue, Err: fmt.Errorf("enqueueing %d files: %w", len(files), err)}
	}
	slog.Debug("enqueued", "snapshot", latest, "new", n, "diffed", len(files))
	return StepResult{
		Name:    StepEnqueue,
		Summary: fmt.Sprintf("Enqueued %d new files from snapshot %d (previous %d)", n, latest, prevID),
	}
}

func (p *Pipeline) runTransform() StepResult {
	slog.Info("Step 3/4: Transforming queued files...")
	tr := transform.New(p.cfg.GetRawRoot(), p.catalog, p.registry, output.NewWriter(p.cfg.GetOutputDir()))
	res, err := tr.Drain(p.db, p.cfg.Queue.ProcessingLease)
	summary := fmt.Sprintf("Transformed %d of %d items into %d files, %d failed",
		res.Transformed, res.Processed, res.Files, res.Failed)
	if res.Reclaimed > 0 {
		summary += fmt.Sprintf(", %d stale items reclaimed", res.Reclaimed)
	}
	if len(res.Reasons) > 0 {
		summary += " (" + res.ReasonSummary() + ")"
	}
	return StepResult{Name: StepTransform, Summary: summary, Err: err}
}

func (p *Pipeline) runSync(ctx context.Context) StepResult {
	slog.Info("Step 4/4: Syncing downstream...")
	if p.engine == nil {
		slog.Warn("sync skipped: no sync command configured")
		return StepResult{Name: StepSync, Summary: "Skipped: no sync command configured"}
	}
	syncer := olapsync.NewSyncer(p.db, p.catalog, p.engine, p.cfg.GetOutputDir())
	res, err := syncer.Sync(ctx)
	if errors.Is(err, context.Canceled) {
		return StepResult{Name: StepSync, Summary: "Cancelled", Err: err}
	}
	summary := fmt.Sprintf("Synced %d of %d items (%d refreshes, %d failed)",
		res.Synced, res.Items, res.Refreshes, res.Failed)
	return StepResult{Name: StepSync, Summary: summary, Err: err}
}

func (p *Pipeline) saveReport(r *Result) {
	report := database.RunReport{
		ID:         r.RunID,
		Mode:       string(r.Mode),
		DryRun:     r.DryRun,
		OK:         r.OK(),
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339),
		Markdown:   Markdown(r),
	}
	if err := p.db.SaveRunReport(report); err != nil {
		slog.Error("saving run report", "run", r.RunID, "err", err)
	}
}
