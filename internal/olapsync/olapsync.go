// Package olapsync hands transformed output to the external analytical
// engine, one refresh per project and content week.
package olapsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Dataste0/quality-pipeline/internal/database"
	"github.com/Dataste0/quality-pipeline/internal/project"
)

// DefaultTimeout bounds a single engine invocation.
const DefaultTimeout = 10 * time.Minute

// Job is one refresh request.
type Job struct {
	ProjectID   string
	Week        string
	Target      string
	Methodology string
	Base        string
	OutputDir   string
}

// Engine refreshes the analytical store for one project week.
type Engine interface {
	Refresh(ctx context.Context, job Job) error
}

// CommandEngine runs an external executable. Placeholders in Args
// ({project_id}, {week}, {target}, {methodology}, {base}, {output_dir})
// are filled from the job.
type CommandEngine struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Refresh implements Engine.
func (e *CommandEngine) Refresh(ctx context.Context, job Job) error {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Command, ExpandArgs(e.Args, job)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s timed out after %s", e.Command, timeout)
		}
		msg := strings.TrimSpace(out.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		if msg == "" {
			return fmt.Errorf("%s: %w", e.Command, err)
		}
		return fmt.Errorf("%s: %w: %s", e.Command, err, msg)
	}
	return nil
}

// ExpandArgs substitutes job fields into argument templates.
func ExpandArgs(args []string, job Job) []string {
	r := strings.NewReplacer(
		"{project_id}", job.ProjectID,
		"{week}", job.Week,
		"{target}", job.Target,
		"{methodology}", job.Methodology,
		"{base}", job.Base,
		"{output_dir}", job.OutputDir,
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// Result holds the results of a sync phase.
type Result struct {
	Items     int
	Synced    int
	Failed    int
	Refreshes int
}

// Syncer walks sync-ready queue items and refreshes their content weeks.
type Syncer struct {
	db        *database.DB
	catalog   *project.Catalog
	engine    Engine
	outputDir string
}

// NewSyncer creates a syncer. outputDir is the parquet root.
func NewSyncer(db *database.DB, catalog *project.Catalog, engine Engine, outputDir string) *Syncer {
	return &Syncer{db: db, catalog: catalog, engine: engine, outputDir: outputDir}
}

type weekKey struct {
	project string
	week    string
}

// Sync refreshes every sync-ready item in id order. A project week is
// refreshed at most once per call. An item is marked synced only when all
// of its weeks succeeded; failed items stay sync-ready for the next run.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	r := &Result{}
	done := map[weekKey]error{}
	var cursor int64
	for {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		item, err := s.db.PopSyncReady(cursor)
		if err != nil {
			return r, fmt.Errorf("popping sync-ready item: %w", err)
		}
		if item == nil {
			return r, nil
		}
		cursor = item.ID
		r.Items++

		log := slog.With("item", item.ID, "project", item.ProjectID)
		p, ok := s.catalog.Get(item.ProjectID)
		if !ok {
			log.Warn("sync skipped: project not in catalog")
			r.Failed++
			continue
		}

		ok = true
		for _, w := range weeks(item) {
			k := weekKey{project: p.ID, week: w}
			err, seen := done[k]
			if !seen {
				err = s.engine.Refresh(ctx, s.job(p, w))
				done[k] = err
				r.Refreshes++
			}
			if err != nil {
				log.Error("refresh failed", "week", w, "err", err)
				ok = false
			}
		}
		if !ok {
			r.Failed++
			continue
		}
		if err := s.db.MarkSynced(item.ID); err != nil {
			return r, fmt.Errorf("marking item %d synced: %w", item.ID, err)
		}
		r.Synced++
	}
}

func (s *Syncer) job(p project.Project, w string) Job {
	return Job{
		ProjectID:   p.ID,
		Week:        w,
		Target:      strconv.FormatFloat(p.Target, 'f', -1, 64),
		Methodology: p.Methodology,
		Base:        string(p.Base),
		OutputDir:   filepath.Join(s.outputDir, p.ID),
	}
}

// weeks returns an item's content weeks, or its data week when none were
// recorded.
func weeks(item *database.QueueItem) []string {
	if len(item.ContentWeeks) > 0 {
		return item.ContentWeeks
	}
	return []string{item.DataWeek}
}
