package adapter

import (
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// Spotcheck adapts long exports with one row per (job, label) carrying
// both the actor's and the reviewer's answer.
func Spotcheck(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	opts := cfg.Options
	base, golden, err := labelBase(cfg)
	if err != nil {
		return nil, err
	}
	needAuditor := base == quality.BaseAudit

	cols := jobColumns{
		Rater:       opts.Column("actor_id_column", "actor_id"),
		Auditor:     opts.Column("reviewer_id_column", "reviewer_id"),
		JobID:       opts.Column("job_id_column", "job_id"),
		Date:        opts.Column("job_date_column", "job_date"),
		Workflow:    opts.Column("workflow_column", "queue"),
		NeedAuditor: needAuditor,
	}
	if !raw.Has(cols.Workflow) {
		cols.Workflow = ""
	}
	if golden {
		cols.FixedAuditor = GoldenAuditor
	}
	labelCol := opts.Column("label_column", "label")
	actorCol := opts.Column("actor_response_column", "actor_answer")
	reviewerCol := opts.Column("reviewer_response_column", "reviewer_answer")

	required := append(cols.required(), labelCol, actorCol)
	if needAuditor {
		required = append(required, reviewerCol)
	}
	if err := requireColumns(raw, required...); err != nil {
		return nil, err
	}

	excluded := lowerSet(opts.ExcludedLabels)
	labelSet := map[string]bool{}
	var rows []quality.LongRow
	for i := range raw.Rows {
		label := strings.TrimSpace(raw.Value(i, labelCol))
		if label == "" || excluded[strings.ToLower(label)] {
			continue
		}
		job, ok := cols.read(raw, i, diag)
		if !ok {
			continue
		}
		if !needAuditor {
			job.AuditorID = ""
		}
		labelSet[label] = true
		rows = append(rows, quality.LongRow{Job: job, Label: label, Role: quality.RoleRater, Response: strings.TrimSpace(raw.Value(i, actorCol))})
		if needAuditor {
			rows = append(rows, quality.LongRow{Job: job, Label: label, Role: quality.RoleAuditor, Response: strings.TrimSpace(raw.Value(i, reviewerCol))})
		}
	}

	rows, dups := dedupeLong(rows)
	diag.Drop(quality.DropDuplicate, dups)
	return &Result{
		Base:    base,
		Table:   &quality.Intermediate{Layout: quality.LayoutLong, Labels: sortedKeys(labelSet), Long: rows},
		Options: options(opts),
	}, nil
}
