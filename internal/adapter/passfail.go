package adapter

import (
	"strconv"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// PassFail adapts exports that already carry a per-job pass/fail value.
func PassFail(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	opts := cfg.Options
	cols := jobColumns{
		Rater:    opts.Column("rater_id_column", "rater_id"),
		Auditor:  opts.Column("auditor_id_column", "auditor_id"),
		JobID:    opts.Column("job_id_column", "job_id"),
		Date:     opts.Column("submission_date_column", "job_date"),
		Workflow: opts.Column("workflow_column", "workflow"),
	}
	for _, c := range []*string{&cols.Auditor, &cols.Workflow} {
		if !raw.Has(*c) {
			*c = ""
		}
	}
	outcomeCol := opts.Column("outcome_column", "job_correct")
	scoreCol := opts.Column("score_column", "job_score")
	if err := requireColumns(raw, append(cols.required(), outcomeCol)...); err != nil {
		return nil, err
	}

	norm := options(opts)
	norm.ProvidedOutcome = true

	var rows []quality.WideRow
	for i := range raw.Rows {
		job, ok := cols.read(raw, i, diag)
		if !ok {
			continue
		}
		row := quality.WideRow{Job: job, Outcome: strings.TrimSpace(raw.Value(i, outcomeCol))}
		if raw.Has(scoreCol) {
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw.Value(i, scoreCol)), 64); err == nil {
				score := project.Fraction(f)
				row.JobScore = &score
			}
		}
		rows = append(rows, row)
	}

	rows, dups := dedupeWide(rows)
	diag.Drop(quality.DropDuplicate, dups)
	return wideResult(quality.BaseOutcome, nil, rows, norm), nil
}
