package adapter

import (
	"fmt"

	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// Generic adapts wide exports where every label has its own rater and
// auditor column, declared in the module configuration.
func Generic(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	opts := cfg.Options
	base, golden, err := labelBase(cfg)
	if err != nil {
		return nil, err
	}
	needAuditor := base == quality.BaseAudit

	cols := jobColumns{
		Rater:       opts.Column("rater_id_column", "rater_id"),
		Auditor:     opts.Column("auditor_id_column", "auditor_id"),
		JobID:       opts.Column("job_id_column", "job_id"),
		Date:        opts.Column("submission_date_column", "job_date"),
		Workflow:    opts.Column("workflow_column", "workflow"),
		NeedAuditor: needAuditor,
	}
	if !raw.Has(cols.Workflow) {
		cols.Workflow = ""
	}
	if golden {
		cols.FixedAuditor = GoldenAuditor
	}

	required := cols.required()
	var labels []string
	for _, l := range opts.Labels {
		if l.Name == "" {
			continue
		}
		labels = append(labels, l.Name)
		if !l.RaterNotRecorded {
			required = append(required, l.RaterColumn)
		}
		if needAuditor {
			required = append(required, l.AuditorColumn)
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels configured", ErrMissingColumns)
	}
	if err := requireColumns(raw, required...); err != nil {
		return nil, err
	}

	var rows []quality.WideRow
	for i := range raw.Rows {
		job, ok := cols.read(raw, i, diag)
		if !ok {
			continue
		}
		if !needAuditor {
			job.AuditorID = ""
		}
		row := quality.WideRow{Job: job, Rater: map[string]string{}, Auditor: map[string]string{}}
		for _, l := range opts.Labels {
			if l.Name == "" {
				continue
			}
			if !l.RaterNotRecorded {
				row.Rater[l.Name] = raw.Value(i, l.RaterColumn)
			}
			if needAuditor {
				row.Auditor[l.Name] = raw.Value(i, l.AuditorColumn)
			}
		}
		rows = append(rows, row)
	}

	rows, dups := dedupeWide(rows)
	diag.Drop(quality.DropDuplicate, dups)
	return wideResult(base, labels, rows, options(opts)), nil
}
